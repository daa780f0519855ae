package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"previewd/internal/bridge"
	"previewd/internal/chat"
	"previewd/internal/filesync"
	"previewd/internal/preview"
	"previewd/internal/project"
	"previewd/internal/queue"
	"previewd/internal/runtime"
	"previewd/internal/types"
)

type PreviewManager interface {
	Load(ctx context.Context, projectID string, opts preview.LoadOptions) (*preview.LoadResult, error)
	Sync(ctx context.Context, files types.FileSet) (filesync.Result, error)
	Stop(ctx context.Context, projectID string) error
	State() (string, string)
	ContainerID() string
}

type ChatStreamer interface {
	StreamMessage(ctx context.Context, projectID string, req types.ChatRequest) (<-chan chat.StreamEvent, error)
}

type ContinuityManager interface {
	Suspend(ctx context.Context, projectID string, sessionID, lastMessageID int64) error
	Resume(ctx context.Context, projectID string) (*chat.Resumption, error)
}

type ProjectStore interface {
	PushFiles(ctx context.Context, projectID string, files []types.FileUpdate) error
}

type ThumbnailPublisher interface {
	PublishThumbnailJob(ctx context.Context, job queue.ThumbnailJob) error
}

// REST handler
type Handler struct {
	Preview    PreviewManager
	Ops        runtime.Ops
	Bridge     *bridge.Hub
	Chat       ChatStreamer
	Continuity ContinuityManager
	Projects   ProjectStore
	Thumbnails ThumbnailPublisher
}

// LoadPreviewREST godoc
// @Summary Load a project preview
// @Description Boot the sandbox, mount the project, install dependencies and start the dev server. Streams progress as server-sent events and finishes with a done or error event.
// @Tags previews
// @Accept json
// @Produce text/event-stream
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body types.LoadPreviewRequest false "Load options"
// @Success 200 {object} types.LoadPreviewResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 401 {object} types.ErrorResponse
// @Router /previews/{projectId}/load [post]
func (h *Handler) LoadPreviewREST(c *gin.Context) {
	projectID := c.Param("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Project ID is required",
			Code:    "MISSING_PROJECT_ID",
			Message: "projectId parameter cannot be empty",
		})
		return
	}

	var req types.LoadPreviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:   "Invalid request format",
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			})
			return
		}
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	flusher, _ := c.Writer.(http.Flusher)

	emit := func(event, data string) {
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	result, err := h.Preview.Load(c.Request.Context(), projectID, preview.LoadOptions{
		ForceReinstall: req.ForceReinstall,
		OnLog: func(line string) {
			emit("log", jsonString(line))
		},
		OnError: func(line string) {
			emit("error_log", jsonString(line))
		},
	})
	if err != nil {
		emit("error", fmt.Sprintf(`{"error": %s, "code": %s}`, jsonString(err.Error()), jsonString(loadErrorCode(err))))
		return
	}

	emit("done", fmt.Sprintf(`{"project_id": %s, "url": %s, "status": "serving"}`,
		jsonString(projectID), jsonString(result.URL)))
}

// SyncPreviewREST godoc
// @Summary Sync edited files into a running preview
// @Description Push an updated file set into the sandbox. Only changed files are written and removed files deleted; the dev process is never restarted.
// @Tags previews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body types.SyncRequest true "Full current file set"
// @Success 200 {object} types.SyncResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 401 {object} types.ErrorResponse
// @Failure 409 {object} types.ErrorResponse
// @Router /previews/{projectId}/sync [post]
func (h *Handler) SyncPreviewREST(c *gin.Context) {
	projectID := c.Param("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Project ID is required",
			Code:    "MISSING_PROJECT_ID",
			Message: "projectId parameter cannot be empty",
		})
		return
	}

	var req types.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Invalid request format",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	result, err := h.Preview.Sync(c.Request.Context(), req.Files)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorCode := "INTERNAL_ERROR"

		if errors.Is(err, preview.ErrPreviewNotLoaded) {
			statusCode = http.StatusConflict
			errorCode = "PREVIEW_NOT_LOADED"
		}

		c.JSON(statusCode, types.ErrorResponse{
			Error:   "Failed to sync files",
			Code:    errorCode,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.SyncResponse{
		ProjectID: projectID,
		Updated:   result.Updated,
		Deleted:   result.Deleted,
		Message:   "Files synced successfully",
	})
}

// StopPreviewREST godoc
// @Summary Stop a project preview
// @Description Tear down the sandbox and clear cached install and sync state
// @Tags previews
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Success 200 {object} types.ErrorResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 401 {object} types.ErrorResponse
// @Router /previews/{projectId} [delete]
func (h *Handler) StopPreviewREST(c *gin.Context) {
	projectID := c.Param("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Project ID is required",
			Code:    "MISSING_PROJECT_ID",
			Message: "projectId parameter cannot be empty",
		})
		return
	}

	if err := h.Preview.Stop(c.Request.Context(), projectID); err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "Failed to stop preview",
			Code:    "INTERNAL_ERROR",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.ErrorResponse{
		Error:   "",
		Code:    "SUCCESS",
		Message: "Preview stopped successfully",
	})
}

// GetPreviewStatusREST godoc
// @Summary Get preview status
// @Description Get the preview lifecycle state and serving URL
// @Tags previews
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Success 200 {object} types.PreviewStatusResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 401 {object} types.ErrorResponse
// @Router /previews/{projectId}/status [get]
func (h *Handler) GetPreviewStatusREST(c *gin.Context) {
	projectID := c.Param("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Project ID is required",
			Code:    "MISSING_PROJECT_ID",
			Message: "projectId parameter cannot be empty",
		})
		return
	}

	state, url := h.Preview.State()
	response := types.PreviewStatusResponse{
		ProjectID: projectID,
		Status:    state,
		URL:       url,
	}
	if containerID := h.Preview.ContainerID(); containerID != "" {
		response.ContainerID = containerID
		if h.Ops != nil {
			status, err := h.Ops.GetContainerStatus(c.Request.Context(), containerID)
			if err != nil {
				log.Printf("[api] failed to get container status for %s: %v", containerID, err)
			} else {
				response.ContainerStatus = status
			}
		}
	}
	c.JSON(http.StatusOK, response)
}

// CaptureScreenshotREST godoc
// @Summary Capture a screenshot of the previewed app
// @Description Ask the running preview to rasterize its root element. Bounded by a fixed timeout; on expiry the response reports captured=false instead of blocking.
// @Tags previews
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Success 200 {object} types.ScreenshotResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 401 {object} types.ErrorResponse
// @Failure 409 {object} types.ErrorResponse
// @Router /previews/{projectId}/screenshot [post]
func (h *Handler) CaptureScreenshotREST(c *gin.Context) {
	projectID := c.Param("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Project ID is required",
			Code:    "MISSING_PROJECT_ID",
			Message: "projectId parameter cannot be empty",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), bridge.ScreenshotTimeout)
	defer cancel()

	reply, err := h.Bridge.Request(ctx, projectID,
		bridge.Message{Type: bridge.TypeCaptureScreenshot},
		bridge.TypeScreenshotCaptured, bridge.TypeScreenshotError)
	if err != nil {
		if errors.Is(err, bridge.ErrNoPreviewConnection) {
			c.JSON(http.StatusConflict, types.ErrorResponse{
				Error:   "Preview is not connected",
				Code:    "NO_PREVIEW_CONNECTION",
				Message: err.Error(),
			})
			return
		}
		// Timeout resolves to "no screenshot" rather than an error.
		c.JSON(http.StatusOK, types.ScreenshotResponse{
			ProjectID: projectID,
			Captured:  false,
			Message:   "Screenshot timed out",
		})
		return
	}

	if reply.Type == bridge.TypeScreenshotError {
		c.JSON(http.StatusOK, types.ScreenshotResponse{
			ProjectID: projectID,
			Captured:  false,
			Message:   reply.Error,
		})
		return
	}

	if h.Thumbnails != nil {
		job := queue.ThumbnailJob{ProjectID: projectID, Data: reply.Data, CapturedAt: time.Now().UTC()}
		if err := h.Thumbnails.PublishThumbnailJob(c.Request.Context(), job); err != nil {
			// The screenshot still succeeds without a thumbnail.
			log.Printf("[api] thumbnail job publish failed for project %s: %v", projectID, err)
		}
	}

	c.JSON(http.StatusOK, types.ScreenshotResponse{
		ProjectID: projectID,
		Data:      reply.Data,
		Captured:  true,
	})
}

// ToggleEditModeREST godoc
// @Summary Toggle visual edit mode
// @Description Enable or disable element selection in the previewed app
// @Tags previews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body types.ToggleEditModeRequest true "Edit mode state"
// @Success 200 {object} types.ErrorResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 401 {object} types.ErrorResponse
// @Failure 409 {object} types.ErrorResponse
// @Router /previews/{projectId}/edit-mode [post]
func (h *Handler) ToggleEditModeREST(c *gin.Context) {
	projectID := c.Param("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Project ID is required",
			Code:    "MISSING_PROJECT_ID",
			Message: "projectId parameter cannot be empty",
		})
		return
	}

	var req types.ToggleEditModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Invalid request format",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	err := h.Bridge.Send(projectID, bridge.Message{Type: bridge.TypeToggleMode, Enabled: req.Enabled})
	if err != nil {
		c.JSON(http.StatusConflict, types.ErrorResponse{
			Error:   "Preview is not connected",
			Code:    "NO_PREVIEW_CONNECTION",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.ErrorResponse{
		Error:   "",
		Code:    "SUCCESS",
		Message: "Edit mode updated",
	})
}

// UpdateStyleREST godoc
// @Summary Live-patch the selected element's style
// @Description Apply an inline style to the currently selected element for instant visual feedback. Durable persistence goes through the file update endpoint.
// @Tags previews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body types.UpdateStyleRequest true "Style property and value"
// @Success 200 {object} types.ErrorResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 401 {object} types.ErrorResponse
// @Failure 409 {object} types.ErrorResponse
// @Router /previews/{projectId}/style [post]
func (h *Handler) UpdateStyleREST(c *gin.Context) {
	projectID := c.Param("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Project ID is required",
			Code:    "MISSING_PROJECT_ID",
			Message: "projectId parameter cannot be empty",
		})
		return
	}

	var req types.UpdateStyleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Invalid request format",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	err := h.Bridge.Send(projectID, bridge.Message{
		Type:     bridge.TypeUpdateStyle,
		Property: req.Property,
		Value:    req.Value,
	})
	if err != nil {
		c.JSON(http.StatusConflict, types.ErrorResponse{
			Error:   "Preview is not connected",
			Code:    "NO_PREVIEW_CONNECTION",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.ErrorResponse{
		Error:   "",
		Code:    "SUCCESS",
		Message: "Style updated",
	})
}

// BridgeWSREST upgrades the connection from the injected preview scripts.
func (h *Handler) BridgeWSREST(c *gin.Context) {
	projectID := c.Query("project_id")
	h.Bridge.HandleWS(c.Writer, c.Request, projectID)
}

// PushFilesREST godoc
// @Summary Persist and sync a batch of file edits
// @Description Forward the batch to the project store for durable persistence, then feed the same batch into the live preview
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body types.PushFilesRequest true "File batch"
// @Success 200 {object} types.SyncResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 401 {object} types.ErrorResponse
// @Failure 502 {object} types.ErrorResponse
// @Router /projects/{projectId}/files [put]
func (h *Handler) PushFilesREST(c *gin.Context) {
	projectID := c.Param("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Project ID is required",
			Code:    "MISSING_PROJECT_ID",
			Message: "projectId parameter cannot be empty",
		})
		return
	}

	var req types.PushFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Invalid request format",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	if err := h.Projects.PushFiles(c.Request.Context(), projectID, req.Files); err != nil {
		statusCode := http.StatusInternalServerError
		errorCode := "INTERNAL_ERROR"

		if errors.Is(err, project.ErrProjectNotFound) {
			statusCode = http.StatusNotFound
			errorCode = "PROJECT_NOT_FOUND"
		} else if errors.Is(err, project.ErrProjectUnavailable) {
			statusCode = http.StatusBadGateway
			errorCode = "PROJECT_STORE_UNAVAILABLE"
		}

		c.JSON(statusCode, types.ErrorResponse{
			Error:   "Failed to persist files",
			Code:    errorCode,
			Message: err.Error(),
		})
		return
	}

	// Live preview effect. A preview that is not loaded is fine; the files
	// are durably persisted either way.
	files := make(types.FileSet, len(req.Files))
	for _, f := range req.Files {
		files[f.Path] = f.Content
	}
	result, err := h.Preview.Sync(c.Request.Context(), files)
	if err != nil && !errors.Is(err, preview.ErrPreviewNotLoaded) {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "Files persisted but preview sync failed",
			Code:    "SYNC_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.SyncResponse{
		ProjectID: projectID,
		Updated:   result.Updated,
		Deleted:   result.Deleted,
		Message:   "Files persisted",
	})
}

// ChatMessageREST godoc
// @Summary Relay a chat message stream
// @Description Forward a message to the chat collaborator and relay its event stream (start, interaction, complete, error) to the caller as server-sent events
// @Tags chat
// @Accept json
// @Produce text/event-stream
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body types.ChatRequest true "Chat message"
// @Failure 400 {object} types.ErrorResponse
// @Failure 401 {object} types.ErrorResponse
// @Failure 502 {object} types.ErrorResponse
// @Router /chat/{projectId}/message [post]
func (h *Handler) ChatMessageREST(c *gin.Context) {
	projectID := c.Param("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Project ID is required",
			Code:    "MISSING_PROJECT_ID",
			Message: "projectId parameter cannot be empty",
		})
		return
	}

	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Invalid request format",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	events, err := h.Chat.StreamMessage(c.Request.Context(), projectID, req)
	if err != nil {
		c.JSON(http.StatusBadGateway, types.ErrorResponse{
			Error:   "Chat service unavailable",
			Code:    "CHAT_UNAVAILABLE",
			Message: err.Error(),
		})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	flusher, _ := c.Writer.(http.Flusher)

	for ev := range events {
		c.SSEvent(ev.Type, ev)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// SuspendStreamREST godoc
// @Summary Journal an in-flight chat stream
// @Description Write a durable marker recording that a response stream was in progress, so the next load can recover the missed messages
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body types.SuspendStreamRequest true "Stream watermark"
// @Success 200 {object} types.ErrorResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 401 {object} types.ErrorResponse
// @Router /chat/{projectId}/suspend [post]
func (h *Handler) SuspendStreamREST(c *gin.Context) {
	projectID := c.Param("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Project ID is required",
			Code:    "MISSING_PROJECT_ID",
			Message: "projectId parameter cannot be empty",
		})
		return
	}

	var req types.SuspendStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Invalid request format",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	if err := h.Continuity.Suspend(c.Request.Context(), projectID, req.SessionID, req.LastMessageID); err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "Failed to journal stream marker",
			Code:    "INTERNAL_ERROR",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.ErrorResponse{
		Error:   "",
		Code:    "SUCCESS",
		Message: "Stream marker journaled",
	})
}

// ResumeStreamREST godoc
// @Summary Recover a suspended chat stream
// @Description Consume any journaled stream marker and replay messages missed during the page teardown. The marker is read once; repeated calls return outcome "none".
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Success 200 {object} chat.Resumption
// @Failure 400 {object} types.ErrorResponse
// @Failure 401 {object} types.ErrorResponse
// @Router /chat/{projectId}/resume [post]
func (h *Handler) ResumeStreamREST(c *gin.Context) {
	projectID := c.Param("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "Project ID is required",
			Code:    "MISSING_PROJECT_ID",
			Message: "projectId parameter cannot be empty",
		})
		return
	}

	result, err := h.Continuity.Resume(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "Failed to resume stream",
			Code:    "INTERNAL_ERROR",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func loadErrorCode(err error) string {
	switch {
	case errors.Is(err, preview.ErrReadyTimeout):
		return "READY_TIMEOUT"
	case errors.Is(err, runtime.ErrInstallFailed):
		return "INSTALL_FAILED"
	case errors.Is(err, runtime.ErrDockerDaemonUnavailable):
		return "DOCKER_UNAVAILABLE"
	case errors.Is(err, runtime.ErrPortUnavailable):
		return "PORT_UNAVAILABLE"
	case errors.Is(err, project.ErrProjectNotFound):
		return "PROJECT_NOT_FOUND"
	case errors.Is(err, project.ErrProjectUnavailable):
		return "PROJECT_STORE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// jsonString quotes a string as a JSON value for hand-built SSE payloads.
func jsonString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
