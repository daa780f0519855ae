// @title Previewd API
// @version 1.0
// @description Previewd - Sandboxed Live-Preview Orchestrator
// @termsOfService http://swagger.io/terms/

// @contact.name Previewd Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8000
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter the token with the `Bearer ` prefix, e.g. "Bearer abcde12345". Do NOT include the quotes around the entire value.

package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"
	ginSwaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.mongodb.org/mongo-driver/mongo"

	_ "previewd/docs/api"
	"previewd/internal/api"
	"previewd/internal/bridge"
	"previewd/internal/chat"
	"previewd/internal/config"
	"previewd/internal/preview"
	"previewd/internal/project"
	"previewd/internal/queue"
	"previewd/internal/runtime"
	"previewd/internal/storage"
)

func initTracer() func() {
	exp, _ := stdouttrace.New(stdouttrace.WithPrettyPrint())
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("previewd-api"),
		)),
	)
	otel.SetTracerProvider(provider)
	return func() { _ = provider.Shutdown(context.Background()) }
}

// mongoRecorder persists preview lifecycle transitions.
type mongoRecorder struct {
	db *mongo.Database
}

func (r *mongoRecorder) RecordPreview(ctx context.Context, projectID, containerID, status, url string) error {
	return storage.UpsertPreview(ctx, r.db, &storage.PreviewSession{
		ProjectID:   projectID,
		ContainerID: containerID,
		Status:      status,
		URL:         url,
	})
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerologlog.Logger = zerologlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	shutdown := initTracer()
	defer shutdown()

	cfg := config.Load()
	mongoClient, err := storage.GetMongoClient(context.Background(), cfg.MongoURI)
	if err != nil {
		zerologlog.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	db := mongoClient.Database(cfg.DBName)

	projects := project.NewClient(cfg.ProjectAPIBase)
	chatClient := chat.NewClient(cfg.ChatAPIBase)
	markers := storage.NewMarkerStore(db)
	continuity := chat.NewManager(markers, chatClient)

	handle := runtime.NewHandle(runtime.BootDocker(cfg.SandboxImage))
	controller := preview.NewController(handle, projects, &mongoRecorder{db: db})

	var thumbnails api.ThumbnailPublisher
	if qm, err := queue.NewQueueManager(cfg.RabbitURL); err != nil {
		zerologlog.Warn().Err(err).Msg("RabbitMQ unavailable, thumbnail jobs disabled")
	} else {
		defer qm.Close()
		thumbnails = qm
	}

	handler := &api.Handler{
		Preview:    controller,
		Ops:        runtime.RealOps{},
		Bridge:     bridge.NewHub(),
		Chat:       chatClient,
		Continuity: continuity,
		Projects:   projects,
		Thumbnails: thumbnails,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("previewd-api"))

	// Swagger docs endpoint
	r.GET("/swagger/*any", ginSwagger.WrapHandler(ginSwaggerFiles.Handler))
	// Health endpoint (no auth)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	// Bridge endpoint for the injected preview scripts (no auth: the
	// sandboxed app has no credentials; messages are shape-validated).
	r.GET("/bridge", handler.BridgeWSREST)

	protected := r.Group("/")
	protected.Use(api.JWTAuthMiddleware())
	protected.POST("/previews/:projectId/load", handler.LoadPreviewREST)
	protected.POST("/previews/:projectId/sync", handler.SyncPreviewREST)
	protected.GET("/previews/:projectId/status", handler.GetPreviewStatusREST)
	protected.DELETE("/previews/:projectId", handler.StopPreviewREST)
	protected.POST("/previews/:projectId/screenshot", handler.CaptureScreenshotREST)
	protected.POST("/previews/:projectId/edit-mode", handler.ToggleEditModeREST)
	protected.POST("/previews/:projectId/style", handler.UpdateStyleREST)
	protected.PUT("/projects/:projectId/files", handler.PushFilesREST)
	protected.POST("/chat/:projectId/message", handler.ChatMessageREST)
	protected.POST("/chat/:projectId/suspend", handler.SuspendStreamREST)
	protected.POST("/chat/:projectId/resume", handler.ResumeStreamREST)

	zerologlog.Info().Str("port", cfg.Port).Msg("API server running")
	if err := r.Run(":" + cfg.Port); err != nil {
		zerologlog.Fatal().Err(err).Msg("failed to serve")
	}
}
