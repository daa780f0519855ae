// Package project is the client for the external project store: bundle
// fetch, batched file persistence, and thumbnail upload.
package project

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"previewd/internal/types"
)

// Custom error types for project store operations
var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrProjectUnavailable = errors.New("project service unavailable")
)

// Client talks to the external project store.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

// FetchBundle retrieves the project's full file set. The request carries a
// cache-busting parameter so intermediaries never serve a stale bundle.
func (c *Client) FetchBundle(ctx context.Context, projectID string) (types.FileSet, error) {
	if ctx == nil {
		return nil, errors.New("nil context provided")
	}
	if projectID == "" {
		return nil, errors.New("project ID cannot be empty")
	}

	endpoint := fmt.Sprintf("%s/api/projects/%s/bundle?t=%d",
		c.baseURL, url.PathEscape(projectID), time.Now().UnixNano())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bundle request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProjectUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: bundle fetch returned status %d", ErrProjectUnavailable, resp.StatusCode)
	}

	var payload struct {
		Files types.FileSet `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode project bundle: %w", err)
	}
	if payload.Files == nil {
		payload.Files = types.FileSet{}
	}
	return payload.Files, nil
}

// PushFiles persists a batch of file updates. The store owns durability;
// the caller separately feeds the same batch into the live sync path.
func (c *Client) PushFiles(ctx context.Context, projectID string, files []types.FileUpdate) error {
	if ctx == nil {
		return errors.New("nil context provided")
	}
	if projectID == "" {
		return errors.New("project ID cannot be empty")
	}
	if len(files) == 0 {
		return nil
	}

	body, err := json.Marshal(types.PushFilesRequest{Files: files})
	if err != nil {
		return fmt.Errorf("failed to encode file batch: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/projects/%s/files/batch", c.baseURL, url.PathEscape(projectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create file push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProjectUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: file push returned status %d", ErrProjectUnavailable, resp.StatusCode)
	}
	return nil
}

// UploadThumbnail stores a captured screenshot as the project's thumbnail.
// Best effort: callers treat failure as a logged non-event.
func (c *Client) UploadThumbnail(ctx context.Context, projectID, dataURI string) error {
	if ctx == nil {
		return errors.New("nil context provided")
	}
	if projectID == "" {
		return errors.New("project ID cannot be empty")
	}

	body, err := json.Marshal(map[string]string{"thumbnail": dataURI})
	if err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/projects/%s/thumbnail", c.baseURL, url.PathEscape(projectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create thumbnail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProjectUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: thumbnail upload returned status %d", ErrProjectUnavailable, resp.StatusCode)
	}
	log.Printf("[project] uploaded thumbnail for project %s (%d bytes)", projectID, len(dataURI))
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}
