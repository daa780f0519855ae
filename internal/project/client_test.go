package project

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"previewd/internal/types"
)

func TestFetchBundle(t *testing.T) {
	var gotCacheBust string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects/proj-1/bundle", r.URL.Path)
		gotCacheBust = r.URL.Query().Get("t")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"files": {"index.html": "<html></html>", "src/App.jsx": "export default function App() {}"}}`)
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	files, err := client.FetchBundle(context.Background(), "proj-1")

	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, "<html></html>", files["index.html"])
	assert.NotEmpty(t, gotCacheBust, "bundle fetch must carry a cache-busting parameter")
}

func TestFetchBundleNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	_, err := client.FetchBundle(context.Background(), "no-such-project")

	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestFetchBundleServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	_, err := client.FetchBundle(context.Background(), "proj-1")

	assert.ErrorIs(t, err, ErrProjectUnavailable)
	assert.Contains(t, err.Error(), "500", "HTTP status is surfaced in the error")
}

func TestFetchBundleEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	files, err := client.FetchBundle(context.Background(), "proj-1")

	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestPushFiles(t *testing.T) {
	var got types.PushFilesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/projects/proj-1/files/batch", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	err := client.PushFiles(context.Background(), "proj-1", []types.FileUpdate{
		{Path: "src/App.jsx", Content: "updated"},
	})

	require.NoError(t, err)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "src/App.jsx", got.Files[0].Path)
}

func TestPushFilesEmptyBatchIsNoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an empty batch")
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	assert.NoError(t, client.PushFiles(context.Background(), "proj-1", nil))
}

func TestUploadThumbnail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects/proj-1/thumbnail", r.URL.Path)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "data:image/png;base64,AAAA", payload["thumbnail"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	err := client.UploadThumbnail(context.Background(), "proj-1", "data:image/png;base64,AAAA")

	assert.NoError(t, err)
}

func TestAuthTokenForwarded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"files": {}}`)
	}))
	defer srv.Close()
	client := NewClient(srv.URL)
	client.SetAuthToken("tok-123")

	_, err := client.FetchBundle(context.Background(), "proj-1")

	assert.NoError(t, err)
}
