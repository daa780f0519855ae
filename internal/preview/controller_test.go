package preview

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"previewd/internal/runtime"
	"previewd/internal/tree"
	"previewd/internal/types"
)

type fakeInstance struct {
	mu           sync.Mutex
	installCalls int
	installErr   error
	devLines     func() <-chan string
	written      map[string]string
	removed      []string
	closed       bool
}

func (f *fakeInstance) Mount(ctx context.Context, root *tree.Node) error { return nil }

func (f *fakeInstance) WriteFile(ctx context.Context, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.written == nil {
		f.written = make(map[string]string)
	}
	f.written[path] = content
	return nil
}

func (f *fakeInstance) RemoveFile(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeInstance) Install(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installCalls++
	return "added 12 packages\n", f.installErr
}

func (f *fakeInstance) StartDev(ctx context.Context) (<-chan string, error) {
	return f.devLines(), nil
}

func (f *fakeInstance) ContainerID() string { return "sandbox-test" }
func (f *fakeInstance) URL() string         { return "http://localhost:5173" }

func (f *fakeInstance) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeInstance) installCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installCalls
}

type fakeFetcher struct {
	files types.FileSet
	err   error
}

func (f *fakeFetcher) FetchBundle(ctx context.Context, projectID string) (types.FileSet, error) {
	return f.files, f.err
}

type recorded struct {
	projectID, containerID, status, url string
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

func (f *fakeRecorder) RecordPreview(ctx context.Context, projectID, containerID, status, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, recorded{projectID, containerID, status, url})
	return nil
}

func (f *fakeRecorder) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return recorded{}
	}
	return f.entries[len(f.entries)-1]
}

// announcedLines returns a dev-output source that prints some startup noise
// and then announces a listening address.
func announcedLines() func() <-chan string {
	return func() <-chan string {
		ch := make(chan string, 4)
		ch <- "VITE v5.0.0 ready in 300 ms"
		ch <- "  ➜  Local:   http://localhost:5173/"
		close(ch)
		return ch
	}
}

func newTestController(inst *fakeInstance, fetcher *fakeFetcher, rec *fakeRecorder) *Controller {
	handle := runtime.NewHandle(func(ctx context.Context) (runtime.Instance, error) {
		return inst, nil
	})
	c := NewController(handle, fetcher, rec)
	c.readyWait = 200 * time.Millisecond
	return c
}

func projectFiles() types.FileSet {
	return types.FileSet{
		"index.html":  "<html><head></head><body></body></html>",
		"src/App.jsx": "export default function App() { return null }",
	}
}

func TestLoadServesOnReadyLine(t *testing.T) {
	inst := &fakeInstance{devLines: announcedLines()}
	rec := &fakeRecorder{}
	c := newTestController(inst, &fakeFetcher{files: projectFiles()}, rec)

	var logs []string
	var logMu sync.Mutex
	res, err := c.Load(context.Background(), "proj-1", LoadOptions{
		OnLog: func(line string) {
			logMu.Lock()
			logs = append(logs, line)
			logMu.Unlock()
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173", res.URL)

	state, url := c.State()
	assert.Equal(t, StateServing, state)
	assert.Equal(t, "http://localhost:5173", url)

	logMu.Lock()
	assert.Contains(t, logs, "installing dependencies")
	logMu.Unlock()

	assert.Equal(t, recorded{"proj-1", "sandbox-test", StateServing, "http://localhost:5173"}, rec.last())
}

func TestLoadReadyTimeout(t *testing.T) {
	// The dev process keeps running but never announces an address.
	lines := make(chan string, 4)
	lines <- "compiling..."
	inst := &fakeInstance{devLines: func() <-chan string { return lines }}
	rec := &fakeRecorder{}
	c := newTestController(inst, &fakeFetcher{files: projectFiles()}, rec)

	var errs []string
	_, err := c.Load(context.Background(), "proj-1", LoadOptions{
		OnError: func(msg string) { errs = append(errs, msg) },
	})

	require.ErrorIs(t, err, ErrReadyTimeout)
	state, url := c.State()
	assert.Equal(t, StateFailed, state)
	assert.Empty(t, url)
	assert.NotEmpty(t, errs)
	assert.Equal(t, StateFailed, rec.last().status)
}

func TestLateReadyLineDoesNotSettle(t *testing.T) {
	lines := make(chan string, 4)
	inst := &fakeInstance{devLines: func() <-chan string { return lines }}
	c := newTestController(inst, &fakeFetcher{files: projectFiles()}, &fakeRecorder{})

	_, err := c.Load(context.Background(), "proj-1", LoadOptions{})
	require.ErrorIs(t, err, ErrReadyTimeout)

	// An address announced after the timeout has settled must not flip the
	// preview to serving.
	lines <- "  ➜  Local:   http://localhost:5173/"
	close(lines)
	time.Sleep(50 * time.Millisecond)

	state, url := c.State()
	assert.Equal(t, StateFailed, state)
	assert.Empty(t, url)
}

func TestCallbacksReleasedAfterTimeout(t *testing.T) {
	lines := make(chan string, 8)
	inst := &fakeInstance{devLines: func() <-chan string { return lines }}
	c := newTestController(inst, &fakeFetcher{files: projectFiles()}, &fakeRecorder{})

	var calls atomic.Int32
	_, err := c.Load(context.Background(), "proj-1", LoadOptions{
		OnLog: func(string) { calls.Add(1) },
	})
	require.ErrorIs(t, err, ErrReadyTimeout)

	// Output the dev process emits after Load has returned must not reach
	// the caller's callback.
	settled := calls.Load()
	lines <- "late output"
	lines <- "more late output"
	close(lines)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, settled, calls.Load(), "no callback invocations after load returned")
}

func TestCallbacksReleasedAfterServing(t *testing.T) {
	lines := make(chan string, 8)
	lines <- "  ➜  Local:   http://localhost:5173/"
	inst := &fakeInstance{devLines: func() <-chan string { return lines }}
	c := newTestController(inst, &fakeFetcher{files: projectFiles()}, &fakeRecorder{})

	var calls atomic.Int32
	_, err := c.Load(context.Background(), "proj-1", LoadOptions{
		OnLog: func(string) { calls.Add(1) },
	})
	require.NoError(t, err)

	settled := calls.Load()
	lines <- "page reloaded"
	close(lines)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, settled, calls.Load(), "no callback invocations after load returned")
}

func TestContainerIDTracksLifecycle(t *testing.T) {
	inst := &fakeInstance{devLines: announcedLines()}
	c := newTestController(inst, &fakeFetcher{files: projectFiles()}, &fakeRecorder{})

	assert.Empty(t, c.ContainerID())

	_, err := c.Load(context.Background(), "proj-1", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "sandbox-test", c.ContainerID())

	require.NoError(t, c.Stop(context.Background(), "proj-1"))
	assert.Empty(t, c.ContainerID())
}

func TestLoadInstallGuard(t *testing.T) {
	inst := &fakeInstance{devLines: announcedLines()}
	c := newTestController(inst, &fakeFetcher{files: projectFiles()}, &fakeRecorder{})

	_, err := c.Load(context.Background(), "proj-1", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, inst.installCount())

	_, err = c.Load(context.Background(), "proj-1", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, inst.installCount(), "second load reuses installed dependencies")

	_, err = c.Load(context.Background(), "proj-1", LoadOptions{ForceReinstall: true})
	require.NoError(t, err)
	assert.Equal(t, 2, inst.installCount(), "forced reinstall runs install again")
}

func TestLoadInstallFailure(t *testing.T) {
	inst := &fakeInstance{
		devLines:   announcedLines(),
		installErr: errors.New("npm exited with code 1"),
	}
	c := newTestController(inst, &fakeFetcher{files: projectFiles()}, &fakeRecorder{})

	_, err := c.Load(context.Background(), "proj-1", LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "install failed")

	state, _ := c.State()
	assert.Equal(t, StateFailed, state)

	// The failed attempt never marked the guard, so a retry installs again.
	inst.installErr = nil
	_, err = c.Load(context.Background(), "proj-1", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, inst.installCount())
}

func TestLoadFetchFailure(t *testing.T) {
	inst := &fakeInstance{devLines: announcedLines()}
	fetchErr := errors.New("project store unreachable")
	c := newTestController(inst, &fakeFetcher{err: fetchErr}, &fakeRecorder{})

	var errs []string
	_, err := c.Load(context.Background(), "proj-1", LoadOptions{
		OnError: func(msg string) { errs = append(errs, msg) },
	})

	require.ErrorIs(t, err, fetchErr)
	assert.NotEmpty(t, errs)
	state, _ := c.State()
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, 0, inst.installCount())
}

func TestLoadValidation(t *testing.T) {
	c := newTestController(&fakeInstance{devLines: announcedLines()},
		&fakeFetcher{files: projectFiles()}, &fakeRecorder{})

	_, err := c.Load(nil, "proj-1", LoadOptions{})
	assert.Error(t, err)

	_, err = c.Load(context.Background(), "", LoadOptions{})
	assert.Error(t, err)
}

func TestSyncBeforeLoad(t *testing.T) {
	c := newTestController(&fakeInstance{devLines: announcedLines()},
		&fakeFetcher{files: projectFiles()}, &fakeRecorder{})

	_, err := c.Sync(context.Background(), projectFiles())
	assert.ErrorIs(t, err, ErrPreviewNotLoaded)
}

func TestSyncPushesDelta(t *testing.T) {
	inst := &fakeInstance{devLines: announcedLines()}
	c := newTestController(inst, &fakeFetcher{files: projectFiles()}, &fakeRecorder{})

	_, err := c.Load(context.Background(), "proj-1", LoadOptions{})
	require.NoError(t, err)

	// Unchanged content is a no-op: the mount already seeded the cache.
	res, err := c.Sync(context.Background(), projectFiles())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated+res.Deleted)

	edited := projectFiles()
	edited["src/App.jsx"] = "export default function App() { return <h1>hi</h1> }"
	res, err = c.Sync(context.Background(), edited)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Deleted)

	inst.mu.Lock()
	assert.Equal(t, edited["src/App.jsx"], inst.written["src/App.jsx"])
	inst.mu.Unlock()
}

func TestStopResetsLifecycle(t *testing.T) {
	inst := &fakeInstance{devLines: announcedLines()}
	rec := &fakeRecorder{}
	c := newTestController(inst, &fakeFetcher{files: projectFiles()}, rec)

	_, err := c.Load(context.Background(), "proj-1", LoadOptions{})
	require.NoError(t, err)

	require.NoError(t, c.Stop(context.Background(), "proj-1"))

	state, url := c.State()
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, url)
	assert.True(t, inst.closed)
	assert.Equal(t, "stopped", rec.last().status)

	_, err = c.Sync(context.Background(), projectFiles())
	assert.ErrorIs(t, err, ErrPreviewNotLoaded)

	// The install flag was cleared with the sandbox.
	_, err = c.Load(context.Background(), "proj-1", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, inst.installCount())
}
