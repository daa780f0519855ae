// Package preview orchestrates the sandbox: fetch files, mount, install,
// spawn the dev server, wait for readiness, and push incremental edits.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"previewd/internal/bridge"
	"previewd/internal/filesync"
	"previewd/internal/runtime"
	"previewd/internal/tree"
	"previewd/internal/types"
)

// Custom error types for preview orchestration
var (
	ErrReadyTimeout     = errors.New("dev server did not become ready in time")
	ErrPreviewNotLoaded = errors.New("preview is not loaded")
)

// Preview lifecycle states.
const (
	StateIdle          = "idle"
	StateFetching      = "fetching"
	StateMounting      = "mounting"
	StateInstalling    = "installing"
	StateSpawning      = "spawning"
	StateAwaitingReady = "awaiting_ready"
	StateServing       = "serving"
	StateFailed        = "failed"
)

// readyTimeout bounds the wait for the dev server's listening address.
const readyTimeout = 15 * time.Second

// readyPattern matches the address line dev servers print once listening.
var readyPattern = regexp.MustCompile(`https?://(?:localhost|127\.0\.0\.1|0\.0\.0\.0|\[[0-9a-fA-F:]+\]):\d+`)

// BundleFetcher fetches the project's flat file set from the project store.
type BundleFetcher interface {
	FetchBundle(ctx context.Context, projectID string) (types.FileSet, error)
}

// Recorder persists preview session state transitions.
type Recorder interface {
	RecordPreview(ctx context.Context, projectID, containerID, status, url string) error
}

// LoadOptions control a load attempt.
type LoadOptions struct {
	ForceReinstall bool
	OnLog          func(string)
	OnError        func(string)
}

// LoadResult is the successful outcome of a load: the serving address.
type LoadResult struct {
	URL string
}

// Controller drives the preview lifecycle against the single sandbox
// instance owned by the runtime handle.
type Controller struct {
	handle   *runtime.Handle
	bundles  BundleFetcher
	recorder Recorder

	readyWait time.Duration

	mu        sync.Mutex
	state     string
	url       string
	projectID string
	guard     InstallGuard
	engine    *filesync.Engine
	bound     runtime.Instance
}

func NewController(handle *runtime.Handle, bundles BundleFetcher, recorder Recorder) *Controller {
	return &Controller{
		handle:    handle,
		bundles:   bundles,
		recorder:  recorder,
		readyWait: readyTimeout,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state and serving URL, if any.
func (c *Controller) State() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.url
}

// ContainerID returns the bound sandbox container's id, or "" when no
// preview is loaded.
func (c *Controller) ContainerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound == nil {
		return ""
	}
	return c.bound.ContainerID()
}

func (c *Controller) setState(state string) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// Load brings the previewed application up: fetch and sandbox acquisition
// run concurrently, the helper scripts are injected idempotently, the full
// tree is mounted, install runs only when the guard says so, and the call
// settles exactly once on either the announced address or the readiness
// timeout. A failed load leaves the sandbox alive so a retry reuses it.
func (c *Controller) Load(ctx context.Context, projectID string, opts LoadOptions) (*LoadResult, error) {
	if ctx == nil {
		return nil, errors.New("nil context provided")
	}
	if projectID == "" {
		return nil, errors.New("project ID cannot be empty")
	}

	onLog := opts.OnLog
	if onLog == nil {
		onLog = func(string) {}
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(string) {}
	}

	log.Printf("[preview] loading project %s", projectID)
	c.mu.Lock()
	c.state = StateFetching
	c.projectID = projectID
	c.mu.Unlock()

	// Bundle fetch and sandbox acquisition have no ordering dependency.
	type fetchResult struct {
		files types.FileSet
		err   error
	}
	fetchCh := make(chan fetchResult, 1)
	go func() {
		files, err := c.bundles.FetchBundle(ctx, projectID)
		fetchCh <- fetchResult{files: files, err: err}
	}()

	inst, err := c.handle.Acquire(ctx)
	if err != nil {
		c.fail(ctx, projectID, "", onError, fmt.Errorf("failed to acquire sandbox: %w", err))
		return nil, fmt.Errorf("failed to acquire sandbox: %w", err)
	}

	fetched := <-fetchCh
	if fetched.err != nil {
		c.fail(ctx, projectID, inst.ContainerID(), onError, fetched.err)
		return nil, fmt.Errorf("failed to fetch project bundle: %w", fetched.err)
	}

	files := bridge.InjectIntoBundle(fetched.files, projectID)

	c.setState(StateMounting)
	if err := inst.Mount(ctx, tree.Build(files)); err != nil {
		c.fail(ctx, projectID, inst.ContainerID(), onError, err)
		return nil, fmt.Errorf("failed to mount project files: %w", err)
	}
	c.bindEngine(inst, files)

	if c.guard.ShouldInstall(opts.ForceReinstall) {
		c.setState(StateInstalling)
		onLog("installing dependencies")
		output, err := inst.Install(ctx)
		relayLines(output, NewRelay(onLog))
		if err != nil {
			c.fail(ctx, projectID, inst.ContainerID(), onError, err)
			return nil, fmt.Errorf("dependency install failed: %w", err)
		}
		c.guard.MarkInstalled()
	} else {
		onLog("dependencies already installed, skipping install")
	}

	c.setState(StateSpawning)
	lines, err := inst.StartDev(ctx)
	if err != nil {
		c.fail(ctx, projectID, inst.ContainerID(), onError, err)
		return nil, fmt.Errorf("failed to spawn dev server: %w", err)
	}

	c.setState(StateAwaitingReady)
	if err := c.awaitReady(lines, onLog); err != nil {
		c.fail(ctx, projectID, inst.ContainerID(), onError, err)
		return nil, err
	}

	url := inst.URL()
	c.mu.Lock()
	c.state = StateServing
	c.url = url
	c.mu.Unlock()

	c.record(ctx, projectID, inst.ContainerID(), StateServing, url)
	log.Printf("[preview] project %s serving at %s", projectID, url)
	return &LoadResult{URL: url}, nil
}

// awaitReady races the announced listening address against the readiness
// timeout. Exactly one of the two settles the wait; once settled, the
// caller's callbacks are released, the remaining output drains to the
// process log in the background, and late readiness lines cause no state
// change.
func (c *Controller) awaitReady(lines <-chan string, onLog func(string)) error {
	relay := NewRelay(onLog)
	timer := time.NewTimer(c.readyWait)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return fmt.Errorf("%w: dev server exited before announcing an address", ErrReadyTimeout)
			}
			relay.Line(line)
			if readyPattern.MatchString(StripControl(line)) {
				go drain(lines)
				return nil
			}
		case <-timer.C:
			go drain(lines)
			return ErrReadyTimeout
		}
	}
}

// drain keeps consuming dev output after the readiness wait has settled so
// the process never blocks on a full pipe. The load caller's callbacks
// must not outlive Load, so the remaining output goes to the process log.
func drain(lines <-chan string) {
	relay := NewRelay(func(line string) {
		log.Printf("[preview] dev: %s", line)
	})
	for line := range lines {
		relay.Line(line)
	}
}

// Sync pushes an edited file set into the running sandbox without
// restarting the dev process.
func (c *Controller) Sync(ctx context.Context, files types.FileSet) (filesync.Result, error) {
	if ctx == nil {
		return filesync.Result{}, errors.New("nil context provided")
	}

	c.mu.Lock()
	engine := c.engine
	projectID := c.projectID
	c.mu.Unlock()
	if engine == nil {
		return filesync.Result{}, ErrPreviewNotLoaded
	}

	return engine.Sync(ctx, bridge.InjectIntoBundle(files, projectID))
}

// Stop tears the sandbox down and clears the install flag and sync cache.
func (c *Controller) Stop(ctx context.Context, projectID string) error {
	if ctx == nil {
		return errors.New("nil context provided")
	}

	c.mu.Lock()
	c.state = StateIdle
	c.url = ""
	c.projectID = ""
	c.engine = nil
	c.bound = nil
	c.mu.Unlock()
	c.guard.Reset()

	if err := c.handle.Teardown(ctx); err != nil {
		return fmt.Errorf("failed to tear down sandbox: %w", err)
	}
	c.record(ctx, projectID, "", "stopped", "")
	log.Printf("[preview] project %s stopped", projectID)
	return nil
}

// bindEngine (re)creates the sync engine when the bound instance changes
// and seeds it with the freshly mounted file set.
func (c *Controller) bindEngine(inst runtime.Instance, files types.FileSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound != inst {
		c.engine = filesync.NewEngine(inst)
		c.bound = inst
	}
	c.engine.Seed(files)
}

func (c *Controller) fail(ctx context.Context, projectID, containerID string, onError func(string), cause error) {
	c.setState(StateFailed)
	onError(cause.Error())
	c.record(ctx, projectID, containerID, StateFailed, "")
	log.Printf("[preview] project %s failed: %v", projectID, cause)
}

func (c *Controller) record(ctx context.Context, projectID, containerID, status, url string) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordPreview(ctx, projectID, containerID, status, url); err != nil {
		log.Printf("[preview] failed to record preview state for %s: %v", projectID, err)
	}
}

func relayLines(output string, relay *Relay) {
	start := 0
	for i := 0; i <= len(output); i++ {
		if i == len(output) || output[i] == '\n' {
			if i > start {
				relay.Line(output[start:i])
			}
			start = i + 1
		}
	}
}
