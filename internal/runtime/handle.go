package runtime

import (
	"context"
	"errors"
	"log"
	"sync"

	"previewd/internal/tree"
)

// Custom error types for runtime lifecycle handling
var (
	ErrNoInstance = errors.New("no sandbox instance")
)

// Instance is the mount/spawn/read/write surface of a booted sandbox.
// The real implementation is a Docker container; tests substitute fakes.
type Instance interface {
	Mount(ctx context.Context, root *tree.Node) error
	WriteFile(ctx context.Context, path, content string) error
	RemoveFile(ctx context.Context, path string) error
	Install(ctx context.Context) (string, error)
	StartDev(ctx context.Context) (<-chan string, error)
	ContainerID() string
	URL() string
	Close(ctx context.Context) error
}

// Booter performs the one-time, expensive sandbox boot.
type Booter func(ctx context.Context) (Instance, error)

type bootAttempt struct {
	done chan struct{}
	inst Instance
	err  error
}

// Handle owns at most one sandbox instance per process lifetime. Acquire
// boots lazily and is single-flight: concurrent callers during an
// in-progress boot all await the same attempt rather than booting twice.
type Handle struct {
	boot Booter

	mu       sync.Mutex
	inst     Instance
	inflight *bootAttempt
}

func NewHandle(boot Booter) *Handle {
	return &Handle{boot: boot}
}

// Acquire returns the existing instance if present, otherwise performs the
// one-time boot and caches the result. Boot failure propagates to every
// waiter of that attempt but does not poison future Acquire calls. Boot is
// not cancellable once started; callers wait it out.
func (h *Handle) Acquire(ctx context.Context) (Instance, error) {
	if ctx == nil {
		return nil, errors.New("nil context provided")
	}

	h.mu.Lock()
	if h.inst != nil {
		inst := h.inst
		h.mu.Unlock()
		return inst, nil
	}

	if h.inflight == nil {
		attempt := &bootAttempt{done: make(chan struct{})}
		h.inflight = attempt
		go h.runBoot(attempt)
	}
	attempt := h.inflight
	h.mu.Unlock()

	<-attempt.done
	if attempt.err != nil {
		return nil, attempt.err
	}
	return attempt.inst, nil
}

func (h *Handle) runBoot(attempt *bootAttempt) {
	log.Printf("[runtime] booting sandbox")
	inst, err := h.boot(context.Background())

	h.mu.Lock()
	if err == nil {
		h.inst = inst
	}
	h.inflight = nil
	h.mu.Unlock()

	if err != nil {
		log.Printf("[runtime] sandbox boot failed: %v", err)
	} else {
		log.Printf("[runtime] sandbox booted: %s", inst.ContainerID())
	}

	attempt.inst = inst
	attempt.err = err
	close(attempt.done)
}

// Current returns the booted instance without triggering a boot.
func (h *Handle) Current() (Instance, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inst == nil {
		return nil, ErrNoInstance
	}
	return h.inst, nil
}

// Teardown destroys the current instance, making a subsequent Acquire
// boot a new one. Waits out any in-flight boot first.
func (h *Handle) Teardown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("nil context provided")
	}

	h.mu.Lock()
	attempt := h.inflight
	h.mu.Unlock()
	if attempt != nil {
		<-attempt.done
	}

	h.mu.Lock()
	inst := h.inst
	h.inst = nil
	h.mu.Unlock()

	if inst == nil {
		return nil
	}

	log.Printf("[runtime] tearing down sandbox %s", inst.ContainerID())
	return inst.Close(ctx)
}
