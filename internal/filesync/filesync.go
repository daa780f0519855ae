// Package filesync applies minimal add/update/delete deltas to a running
// sandbox without restarting its dev process.
package filesync

import (
	"context"
	"errors"
	"log"
	"sync"

	"previewd/internal/types"
)

// Target is the filesystem surface the engine writes through.
type Target interface {
	WriteFile(ctx context.Context, path, content string) error
	RemoveFile(ctx context.Context, path string) error
}

// Result reports how many paths a sync pass touched.
type Result struct {
	Updated int
	Deleted int
}

// Engine tracks the last content successfully written into the running
// sandbox and applies only the difference on each pass. The cache lifetime
// equals the sandbox instance lifetime: at any quiescent moment it equals
// the sandbox's on-disk content for every path it was given.
type Engine struct {
	target Target

	// syncMu makes Sync single-flight: a new pass waits for any in-flight
	// pass before computing its own diff.
	syncMu sync.Mutex

	cacheMu sync.Mutex
	cache   map[string]string
}

func NewEngine(target Target) *Engine {
	return &Engine{target: target, cache: make(map[string]string)}
}

// Seed records a full mount as the applied state, so the next Sync diffs
// against what the mount put on disk rather than re-writing everything.
func (e *Engine) Seed(files types.FileSet) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache = make(map[string]string, len(files))
	for path, content := range files {
		e.cache[path] = content
	}
}

// Reset clears the applied-state cache. Called on sandbox teardown or
// forced reinstall.
func (e *Engine) Reset() {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache = make(map[string]string)
}

// Sync diffs files against the last applied state and pushes the delta.
// Deletions are applied before updates; individual file writes within one
// pass run concurrently. A per-file failure is logged and the path is left
// out of the cache update so the next pass retries it; the rest of the
// batch proceeds. When nothing changed, no filesystem operation is
// performed at all; spurious writes would retrigger the previewed app's
// hot-reload and cause visible flicker.
func (e *Engine) Sync(ctx context.Context, files types.FileSet) (Result, error) {
	if ctx == nil {
		return Result{}, errors.New("nil context provided")
	}

	e.syncMu.Lock()
	defer e.syncMu.Unlock()

	e.cacheMu.Lock()
	var updates []string
	for path, content := range files {
		if cached, ok := e.cache[path]; !ok || cached != content {
			updates = append(updates, path)
		}
	}
	var deletions []string
	for path := range e.cache {
		if _, ok := files[path]; !ok {
			deletions = append(deletions, path)
		}
	}
	e.cacheMu.Unlock()

	if len(updates) == 0 && len(deletions) == 0 {
		return Result{}, nil
	}

	result := Result{}
	for _, path := range deletions {
		if err := e.target.RemoveFile(ctx, path); err != nil {
			log.Printf("[filesync] failed to remove %s: %v", path, err)
			continue
		}
		e.cacheMu.Lock()
		delete(e.cache, path)
		e.cacheMu.Unlock()
		result.Deleted++
	}

	var wg sync.WaitGroup
	var resultMu sync.Mutex
	for _, path := range updates {
		wg.Add(1)
		go func(path, content string) {
			defer wg.Done()
			if err := e.target.WriteFile(ctx, path, content); err != nil {
				log.Printf("[filesync] failed to write %s: %v", path, err)
				return
			}
			e.cacheMu.Lock()
			e.cache[path] = content
			e.cacheMu.Unlock()
			resultMu.Lock()
			result.Updated++
			resultMu.Unlock()
		}(path, files[path])
	}
	wg.Wait()

	log.Printf("[filesync] sync applied: %d updated, %d deleted", result.Updated, result.Deleted)
	return result, nil
}

// Cached returns a copy of the applied-state snapshot.
func (e *Engine) Cached() types.FileSet {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	snapshot := make(types.FileSet, len(e.cache))
	for path, content := range e.cache {
		snapshot[path] = content
	}
	return snapshot
}
