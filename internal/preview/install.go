package preview

import "sync"

// InstallGuard tracks whether the dependency install is known-good for the
// current sandbox lifetime, so routine reloads skip the expensive install
// step. Purely an optimization: a false "should install" is safe; a stale
// skip after a changed dependency manifest is an accepted risk covered by
// the force-reinstall escape hatch.
type InstallGuard struct {
	mu        sync.Mutex
	installed bool
}

// ShouldInstall reports whether the install step must run.
func (g *InstallGuard) ShouldInstall(force bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return force || !g.installed
}

// MarkInstalled records a successful install for this sandbox lifetime.
func (g *InstallGuard) MarkInstalled() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.installed = true
}

// Reset clears the flag. Called on sandbox teardown.
func (g *InstallGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.installed = false
}
