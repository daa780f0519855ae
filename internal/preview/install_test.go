package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstallGuard(t *testing.T) {
	var g InstallGuard

	assert.True(t, g.ShouldInstall(false), "first load always installs")

	g.MarkInstalled()
	assert.False(t, g.ShouldInstall(false), "subsequent loads skip install")
	assert.True(t, g.ShouldInstall(true), "forced reinstall overrides the cache")

	g.Reset()
	assert.True(t, g.ShouldInstall(false), "teardown clears the install flag")
}

func TestInstallGuardFailedInstallNotMarked(t *testing.T) {
	var g InstallGuard

	// A failed install never calls MarkInstalled, so the next attempt
	// installs again.
	assert.True(t, g.ShouldInstall(false))
	assert.True(t, g.ShouldInstall(false))
}
