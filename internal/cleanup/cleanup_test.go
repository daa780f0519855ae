package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"previewd/internal/config"
	"previewd/internal/runtime"
)

// MockOps is a mock implementation of the runtime.Ops interface
type MockOps struct {
	mock.Mock
}

func (m *MockOps) GetContainerStatus(ctx context.Context, containerID string) (string, error) {
	args := m.Called(ctx, containerID)
	return args.String(0), args.Error(1)
}

func (m *MockOps) ContainerExists(ctx context.Context, containerID string) (bool, error) {
	args := m.Called(ctx, containerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOps) StopContainer(ctx context.Context, containerID string) error {
	args := m.Called(ctx, containerID)
	return args.Error(0)
}

func (m *MockOps) RemoveContainer(ctx context.Context, containerID string) error {
	args := m.Called(ctx, containerID)
	return args.Error(0)
}

func (m *MockOps) ListContainers(ctx context.Context) ([]runtime.ContainerInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]runtime.ContainerInfo), args.Error(1)
}

func TestCleanupManager_NewCleanupManager(t *testing.T) {
	cfg := &config.Config{
		Cleanup: config.CleanupConfig{
			MaxPreviewAge: 1 * time.Hour,
		},
	}
	mockOps := &MockOps{}

	// Should not panic even with nil database
	cm := NewCleanupManager(cfg, nil, mockOps)
	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, mockOps, cm.ops)
}

func TestCleanupManager_Configuration(t *testing.T) {
	cfg := &config.Config{
		Cleanup: config.CleanupConfig{
			MaxPreviewAge:   2 * time.Hour,
			CleanupInterval: 30 * time.Minute,
			EnableCleanup:   true,
		},
	}

	assert.Equal(t, 2*time.Hour, cfg.Cleanup.MaxPreviewAge)
	assert.Equal(t, 30*time.Minute, cfg.Cleanup.CleanupInterval)
	assert.True(t, cfg.Cleanup.EnableCleanup)
}

func TestCleanupManager_isSandboxContainer(t *testing.T) {
	cm := NewCleanupManager(&config.Config{}, nil, &MockOps{})

	tests := []struct {
		name      string
		info      runtime.ContainerInfo
		isSandbox bool
	}{
		{"sandbox container", runtime.ContainerInfo{ID: "c1", Name: "/previewd-1724580000"}, true},
		{"sandbox without slash", runtime.ContainerInfo{ID: "c2", Name: "previewd-1724580001"}, true},
		{"foreign container", runtime.ContainerInfo{ID: "c3", Name: "/mongo"}, false},
		{"similar prefix elsewhere", runtime.ContainerInfo{ID: "c4", Name: "/my-previewd-copy"}, false},
		{"unnamed", runtime.ContainerInfo{ID: "c5"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isSandbox, cm.isSandboxContainer(tt.info))
		})
	}
}

func TestCleanupManager_OrphanDetectionSkipsForeignContainers(t *testing.T) {
	// Foreign containers never reach the stop/remove path, even when no
	// preview session references them.
	cm := NewCleanupManager(&config.Config{}, nil, &MockOps{})

	known := map[string]bool{"container-1": true}

	assert.True(t, known["container-1"])
	assert.False(t, cm.isSandboxContainer(runtime.ContainerInfo{ID: "other", Name: "/redis"}))
	assert.True(t, cm.isSandboxContainer(runtime.ContainerInfo{ID: "orphan", Name: "/previewd-9"}))
}
