package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"previewd/internal/chat"
	"previewd/internal/filesync"
	"previewd/internal/preview"
	"previewd/internal/queue"
	"previewd/internal/runtime"
	"previewd/internal/types"
)

// MockPreviewManager is a consolidated mock for all API tests
type MockPreviewManager struct {
	mock.Mock
}

func (m *MockPreviewManager) Load(ctx context.Context, projectID string, opts preview.LoadOptions) (*preview.LoadResult, error) {
	args := m.Called(ctx, projectID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*preview.LoadResult), args.Error(1)
}

func (m *MockPreviewManager) Sync(ctx context.Context, files types.FileSet) (filesync.Result, error) {
	args := m.Called(ctx, files)
	return args.Get(0).(filesync.Result), args.Error(1)
}

func (m *MockPreviewManager) Stop(ctx context.Context, projectID string) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

func (m *MockPreviewManager) State() (string, string) {
	args := m.Called()
	return args.String(0), args.String(1)
}

func (m *MockPreviewManager) ContainerID() string {
	args := m.Called()
	return args.String(0)
}

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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]runtime.ContainerInfo), args.Error(1)
}

type MockChatStreamer struct {
	mock.Mock
}

func (m *MockChatStreamer) StreamMessage(ctx context.Context, projectID string, req types.ChatRequest) (<-chan chat.StreamEvent, error) {
	args := m.Called(ctx, projectID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan chat.StreamEvent), args.Error(1)
}

type MockContinuityManager struct {
	mock.Mock
}

func (m *MockContinuityManager) Suspend(ctx context.Context, projectID string, sessionID, lastMessageID int64) error {
	args := m.Called(ctx, projectID, sessionID, lastMessageID)
	return args.Error(0)
}

func (m *MockContinuityManager) Resume(ctx context.Context, projectID string) (*chat.Resumption, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Resumption), args.Error(1)
}

type MockProjectStore struct {
	mock.Mock
}

func (m *MockProjectStore) PushFiles(ctx context.Context, projectID string, files []types.FileUpdate) error {
	args := m.Called(ctx, projectID, files)
	return args.Error(0)
}

type MockThumbnailPublisher struct {
	mock.Mock
}

func (m *MockThumbnailPublisher) PublishThumbnailJob(ctx context.Context, job queue.ThumbnailJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}
