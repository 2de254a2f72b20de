package mocks

import (
	"context"

	"github.com/dukex/flowpipe/pkg/models"
	"github.com/dukex/flowpipe/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

var _ persistence.Persistence = (*MockPersistence)(nil)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Checkpoint(ctx context.Context, key string) (*models.Checkpoint, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Checkpoint), args.Error(1)
}

func (m *MockPersistence) Checkpoints(ctx context.Context, jobKey string) ([]*models.Checkpoint, error) {
	args := m.Called(ctx, jobKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Checkpoint), args.Error(1)
}

func (m *MockPersistence) SaveCheckpoint(ctx context.Context, checkpoint *models.Checkpoint) error {
	args := m.Called(ctx, checkpoint)

	return args.Error(0)
}

func (m *MockPersistence) ChunkProcessed(ctx context.Context, jobKey, hash string) (bool, error) {
	args := m.Called(ctx, jobKey, hash)

	return args.Bool(0), args.Error(1)
}

func (m *MockPersistence) SaveProcessedChunk(ctx context.Context, chunk *models.ProcessedChunk) error {
	args := m.Called(ctx, chunk)

	return args.Error(0)
}

func (m *MockPersistence) ProcessedChunks(ctx context.Context, jobKey string) ([]*models.ProcessedChunk, error) {
	args := m.Called(ctx, jobKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ProcessedChunk), args.Error(1)
}

func (m *MockPersistence) Reset(ctx context.Context, jobKey string) error {
	args := m.Called(ctx, jobKey)

	return args.Error(0)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
