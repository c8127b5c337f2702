package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
)

// StateRepository 是 repository.StateRepository 的 testify Mock 实现。
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) SetMemberCount(ctx context.Context, roomID string, count int) error {
	args := m.Called(ctx, roomID, count)
	return args.Error(0)
}

func (m *StateRepository) GetMemberCount(ctx context.Context, roomID string) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *StateRepository) SetCursor(ctx context.Context, roomID string, sessionID string, pos domain.Point) error {
	args := m.Called(ctx, roomID, sessionID, pos)
	return args.Error(0)
}

func (m *StateRepository) GetCursors(ctx context.Context, roomID string) (map[string]domain.Point, error) {
	args := m.Called(ctx, roomID)
	var cursors map[string]domain.Point
	if args.Get(0) != nil {
		cursors = args.Get(0).(map[string]domain.Point)
	}
	return cursors, args.Error(1)
}

func (m *StateRepository) RemoveCursor(ctx context.Context, roomID string, sessionID string) error {
	args := m.Called(ctx, roomID, sessionID)
	return args.Error(0)
}

func (m *StateRepository) CleanupRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}
