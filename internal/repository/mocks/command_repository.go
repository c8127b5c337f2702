package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
)

// CommandRepository 是 repository.CommandRepository 的 testify Mock 实现。
type CommandRepository struct {
	mock.Mock
}

func (m *CommandRepository) Append(ctx context.Context, cmd *domain.DrawingCommand) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

func (m *CommandRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.DrawingCommand, error) {
	args := m.Called(ctx, roomID)
	var cmds []domain.DrawingCommand
	if args.Get(0) != nil {
		cmds = args.Get(0).([]domain.DrawingCommand)
	}
	return cmds, args.Error(1)
}

func (m *CommandRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}
