package repository

import (
	"context"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
)

// CommandRepository 定义了房间命令日志的追加与读取。
// 日志是仅追加的，插入顺序即回放顺序。
type CommandRepository interface {
	// Append 将一条命令追加到房间的日志末尾。
	Append(ctx context.Context, cmd *domain.DrawingCommand) error

	// ListByRoom 按追加顺序返回房间的全部命令。
	// 房间没有任何命令时返回空切片，不是错误。
	ListByRoom(ctx context.Context, roomID string) ([]domain.DrawingCommand, error)

	// CountByRoom 返回房间的命令数量，供房间信息接口使用。
	CountByRoom(ctx context.Context, roomID string) (int64, error)
}
