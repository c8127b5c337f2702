package repository

import (
	"context"
	"time"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
)

// RoomRepository 定义了房间元数据的持久化操作。
type RoomRepository interface {
	// FindByRoomID 根据房间标识符查找房间。
	// 房间不存在时返回 ErrRoomNotFound。
	FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error)

	// Save 保存房间信息（创建或更新）。
	// 标识符冲突时返回 ErrDuplicateEntry。
	Save(ctx context.Context, room *domain.Room) error

	// IsRoomIDExists 检查房间标识符是否已被占用。
	IsRoomIDExists(ctx context.Context, roomID string) (bool, error)

	// TouchActivity 将房间的 LastActivity 更新为给定时间。
	// 房间已被回收时静默成功，调用方不关心。
	TouchActivity(ctx context.Context, roomID string, at time.Time) error

	// DeleteInactiveBefore 删除所有 LastActivity 早于 cutoff 的房间及其命令日志，
	// 返回删除的房间数量。按时间戳过滤，重复执行是幂等的。
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
