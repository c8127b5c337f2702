package repository

import (
	"context"
	"time"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
)

// StateRepository 定义了房间实时状态的辅助缓存，由 Redis 实现。
// 缓存只是旁路信息：成员关系的权威数据始终在内存 Hub 中，
// 任何缓存写入失败都只记录日志，不影响广播路径。
type StateRepository interface {
	// SetMemberCount 记录房间当前的在线成员数。
	SetMemberCount(ctx context.Context, roomID string, count int) error

	// GetMemberCount 读取房间的在线成员数，没有记录时返回 0。
	GetMemberCount(ctx context.Context, roomID string) (int, error)

	// SetCursor 缓存某个会话最近一次的光标位置。
	SetCursor(ctx context.Context, roomID string, sessionID string, pos domain.Point) error

	// GetCursors 返回房间内所有已缓存的光标位置，键为会话 ID。
	GetCursors(ctx context.Context, roomID string) (map[string]domain.Point, error)

	// RemoveCursor 删除某个会话的光标缓存（离开或断开时）。
	RemoveCursor(ctx context.Context, roomID string, sessionID string) error

	// CleanupRoom 清理房间相关的全部 Redis key（房间变空时）。
	CleanupRoom(ctx context.Context, roomID string) error

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
	// 返回 true 表示超限。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
