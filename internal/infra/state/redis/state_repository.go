package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
)

// 光标缓存的过期时间。光标是瞬态数据，房间短暂无人后自然消失。
const cursorTTL = 5 * time.Minute

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "wb:" // 默认前缀 "wb:" (whiteboard)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) roomMembersKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:members", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomCursorsKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:cursors", r.keyPrefix, roomID)
}

// --- StateRepository Interface Implementation ---

// SetMemberCount 记录房间当前的在线成员数
func (r *RedisStateRepository) SetMemberCount(ctx context.Context, roomID string, count int) error {
	key := r.roomMembersKey(roomID)
	if err := r.client.Set(ctx, key, count, cursorTTL).Err(); err != nil {
		return fmt.Errorf("redis: set member count for room '%s': %w", roomID, err)
	}
	return nil
}

// GetMemberCount 读取房间的在线成员数，key 不存在视为 0
func (r *RedisStateRepository) GetMemberCount(ctx context.Context, roomID string) (int, error) {
	key := r.roomMembersKey(roomID)
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis: get member count for room '%s': %w", roomID, err)
	}
	count, parseErr := strconv.Atoi(val)
	if parseErr != nil {
		return 0, fmt.Errorf("redis: parse member count '%s' for room '%s': %w", val, roomID, parseErr)
	}
	return count, nil
}

// SetCursor 缓存会话最近一次的光标位置 (Hash field = sessionID)
func (r *RedisStateRepository) SetCursor(ctx context.Context, roomID string, sessionID string, pos domain.Point) error {
	key := r.roomCursorsKey(roomID)
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("redis: marshal cursor for session '%s': %w", sessionID, err)
	}
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, sessionID, data)
	pipe.Expire(ctx, key, cursorTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set cursor for room '%s' session '%s': %w", roomID, sessionID, err)
	}
	return nil
}

// GetCursors 返回房间内全部已缓存的光标位置
func (r *RedisStateRepository) GetCursors(ctx context.Context, roomID string) (map[string]domain.Point, error) {
	key := r.roomCursorsKey(roomID)
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get cursors for room '%s': %w", roomID, err)
	}
	cursors := make(map[string]domain.Point, len(raw))
	for sessionID, data := range raw {
		var pos domain.Point
		if err := json.Unmarshal([]byte(data), &pos); err != nil {
			// 损坏的缓存条目直接跳过
			continue
		}
		cursors[sessionID] = pos
	}
	return cursors, nil
}

// RemoveCursor 删除某个会话的光标缓存
func (r *RedisStateRepository) RemoveCursor(ctx context.Context, roomID string, sessionID string) error {
	key := r.roomCursorsKey(roomID)
	if err := r.client.HDel(ctx, key, sessionID).Err(); err != nil {
		return fmt.Errorf("redis: remove cursor for room '%s' session '%s': %w", roomID, sessionID, err)
	}
	return nil
}

// CleanupRoom 清理房间相关的全部 Redis key
func (r *RedisStateRepository) CleanupRoom(ctx context.Context, roomID string) error {
	keys := []string{
		r.roomMembersKey(roomID),
		r.roomCursorsKey(roomID),
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: cleanup state for room '%s': %w", roomID, err)
	}
	return nil
}

// CheckRateLimit 基于 INCR+EXPIRE 的固定窗口限流。
// Pipeline 减少了计数与设置过期之间的竞争窗口。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.keyPrefix + "ratelimit:" + key

	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: rate limit pipeline for key '%s': %w", key, err)
	}

	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit INCR result for key '%s': %w", key, err)
	}
	return count > int64(limit), nil
}
