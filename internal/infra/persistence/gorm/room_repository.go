package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
	"github.com/dip1905/Collaborative-Whiteboard/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByRoomID 实现根据房间标识符查找房间
func (r *GormRoomRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error) {
	var roomData domain.Room
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&roomData).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by room_id '%s': %w", roomID, err)
	}
	return &roomData, nil
}

// Save 实现保存房间信息（创建或更新）
func (r *GormRoomRepository) Save(ctx context.Context, roomData *domain.Room) error {
	result := r.db.WithContext(ctx).Save(roomData)
	if err := result.Error; err != nil {
		// MySQL 唯一约束冲突 (error 1062) 映射为仓库错误
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room (room_id: %s): %w", roomData.RoomID, err)
	}
	return nil
}

// IsRoomIDExists 实现检查房间标识符是否已存在
func (r *GormRoomRepository) IsRoomIDExists(ctx context.Context, roomID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by room_id '%s': %w", roomID, err)
	}
	return count > 0, nil
}

// TouchActivity 实现更新房间的最后活跃时间。
// LastActivity 单调不减，用条件更新避免回拨。
func (r *GormRoomRepository) TouchActivity(ctx context.Context, roomID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("room_id = ? AND last_activity < ?", roomID, at).
		Update("last_activity", at).Error
	if err != nil {
		return fmt.Errorf("gorm: touch activity for room '%s': %w", roomID, err)
	}
	// RowsAffected 为 0 说明房间已被回收或时间戳未前进，均可忽略
	return nil
}

// DeleteInactiveBefore 实现删除所有过期房间及其命令日志。
// 在一个事务中完成，保证命令日志不会悬挂。
func (r *GormRoomRepository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var staleIDs []string
		if err := tx.Model(&domain.Room{}).
			Where("last_activity < ?", cutoff).
			Pluck("room_id", &staleIDs).Error; err != nil {
			return fmt.Errorf("gorm: list stale rooms: %w", err)
		}
		if len(staleIDs) == 0 {
			return nil
		}

		if err := tx.Where("room_id IN ?", staleIDs).
			Delete(&domain.DrawingCommand{}).Error; err != nil {
			return fmt.Errorf("gorm: delete commands of stale rooms: %w", err)
		}

		result := tx.Where("room_id IN ?", staleIDs).Delete(&domain.Room{})
		if result.Error != nil {
			return fmt.Errorf("gorm: delete stale rooms: %w", result.Error)
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
