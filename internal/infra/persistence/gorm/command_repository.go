package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
)

// GormCommandRepository 是 CommandRepository 接口的 GORM 实现
type GormCommandRepository struct {
	db *gorm.DB
}

// NewGormCommandRepository 创建 GormCommandRepository 实例
func NewGormCommandRepository(db *gorm.DB) *GormCommandRepository {
	if db == nil {
		panic("database connection cannot be nil for GormCommandRepository")
	}
	return &GormCommandRepository{db: db}
}

// Append 实现向房间日志末尾追加一条命令。
// 自增主键保证了与插入顺序一致的回放顺序。
func (r *GormCommandRepository) Append(ctx context.Context, cmd *domain.DrawingCommand) error {
	if err := r.db.WithContext(ctx).Create(cmd).Error; err != nil {
		return fmt.Errorf("gorm: append %s command for room '%s': %w", cmd.CmdType, cmd.RoomID, err)
	}
	return nil
}

// ListByRoom 实现按追加顺序读取房间的全部命令
func (r *GormCommandRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.DrawingCommand, error) {
	var cmds []domain.DrawingCommand
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id asc").
		Find(&cmds).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list commands for room '%s': %w", roomID, err)
	}
	return cmds, nil
}

// CountByRoom 实现统计房间的命令数量
func (r *GormCommandRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.DrawingCommand{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count commands for room '%s': %w", roomID, err)
	}
	return count, nil
}
