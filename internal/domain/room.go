package domain

import "time"

// Room 表示一个协作画布房间的持久化记录。
// RoomID 由上游 HTTP 层保证唯一且不少于 6 个字符。
type Room struct {
	ID           uint      `gorm:"primaryKey"`                    // 数据库主键
	RoomID       string    `gorm:"uniqueIndex;size:191;not null"` // 房间标识符，全局唯一
	RoomName     string    `gorm:"size:191"`                      // 房间显示名称，默认为 RoomID
	CreatedAt    time.Time `gorm:"autoCreateTime"`                // 房间创建时间，创建后不再变更
	LastActivity time.Time `gorm:"index;not null"`                // 最后一次持久化变更的时间，单调不减
}
