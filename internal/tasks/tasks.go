package tasks

import (
	"encoding/json"
)

// 定义任务类型常量
const (
	TypeRoomReap = "room:reap" // 闲置房间回收任务类型
)

// RoomReapPayload 定义了闲置房间回收任务的数据结构
type RoomReapPayload struct {
	// 保留期限（小时），最后活动时间早于 now - RetentionHours 的房间会被删除
	RetentionHours int `json:"retention_hours"`
}

// NewRoomReapTask 构造房间回收任务的 payload 字节
func NewRoomReapTask(retentionHours int) ([]byte, error) {
	payload := RoomReapPayload{RetentionHours: retentionHours}
	return json.Marshal(payload)
}
