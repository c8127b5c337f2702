package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// 命令类型常量。回放时客户端按顺序执行：stroke 绘制一串线段，clear 重置画布。
const (
	CmdTypeStroke = "stroke"
	CmdTypeClear  = "clear"
)

// DrawingCommand 是房间命令日志中的一条持久化记录。
// 主键 ID 自增，回放顺序以 ID 升序为准，而不是时间戳。
type DrawingCommand struct {
	ID        uint      `gorm:"primaryKey"`            // 自增主键，同时决定回放顺序
	RoomID    string    `gorm:"index;size:191;not null"` // 所属房间的 RoomID
	CmdType   string    `gorm:"size:20;not null"`      // "stroke" 或 "clear"
	Data      string    `gorm:"type:text"`             // 命令数据，JSON 字符串；clear 命令为空
	Timestamp time.Time `gorm:"not null"`              // 命令产生的时间
}

// Point 是画布上的一个坐标点。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokeData 定义了 stroke 命令的具体数据。
// 不变式：持久化的 stroke 至少包含 2 个点。
type StrokeData struct {
	Points      []Point `json:"points"`
	Color       string  `json:"color"`
	StrokeWidth int     `json:"strokeWidth"`
}

// SetStroke 将 StrokeData 序列化后写入 Data 字段。
func (c *DrawingCommand) SetStroke(data StrokeData) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal stroke data: %w", err)
	}
	c.Data = string(bytes)
	return nil
}

// ParseStroke 将 Data 字段解析为 StrokeData。
// 对 clear 命令调用会返回错误，调用方应先检查 CmdType。
func (c *DrawingCommand) ParseStroke() (StrokeData, error) {
	var data StrokeData
	if c.CmdType != CmdTypeStroke {
		return data, fmt.Errorf("command type %s carries no stroke data", c.CmdType)
	}
	if err := json.Unmarshal([]byte(c.Data), &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal stroke data: %w", err)
	}
	return data, nil
}

// NewStrokeCommand 由一批缓冲点构造一条 stroke 命令。
func NewStrokeCommand(roomID string, data StrokeData, at time.Time) (DrawingCommand, error) {
	cmd := DrawingCommand{
		RoomID:    roomID,
		CmdType:   CmdTypeStroke,
		Timestamp: at,
	}
	if err := cmd.SetStroke(data); err != nil {
		return DrawingCommand{}, err
	}
	return cmd, nil
}

// NewClearCommand 构造一条 clear 命令，不携带点数据。
func NewClearCommand(roomID string, at time.Time) DrawingCommand {
	return DrawingCommand{
		RoomID:    roomID,
		CmdType:   CmdTypeClear,
		Timestamp: at,
	}
}
