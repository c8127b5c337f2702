package dto

import (
	"encoding/json"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
)

// 入站事件名（客户端 → 服务端）
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventDrawStart   = "draw-start"
	EventDrawMove    = "draw-move"
	EventClearCanvas = "clear-canvas"
	EventCursorMove  = "cursor-move"
)

// 出站事件名（服务端 → 客户端）
const (
	EventUpdateUserCount  = "update-user-count"
	EventCursorUpdate     = "cursor-update"
	EventDrawingHistory   = "drawing-history"
	EventUserDisconnected = "user-disconnected"
)

// Envelope 是所有 WebSocket 消息的统一外层结构。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoomPayload 对应 join-room / leave-room / clear-canvas 的入站数据。
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

// DrawStartPayload 对应 draw-start 的入站数据。服务端接受但不处理。
type DrawStartPayload struct {
	RoomID string  `json:"roomId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// DrawMovePayload 对应 draw-move 的入站数据，也原样转发给其他成员。
type DrawMovePayload struct {
	RoomID      string  `json:"roomId,omitempty"`
	StartX      float64 `json:"startX"`
	StartY      float64 `json:"startY"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Color       string  `json:"color"`
	StrokeWidth int     `json:"strokeWidth"`
}

// CursorMovePayload 对应 cursor-move 的入站数据。
type CursorMovePayload struct {
	RoomID string  `json:"roomId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// CursorUpdatePayload 是广播给其他成员的光标位置。
type CursorUpdatePayload struct {
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// HistoryEntry 是 drawing-history 回放日志中的一条命令。
type HistoryEntry struct {
	Type        string         `json:"type"`
	Points      []domain.Point `json:"points,omitempty"`
	Color       string         `json:"color,omitempty"`
	StrokeWidth int            `json:"strokeWidth,omitempty"`
	Timestamp   int64          `json:"timestamp"`
}

// NewEnvelope 序列化 data 并包装成 Envelope。
func NewEnvelope(event string, data interface{}) (Envelope, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return env, err
		}
		env.Data = raw
	}
	return env, nil
}

// MarshalEvent 构造 Envelope 并序列化为字节，供广播路径直接使用。
func MarshalEvent(event string, data interface{}) ([]byte, error) {
	env, err := NewEnvelope(event, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// HistoryFromCommands 将持久化命令日志转换为回放用的 DTO 列表，保持原始顺序。
// 解析失败的记录会被跳过，由调用方决定是否记录日志。
func HistoryFromCommands(cmds []domain.DrawingCommand) ([]HistoryEntry, error) {
	entries := make([]HistoryEntry, 0, len(cmds))
	for _, cmd := range cmds {
		entry := HistoryEntry{
			Type:      cmd.CmdType,
			Timestamp: cmd.Timestamp.UnixMilli(),
		}
		if cmd.CmdType == domain.CmdTypeStroke {
			stroke, err := cmd.ParseStroke()
			if err != nil {
				return nil, err
			}
			entry.Points = stroke.Points
			entry.Color = stroke.Color
			entry.StrokeWidth = stroke.StrokeWidth
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
