package hub

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/dip1905/Collaborative-Whiteboard/internal/dto"
)

// eventHandler 处理一条已解包的入站事件。
// 在 Hub 的事件循环中同步调用，同一连接的事件保持到达顺序。
type eventHandler func(h *Hub, c *Client, raw []byte)

// newDispatchTable 构建入站事件名到处理函数的映射。
// 未注册的事件在 dispatch 中统一丢弃。
func newDispatchTable() map[string]eventHandler {
	return map[string]eventHandler{
		dto.EventJoinRoom:    handleJoinRoom,
		dto.EventLeaveRoom:   handleLeaveRoom,
		dto.EventDrawStart:   handleDrawStart,
		dto.EventDrawMove:    handleDrawMove,
		dto.EventClearCanvas: handleClearCanvas,
		dto.EventCursorMove:  handleCursorMove,
	}
}

// dispatch 查表并执行事件处理。未知事件记日志后丢弃，不断开连接。
func (h *Hub) dispatch(msg HubMessage) {
	handler, ok := h.handlers[msg.Event]
	if !ok {
		logrus.WithFields(logrus.Fields{
			"event":      msg.Event,
			"session_id": msg.Client.SessionID(),
		}).Warn("Received unknown event, dropping")
		return
	}
	handler(h, msg.Client, msg.RawData)
}

// decodePayload 解析事件的 data 字段。失败时记日志并返回 false，
// 单条格式错误的消息不影响连接本身。
func decodePayload(c *Client, event string, raw []byte, v interface{}) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		logrus.WithFields(logrus.Fields{
			"event":      event,
			"session_id": c.SessionID(),
		}).WithError(err).Warn("Failed to decode event payload")
		return false
	}
	return true
}

// requireMembership 拒绝来自未加入房间的会话的事件。
// 没有这层校验，任意会话都能为不存在的房间拉起批处理器。
func requireMembership(h *Hub, c *Client, event, roomID string) bool {
	if h.isMember(roomID, c) {
		return true
	}
	logrus.WithFields(logrus.Fields{
		"event":      event,
		"room_id":    roomID,
		"session_id": c.SessionID(),
	}).Warn("Event for a room the session has not joined, dropping")
	return false
}

// handleJoinRoom 把会话加入房间：更新注册表、向全部成员（含加入者）
// 广播新人数、异步发送历史回放，并异步同步旁路缓存。
func handleJoinRoom(h *Hub, c *Client, raw []byte) {
	var payload dto.JoinRoomPayload
	if !decodePayload(c, dto.EventJoinRoom, raw, &payload) {
		return
	}
	if payload.RoomID == "" {
		return
	}

	count := h.join(payload.RoomID, c)
	logrus.WithFields(logrus.Fields{
		"room_id":    payload.RoomID,
		"session_id": c.SessionID(),
		"user_count": count,
	}).Info("Client joined room")

	h.broadcastEvent(payload.RoomID, dto.EventUpdateUserCount, count, nil)
	go h.collabService.SyncMemberCount(payload.RoomID, count)
	go h.sendHistory(c, payload.RoomID)
}

// handleLeaveRoom 处理主动离开：和断连走同一套人数广播与清理逻辑，
// 但只作用于指定房间。
func handleLeaveRoom(h *Hub, c *Client, raw []byte) {
	var payload dto.JoinRoomPayload
	if !decodePayload(c, dto.EventLeaveRoom, raw, &payload) {
		return
	}
	if payload.RoomID == "" {
		return
	}

	remaining, emptied := h.leave(payload.RoomID, c)
	logrus.WithFields(logrus.Fields{
		"room_id":    payload.RoomID,
		"session_id": c.SessionID(),
		"user_count": remaining,
	}).Info("Client left room")

	if emptied {
		h.collabService.ReleaseRoom(payload.RoomID)
		go h.collabService.CleanupRoomState(payload.RoomID)
		return
	}

	h.broadcastEvent(payload.RoomID, dto.EventUpdateUserCount, remaining, nil)
	roomID := payload.RoomID
	go func() {
		h.collabService.ForgetSession(roomID, c.SessionID())
		h.collabService.SyncMemberCount(roomID, remaining)
	}()
}

// handleDrawStart 接受 draw-start 但不做任何处理，笔画的落点
// 全部由后续的 draw-move 段承载。
func handleDrawStart(h *Hub, c *Client, raw []byte) {
	var payload dto.DrawStartPayload
	if !decodePayload(c, dto.EventDrawStart, raw, &payload) {
		return
	}
	logrus.WithFields(logrus.Fields{
		"room_id":    payload.RoomID,
		"session_id": c.SessionID(),
	}).Debug("draw-start received, no server-side action")
}

// handleDrawMove 先把线段转发给房间内的其他成员，再送入批量缓冲。
// 转发在前，持久化路径的任何延迟都不影响实时性。
func handleDrawMove(h *Hub, c *Client, raw []byte) {
	var payload dto.DrawMovePayload
	if !decodePayload(c, dto.EventDrawMove, raw, &payload) {
		return
	}
	if payload.RoomID == "" {
		return
	}
	if !requireMembership(h, c, dto.EventDrawMove, payload.RoomID) {
		return
	}

	roomID := payload.RoomID
	payload.RoomID = "" // 出站时不回带房间号
	h.broadcastEvent(roomID, dto.EventDrawMove, payload, c)

	h.collabService.AddSegment(roomID, payload.StartX, payload.StartY,
		payload.X, payload.Y, payload.Color, payload.StrokeWidth)
}

// handleClearCanvas 立即向全部成员（含发起者）广播清空，
// 然后把清空命令排入该房间的持久化队列。
func handleClearCanvas(h *Hub, c *Client, raw []byte) {
	var payload dto.JoinRoomPayload
	if !decodePayload(c, dto.EventClearCanvas, raw, &payload) {
		return
	}
	if payload.RoomID == "" {
		return
	}
	if !requireMembership(h, c, dto.EventClearCanvas, payload.RoomID) {
		return
	}

	h.broadcastEvent(payload.RoomID, dto.EventClearCanvas, nil, nil)
	h.collabService.ClearCanvas(payload.RoomID)

	logrus.WithFields(logrus.Fields{
		"room_id":    payload.RoomID,
		"session_id": c.SessionID(),
	}).Info("Canvas cleared")
}

// handleCursorMove 把光标位置转发给房间内的其他成员，并异步
// 写入光标旁路缓存。光标更新量大，不做持久化。
func handleCursorMove(h *Hub, c *Client, raw []byte) {
	var payload dto.CursorMovePayload
	if !decodePayload(c, dto.EventCursorMove, raw, &payload) {
		return
	}
	if payload.RoomID == "" {
		return
	}
	if !requireMembership(h, c, dto.EventCursorMove, payload.RoomID) {
		return
	}

	update := dto.CursorUpdatePayload{
		UserID: c.SessionID(),
		X:      payload.X,
		Y:      payload.Y,
	}
	h.broadcastEvent(payload.RoomID, dto.EventCursorUpdate, update, c)
	go h.collabService.RecordCursor(payload.RoomID, c.SessionID(), payload.X, payload.Y)
}
