package hub

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dip1905/Collaborative-Whiteboard/internal/dto"
	"github.com/dip1905/Collaborative-Whiteboard/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 包内使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string // "register", "unregister", "event"
	Event   string // 仅用于 event：入站事件名
	Client  *Client
	RawData []byte // 仅用于 event：事件的 data 字段
}

// room 是单个房间的在线成员集合，自带互斥锁。
// 不同房间互不阻塞，跨房间操作不共享任何锁。
type room struct {
	mu      sync.Mutex
	clients map[*Client]bool
}

// Hub 维护房间注册表并协调事件分发与广播。
// 成员关系的权威数据在这里，持久化和缓存都只是旁路。
type Hub struct {
	// 内部通道，处理所有来自 Client 的事件
	messageChan chan HubMessage

	// 房间注册表。roomsMu 只保护 map 结构本身，
	// 成员集合的变更由各房间自己的锁串行化。
	roomsMu sync.RWMutex
	rooms   map[string]*room

	// 入站事件名 → 处理函数的分发表
	handlers map[string]eventHandler

	collabService *service.CollaborationService
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(collabService *service.CollaborationService) *Hub {
	if collabService == nil {
		panic("CollaborationService cannot be nil for Hub")
	}
	h := &Hub{
		messageChan:   make(chan HubMessage, 512),
		rooms:         make(map[string]*room),
		collabService: collabService,
	}
	h.handlers = newDispatchTable()
	return h
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
// 同一条连接的事件按到达顺序处理；耗时的副作用（历史读取、缓存写入）
// 都转移到各自的 goroutine，循环本身只做内存操作和非阻塞发送。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			log.WithField("session_id", msg.Client.SessionID()).Info("Client connected")
		case "unregister":
			h.disconnectClient(msg.Client)
		case "event":
			h.dispatch(msg)
		default:
			log.Warnf("Received unknown hub message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

// Stop 关闭消息通道，使 Run 退出。
func (h *Hub) Stop() {
	close(h.messageChan)
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 false 表示队列已满，消息被丢弃。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"event":        msg.Event,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// --- 房间注册表 ---

// getOrCreateRoom 返回房间的成员集合，必要时创建。
func (h *Hub) getOrCreateRoom(roomID string) *room {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{clients: make(map[*Client]bool)}
		h.rooms[roomID] = r
	}
	return r
}

// join 把客户端加入房间，返回新的成员数。
func (h *Hub) join(roomID string, c *Client) int {
	r := h.getOrCreateRoom(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = true
	return len(r.clients)
}

// leave 把客户端移出房间。返回剩余成员数；房间变空时返回 (0, true)，
// 此时内存条目被移除，持久化的房间记录不受影响。
func (h *Hub) leave(roomID string, c *Client) (remaining int, emptied bool) {
	h.roomsMu.Lock()
	r, ok := h.rooms[roomID]
	if !ok {
		h.roomsMu.Unlock()
		return 0, false
	}
	r.mu.Lock()
	delete(r.clients, c)
	remaining = len(r.clients)
	if remaining == 0 {
		delete(h.rooms, roomID)
		emptied = true
	}
	r.mu.Unlock()
	h.roomsMu.Unlock()
	return remaining, emptied
}

// removeEverywhere 把断开的客户端从它可能加入的所有房间移除。
// 注册表不维护会话 → 房间的反向索引，因此这里线性扫描全部房间；
// 房间数量不大时可以接受。
func (h *Hub) removeEverywhere(c *Client) []roomChange {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	var changes []roomChange
	for roomID, r := range h.rooms {
		r.mu.Lock()
		if r.clients[c] {
			delete(r.clients, c)
			remaining := len(r.clients)
			if remaining == 0 {
				delete(h.rooms, roomID)
			}
			changes = append(changes, roomChange{roomID: roomID, remaining: remaining})
		}
		r.mu.Unlock()
	}
	return changes
}

type roomChange struct {
	roomID    string
	remaining int
}

// isMember 判断会话是否已加入该房间。
// 未加入房间的绘制类事件在分发层被丢弃，不会触达批处理或缓存。
func (h *Hub) isMember(roomID string, c *Client) bool {
	h.roomsMu.RLock()
	r, ok := h.rooms[roomID]
	h.roomsMu.RUnlock()
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients[c]
}

// --- 广播 ---

// broadcastToRoom 把消息发给房间内除 exclude 外的所有成员。
// exclude 为 nil 时发给所有成员。慢客户端用非阻塞发送跳过，
// 丢一条消息好过阻塞整个房间。
func (h *Hub) broadcastToRoom(roomID string, message []byte, exclude *Client) {
	h.roomsMu.RLock()
	r, ok := h.rooms[roomID]
	h.roomsMu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	recipients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		if c != exclude {
			recipients = append(recipients, c)
		}
	}
	r.mu.Unlock()

	for _, c := range recipients {
		if !c.trySend(message) {
			logrus.WithFields(logrus.Fields{
				"room_id":    roomID,
				"session_id": c.SessionID(),
			}).Warn("Client unavailable during broadcast, skipping this client")
		}
	}
}

// broadcastEvent 序列化事件后广播，序列化失败只记日志。
func (h *Hub) broadcastEvent(roomID string, event string, data interface{}, exclude *Client) {
	message, err := dto.MarshalEvent(event, data)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to marshal broadcast event")
		return
	}
	h.broadcastToRoom(roomID, message, exclude)
}

// --- 连接生命周期 ---

// disconnectClient 处理连接断开：从所有房间移除、通知剩余成员、
// 清理旁路缓存、关闭发送通道。
func (h *Hub) disconnectClient(c *Client) {
	logCtx := logrus.WithField("session_id", c.SessionID())

	changes := h.removeEverywhere(c)
	for _, ch := range changes {
		if ch.remaining == 0 {
			h.collabService.ReleaseRoom(ch.roomID)
			go h.collabService.CleanupRoomState(ch.roomID)
			logCtx.WithField("room_id", ch.roomID).Info("Room empty, removed from Hub")
			continue
		}
		h.broadcastEvent(ch.roomID, dto.EventUpdateUserCount, ch.remaining, nil)
		h.broadcastEvent(ch.roomID, dto.EventUserDisconnected, c.SessionID(), nil)
		roomID := ch.roomID
		remaining := ch.remaining
		go func() {
			h.collabService.ForgetSession(roomID, c.SessionID())
			h.collabService.SyncMemberCount(roomID, remaining)
		}()
	}

	c.closeSend()
	logCtx.Info("Client unregistered from Hub")
}

// sendHistory 异步读取房间的命令日志并只发给新加入的会话。
// 空日志不发任何消息；读取失败记日志，不影响已完成的加入。
func (h *Hub) sendHistory(c *Client, roomID string) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":    roomID,
		"session_id": c.SessionID(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmds, err := h.collabService.History(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load drawing history")
		return
	}
	if len(cmds) == 0 {
		return
	}

	entries, err := dto.HistoryFromCommands(cmds)
	if err != nil {
		logCtx.WithError(err).Error("Failed to convert drawing history")
		return
	}

	if err := c.SendEvent(dto.EventDrawingHistory, entries); err != nil {
		logCtx.WithError(err).Warn("Failed to deliver drawing history to client")
		return
	}
	logCtx.WithField("command_count", len(entries)).Info("Drawing history sent to joining client")
}
