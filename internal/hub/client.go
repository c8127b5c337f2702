package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dip1905/Collaborative-Whiteboard/internal/dto"
)

// Client 是 Hub 与单个 WebSocket 连接之间的中间层。
// 读写各占一个 goroutine，所有出站消息都经过 send 通道串行化。
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// 会话标识，连接建立时生成，出站事件中作为 userId 使用
	sessionID string

	// 出站消息缓冲通道，由 WritePump 独占消费
	send chan []byte

	// sendMu 串行化发送与关闭：持读锁投递，持写锁关闭。
	// 历史回放等异步发送可能与断连并发，不能向已关闭的通道发送。
	sendMu     sync.RWMutex
	sendClosed bool
	closeOnce  sync.Once
}

// NewClient 创建一个绑定到 Hub 的客户端。
func NewClient(h *Hub, conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		hub:       h,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
}

// SessionID 返回该连接的会话标识。
func (c *Client) SessionID() string {
	return c.sessionID
}

// trySend 在客户端未关闭时非阻塞投递消息。
// 返回 false 表示客户端已关闭或队列已满，消息被丢弃。
func (c *Client) trySend(message []byte) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// SendEvent 序列化事件并放入发送队列 (非阻塞)。
// 客户端已断开或队列已满时丢弃消息并返回 nil，慢客户端不反压服务端。
func (c *Client) SendEvent(event string, data interface{}) error {
	message, err := dto.MarshalEvent(event, data)
	if err != nil {
		return err
	}
	if !c.trySend(message) {
		logrus.WithFields(logrus.Fields{
			"session_id": c.sessionID,
			"event":      event,
		}).Warn("Client unavailable for delivery, dropping event")
	}
	return nil
}

// closeSend 关闭发送通道，促使 WritePump 退出。只会执行一次。
// 写锁排除所有在途的 trySend，之后的发送方只会看到 sendClosed。
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.sendClosed = true
		close(c.send)
		c.sendMu.Unlock()
	})
}

// ReadPump 从 WebSocket 连接读取消息并交给 Hub 处理。
// 每个连接只运行一个 ReadPump goroutine。
func (c *Client) ReadPump() {
	logCtx := logrus.WithField("session_id", c.sessionID)

	defer func() {
		c.hub.QueueMessage(HubMessage{Type: "unregister", Client: c})
		c.conn.Close()
		logCtx.Info("ReadPump stopped")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error")
			}
			break
		}

		var env dto.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logCtx.WithError(err).Warn("Failed to parse message envelope, dropping")
			continue
		}
		if env.Event == "" {
			logCtx.Warn("Message without event name, dropping")
			continue
		}

		c.hub.QueueMessage(HubMessage{
			Type:    "event",
			Event:   env.Event,
			Client:  c,
			RawData: env.Data,
		})
	}
}

// WritePump 把 send 通道里的消息写入 WebSocket 连接，并定期发送 ping。
// 每个连接只运行一个 WritePump goroutine，保证写操作串行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	logCtx := logrus.WithField("session_id", c.sessionID)

	defer func() {
		ticker.Stop()
		c.conn.Close()
		logCtx.Info("WritePump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了发送通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logCtx.WithError(err).Warn("WebSocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
