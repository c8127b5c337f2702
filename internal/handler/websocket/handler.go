package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dip1905/Collaborative-Whiteboard/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 允许任意来源，跨域控制交给部署层
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler 负责把 HTTP 请求升级为 WebSocket 连接并注册到 Hub。
type Handler struct {
	hub *hub.Hub
}

// NewHandler 创建 WebSocket 处理器。
func NewHandler(h *hub.Hub) *Handler {
	if h == nil {
		panic("Hub cannot be nil for websocket Handler")
	}
	return &Handler{hub: h}
}

// Serve 处理 GET /ws：升级连接，生成会话标识，启动读写泵。
func (h *Handler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade websocket connection")
		return
	}

	sessionID := uuid.NewString()
	client := hub.NewClient(h.hub, conn, sessionID)
	h.hub.QueueMessage(hub.HubMessage{Type: "register", Client: client})

	logrus.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"remote_addr": c.Request.RemoteAddr,
	}).Info("WebSocket connection established")

	go client.WritePump()
	go client.ReadPump()
}
