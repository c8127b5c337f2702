package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
	"github.com/dip1905/Collaborative-Whiteboard/internal/service"
)

// RoomHandler 处理房间的 REST 接口。
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建房间处理器。
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

// CreateRoomRequest 是创建房间的请求体。
type CreateRoomRequest struct {
	RoomID   string `json:"roomId" binding:"required"`
	RoomName string `json:"roomName"`
}

// JoinRoomRequest 是加入房间的请求体。
type JoinRoomRequest struct {
	RoomID string `json:"roomId" binding:"required"`
}

// RoomResponse 是房间元数据的出参。
type RoomResponse struct {
	RoomID       string `json:"roomId"`
	RoomName     string `json:"roomName"`
	CreatedAt    int64  `json:"createdAt"`
	LastActivity int64  `json:"lastActivity"`
}

// RoomInfoResponse 在元数据之外附带命令数和在线状态。
type RoomInfoResponse struct {
	RoomResponse
	DrawingCount int64                   `json:"drawingCount"`
	MemberCount  int                     `json:"memberCount"`
	Cursors      map[string]domain.Point `json:"cursors,omitempty"`
}

// CreateRoom 处理 POST /api/rooms/create。
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "roomId is required")
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), req.RoomID, req.RoomName)
	if err != nil {
		h.mapRoomError(c, err)
		return
	}

	logrus.WithField("room_id", room.RoomID).Info("Room created via API")
	respondCreated(c, toRoomResponse(room))
}

// JoinRoom 处理 POST /api/rooms/join：校验房间存在并返回元数据。
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "roomId is required")
		return
	}

	room, err := h.roomService.JoinRoom(c.Request.Context(), req.RoomID)
	if err != nil {
		h.mapRoomError(c, err)
		return
	}

	respondOK(c, toRoomResponse(room))
}

// GetRoomInfo 处理 GET /api/rooms/:roomId。
func (h *RoomHandler) GetRoomInfo(c *gin.Context) {
	roomID := c.Param("roomId")
	if roomID == "" {
		respondError(c, http.StatusBadRequest, "roomId is required")
		return
	}

	info, err := h.roomService.GetRoomInfo(c.Request.Context(), roomID)
	if err != nil {
		h.mapRoomError(c, err)
		return
	}

	resp := RoomInfoResponse{
		RoomResponse: toRoomResponse(info.Room),
		DrawingCount: info.DrawingCount,
		MemberCount:  info.MemberCount,
		Cursors:      info.Cursors,
	}
	respondOK(c, resp)
}

// mapRoomError 把服务层错误映射为 HTTP 状态码。
func (h *RoomHandler) mapRoomError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRoomID):
		respondError(c, http.StatusBadRequest, "room id must be at least 6 characters")
	case errors.Is(err, service.ErrRoomIDTaken):
		respondError(c, http.StatusBadRequest, "room id is already taken")
	case errors.Is(err, service.ErrRoomNotFound):
		respondError(c, http.StatusNotFound, "room not found")
	default:
		logrus.WithError(err).Error("Unhandled room service error")
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

func toRoomResponse(room *domain.Room) RoomResponse {
	return RoomResponse{
		RoomID:       room.RoomID,
		RoomName:     room.RoomName,
		CreatedAt:    room.CreatedAt.UnixMilli(),
		LastActivity: room.LastActivity.UnixMilli(),
	}
}
