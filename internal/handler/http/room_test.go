package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
	"github.com/dip1905/Collaborative-Whiteboard/internal/repository"
	"github.com/dip1905/Collaborative-Whiteboard/internal/repository/mocks"
	"github.com/dip1905/Collaborative-Whiteboard/internal/service"
)

func setupRoomRouter(t *testing.T) (*gin.Engine, *mocks.RoomRepository, *mocks.CommandRepository, *mocks.StateRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mockRoomRepo := new(mocks.RoomRepository)
	mockCmdRepo := new(mocks.CommandRepository)
	mockStateRepo := new(mocks.StateRepository)
	roomService := service.NewRoomService(mockRoomRepo, mockCmdRepo, mockStateRepo)
	handler := NewRoomHandler(roomService)

	router := gin.New()
	api := router.Group("/api/rooms")
	{
		api.POST("/create", handler.CreateRoom)
		api.POST("/join", handler.JoinRoom)
		api.GET("/:roomId", handler.GetRoomInfo)
	}
	return router, mockRoomRepo, mockCmdRepo, mockStateRepo
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestRoomHandler_CreateRoom_Success(t *testing.T) {
	router, mockRoomRepo, _, _ := setupRoomRouter(t)

	mockRoomRepo.On("IsRoomIDExists", mock.Anything, "my-new-room").Return(false, nil).Once()
	mockRoomRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Room")).Return(nil).Once()

	w := doJSON(router, "POST", "/api/rooms/create", `{"roomId": "my-new-room", "roomName": "测试房间"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	mockRoomRepo.AssertExpectations(t)
}

func TestRoomHandler_CreateRoom_TooShortID(t *testing.T) {
	router, mockRoomRepo, _, _ := setupRoomRouter(t)

	w := doJSON(router, "POST", "/api/rooms/create", `{"roomId": "abc"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockRoomRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRoomHandler_CreateRoom_MissingRoomID(t *testing.T) {
	router, _, _, _ := setupRoomRouter(t)

	w := doJSON(router, "POST", "/api/rooms/create", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomHandler_CreateRoom_IDTaken(t *testing.T) {
	router, mockRoomRepo, _, _ := setupRoomRouter(t)

	mockRoomRepo.On("IsRoomIDExists", mock.Anything, "taken-room").Return(true, nil).Once()

	w := doJSON(router, "POST", "/api/rooms/create", `{"roomId": "taken-room"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already taken")
	mockRoomRepo.AssertExpectations(t)
}

func TestRoomHandler_JoinRoom_NotFound(t *testing.T) {
	router, mockRoomRepo, _, _ := setupRoomRouter(t)

	mockRoomRepo.On("FindByRoomID", mock.Anything, "ghost-room").
		Return(nil, repository.ErrRoomNotFound).Once()

	w := doJSON(router, "POST", "/api/rooms/join", `{"roomId": "ghost-room"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockRoomRepo.AssertExpectations(t)
}

func TestRoomHandler_GetRoomInfo_Success(t *testing.T) {
	router, mockRoomRepo, mockCmdRepo, mockStateRepo := setupRoomRouter(t)
	roomID := "info-room"

	mockRoomRepo.On("FindByRoomID", mock.Anything, roomID).
		Return(&domain.Room{ID: 1, RoomID: roomID, RoomName: "信息房间"}, nil).Once()
	mockCmdRepo.On("CountByRoom", mock.Anything, roomID).Return(int64(12), nil).Once()
	mockStateRepo.On("GetMemberCount", mock.Anything, roomID).Return(3, nil).Once()
	mockStateRepo.On("GetCursors", mock.Anything, roomID).
		Return(map[string]domain.Point{"s1": {X: 1, Y: 2}}, nil).Once()

	w := doJSON(router, "GET", "/api/rooms/"+roomID, "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool             `json:"success"`
		Data    RoomInfoResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, roomID, resp.Data.RoomID)
	assert.Equal(t, int64(12), resp.Data.DrawingCount)
	assert.Equal(t, 3, resp.Data.MemberCount)
	assert.Contains(t, resp.Data.Cursors, "s1")
	mockRoomRepo.AssertExpectations(t)
}
