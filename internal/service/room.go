package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
	"github.com/dip1905/Collaborative-Whiteboard/internal/repository"
)

// 房间标识符的最小长度，按字符（rune）计而不是字节数，
// 低于此长度的请求在 HTTP 层就被拒绝。
const minRoomIDLength = 6

// RoomService 负责房间生命周期相关的业务逻辑。
type RoomService struct {
	roomRepo    repository.RoomRepository
	commandRepo repository.CommandRepository
	stateRepo   repository.StateRepository
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(
	roomRepo repository.RoomRepository,
	commandRepo repository.CommandRepository,
	stateRepo repository.StateRepository,
) *RoomService {
	if roomRepo == nil || commandRepo == nil || stateRepo == nil {
		panic("all repositories must be non-nil for RoomService")
	}
	return &RoomService{
		roomRepo:    roomRepo,
		commandRepo: commandRepo,
		stateRepo:   stateRepo,
	}
}

// CreateRoom 创建一个新房间。roomID 全局唯一且不少于 6 个字符。
func (s *RoomService) CreateRoom(ctx context.Context, roomID, roomName string) (*domain.Room, error) {
	logCtx := logrus.WithField("room_id", roomID)

	if utf8.RuneCountInString(roomID) < minRoomIDLength {
		return nil, ErrInvalidRoomID
	}

	exists, err := s.roomRepo.IsRoomIDExists(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check room ID uniqueness")
		return nil, ErrInternalServer
	}
	if exists {
		return nil, ErrRoomIDTaken
	}

	if roomName == "" {
		roomName = roomID
	}
	room := &domain.Room{
		RoomID:       roomID,
		RoomName:     roomName,
		LastActivity: time.Now().UTC(),
	}

	if err := s.roomRepo.Save(ctx, room); err != nil {
		// 并发创建同名房间时唯一索引兜底
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, ErrRoomIDTaken
		}
		logCtx.WithError(err).Error("Failed to save new room")
		return nil, ErrInternalServer
	}

	logCtx.Info("Room created successfully")
	return room, nil
}

// JoinRoom 校验房间存在，供加入前的 HTTP 检查使用。
func (s *RoomService) JoinRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if utf8.RuneCountInString(roomID) < minRoomIDLength {
		return nil, ErrInvalidRoomID
	}

	room, err := s.roomRepo.FindByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to find room")
		return nil, ErrInternalServer
	}
	return room, nil
}

// RoomInfo 汇总房间元数据、命令数量和在线状态快照。
type RoomInfo struct {
	Room         *domain.Room
	DrawingCount int64
	MemberCount  int
	Cursors      map[string]domain.Point
}

// GetRoomInfo 返回房间信息。在线状态来自 Redis 旁路缓存，
// 缓存读取失败不影响主体响应。
func (s *RoomService) GetRoomInfo(ctx context.Context, roomID string) (*RoomInfo, error) {
	room, err := s.JoinRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	logCtx := logrus.WithField("room_id", roomID)

	count, err := s.commandRepo.CountByRoom(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to count drawing commands")
		return nil, ErrInternalServer
	}

	info := &RoomInfo{
		Room:         room,
		DrawingCount: count,
	}

	if members, err := s.stateRepo.GetMemberCount(ctx, roomID); err != nil {
		logCtx.WithError(err).Warn("Failed to read member count from cache")
	} else {
		info.MemberCount = members
	}
	if cursors, err := s.stateRepo.GetCursors(ctx, roomID); err != nil {
		logCtx.WithError(err).Warn("Failed to read cursors from cache")
	} else {
		info.Cursors = cursors
	}

	return info, nil
}
