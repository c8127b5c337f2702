package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
	"github.com/dip1905/Collaborative-Whiteboard/internal/repository"
)

// 批处理参数。与客户端的绘制节奏匹配：
// 连续绘制时每 10 个点落一条 stroke，停笔 1 秒后把剩余的点刷出去。
const (
	FlushThreshold = 10
	FlushDebounce  = 1000 * time.Millisecond
)

// 每个房间待持久化命令队列的缓冲大小
const persistQueueSize = 64

// CollaborationService 负责绘制事件的批处理、clear 处理和历史回放。
// 广播不在这里：转发由 Hub 在接到事件时立即完成，
// 持久化是同一事件的独立副作用，写库失败不回滚已发出的广播。
type CollaborationService struct {
	commandRepo repository.CommandRepository
	roomRepo    repository.RoomRepository
	stateRepo   repository.StateRepository

	mu       sync.Mutex
	batchers map[string]*roomBatcher
}

// NewCollaborationService 创建 CollaborationService 实例。
func NewCollaborationService(
	commandRepo repository.CommandRepository,
	roomRepo repository.RoomRepository,
	stateRepo repository.StateRepository,
) *CollaborationService {
	if commandRepo == nil || roomRepo == nil || stateRepo == nil {
		panic("all repositories must be non-nil for CollaborationService")
	}
	return &CollaborationService{
		commandRepo: commandRepo,
		roomRepo:    roomRepo,
		stateRepo:   stateRepo,
		batchers:    make(map[string]*roomBatcher),
	}
}

// roomBatcher 持有一个房间的待刷新点缓冲。
// 缓冲按房间共享：同一房间内多个用户并发绘制时，线段会交织进同一个缓冲，
// 可能合并成一条 stroke 持久化。这是沿用的已知简化，不做按会话拆分。
type roomBatcher struct {
	roomID string
	svc    *CollaborationService

	mu      sync.Mutex
	points  []domain.Point
	color   string
	width   int
	timer   *time.Timer // 防抖定时器，任一时刻至多一个
	closing bool        // 房间已空，等最后一次刷新后关闭
	closed  bool

	// 待持久化命令按顺序进入 queue，由唯一的 persistLoop 串行写库。
	// 这保证了同一房间的刷新彼此线性化，落库顺序等于提交顺序。
	queue chan domain.DrawingCommand
}

// AddSegment 处理一条 draw-move 线段：两个端点进入缓冲，
// 达到阈值立即刷新，否则重置防抖定时器。
func (s *CollaborationService) AddSegment(roomID string, startX, startY, x, y float64, color string, strokeWidth int) {
	b := s.getBatcher(roomID)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.points = append(b.points, domain.Point{X: startX, Y: startY}, domain.Point{X: x, Y: y})
	b.color = color
	b.width = strokeWidth

	if len(b.points) >= FlushThreshold {
		b.stopTimerLocked()
		b.flushLocked()
		return
	}
	b.armTimerLocked()
}

// ClearCanvas 丢弃房间的未刷新缓冲（这些点永远不会被持久化），
// 然后把一条 clear 命令排进持久化队列，排在所有已入队的 stroke 之后。
func (s *CollaborationService) ClearCanvas(roomID string) {
	b := s.getBatcher(roomID)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.points = nil
	b.stopTimerLocked()
	b.enqueueLocked(domain.NewClearCommand(roomID, time.Now().UTC()))
}

// History 返回房间的完整命令日志，按追加顺序。
// 房间不存在或没有历史都返回空切片，不是错误。
func (s *CollaborationService) History(ctx context.Context, roomID string) ([]domain.DrawingCommand, error) {
	cmds, err := s.commandRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return cmds, nil
}

// ReleaseRoom 在房间变空时调用。缓冲里还有点或定时器未触发时延迟关闭，
// 保证最后一个成员断开后防抖刷新仍然会发生。
func (s *CollaborationService) ReleaseRoom(roomID string) {
	s.mu.Lock()
	b := s.batchers[roomID]
	s.mu.Unlock()
	if b == nil {
		return
	}

	b.mu.Lock()
	b.closing = true
	b.mu.Unlock()
	b.maybeClose()
}

// --- 旁路状态缓存（失败只记日志，见 StateRepository 注释） ---

// SyncMemberCount 把当前成员数写进 Redis 缓存。
func (s *CollaborationService) SyncMemberCount(roomID string, count int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.stateRepo.SetMemberCount(ctx, roomID, count); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("Failed to sync member count to cache")
	}
}

// RecordCursor 缓存会话的最新光标位置。
func (s *CollaborationService) RecordCursor(roomID, sessionID string, x, y float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.stateRepo.SetCursor(ctx, roomID, sessionID, domain.Point{X: x, Y: y}); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id":    roomID,
			"session_id": sessionID,
		}).Warn("Failed to cache cursor position")
	}
}

// ForgetSession 清除会话在房间内的光标缓存。
func (s *CollaborationService) ForgetSession(roomID, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.stateRepo.RemoveCursor(ctx, roomID, sessionID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id":    roomID,
			"session_id": sessionID,
		}).Warn("Failed to remove cursor from cache")
	}
}

// CleanupRoomState 清理空房间的 Redis key。
func (s *CollaborationService) CleanupRoomState(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.stateRepo.CleanupRoom(ctx, roomID); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("Failed to cleanup room state cache")
	}
}

// --- 内部实现 ---

// getBatcher 返回房间的批处理器，必要时创建。
// 房间在关闭途中又有新事件进来时复活或替换。
func (s *CollaborationService) getBatcher(roomID string) *roomBatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.batchers[roomID]; ok {
		b.mu.Lock()
		if !b.closed {
			b.closing = false
			b.mu.Unlock()
			return b
		}
		b.mu.Unlock()
		// 已关闭的实例不能复用，落下去创建新的
	}

	b := &roomBatcher{
		roomID: roomID,
		svc:    s,
		queue:  make(chan domain.DrawingCommand, persistQueueSize),
	}
	s.batchers[roomID] = b
	go b.persistLoop()
	return b
}

// removeBatcher 从注册表中移除批处理器，带身份检查防止误删新实例。
func (s *CollaborationService) removeBatcher(roomID string, b *roomBatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchers[roomID] == b {
		delete(s.batchers, roomID)
	}
}

// armTimerLocked 取消并重新设置防抖定时器（trailing edge）。
// 调用方必须持有 b.mu。
func (b *roomBatcher) armTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(FlushDebounce, b.flushOnTimer)
}

// stopTimerLocked 取消当前定时器（如果有）。调用方必须持有 b.mu。
func (b *roomBatcher) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// flushOnTimer 是防抖定时器到期时的回调。
func (b *roomBatcher) flushOnTimer() {
	b.mu.Lock()
	b.timer = nil
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.flushLocked()
	b.mu.Unlock()
	b.maybeClose()
}

// maybeClose 在没有任何未完成工作（缓冲、定时器、队列）且房间已空时
// 关闭批处理器。persistLoop 每消费一条命令后也会调用，
// 保证延迟关闭最终会发生。
func (b *roomBatcher) maybeClose() {
	b.mu.Lock()
	shouldClose := b.closing && !b.closed &&
		len(b.points) == 0 && b.timer == nil && len(b.queue) == 0
	if shouldClose {
		b.closed = true
	}
	b.mu.Unlock()

	if shouldClose {
		close(b.queue)
		b.svc.removeBatcher(b.roomID, b)
	}
}

// flushLocked 把当前缓冲转换成一条 stroke 命令并入队。
// 不足 2 个点时什么都不做。调用方必须持有 b.mu。
func (b *roomBatcher) flushLocked() {
	if len(b.points) < 2 {
		return
	}
	cmd, err := domain.NewStrokeCommand(b.roomID, domain.StrokeData{
		Points:      b.points,
		Color:       b.color,
		StrokeWidth: b.width,
	}, time.Now().UTC())
	if err != nil {
		logrus.WithError(err).WithField("room_id", b.roomID).Error("Failed to build stroke command, dropping batch")
		b.points = nil
		return
	}
	b.points = nil
	b.enqueueLocked(cmd)
}

// enqueueLocked 把命令放进持久化队列。队列满说明写库严重滞后，
// 丢弃并记日志，不能阻塞事件处理。调用方必须持有 b.mu。
func (b *roomBatcher) enqueueLocked(cmd domain.DrawingCommand) {
	if b.closed {
		logrus.WithField("room_id", b.roomID).Warn("Batcher already closed, dropping command")
		return
	}
	select {
	case b.queue <- cmd:
	default:
		logrus.WithFields(logrus.Fields{
			"room_id":  b.roomID,
			"cmd_type": cmd.CmdType,
		}).Warn("Persist queue full, dropping command")
	}
}

// persistLoop 串行消费本房间的命令队列：追加到日志并推进 LastActivity。
// 写库失败记录日志后继续，绝不影响已完成的广播。
func (b *roomBatcher) persistLoop() {
	for cmd := range b.queue {
		b.persistOne(cmd)
		b.maybeClose()
	}
}

func (b *roomBatcher) persistOne(cmd domain.DrawingCommand) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.svc.commandRepo.Append(ctx, &cmd); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id":  b.roomID,
			"cmd_type": cmd.CmdType,
		}).Error("Failed to persist drawing command")
		return
	}

	if err := b.svc.roomRepo.TouchActivity(ctx, b.roomID, cmd.Timestamp); err != nil {
		logrus.WithError(err).WithField("room_id", b.roomID).Error("Failed to touch room activity")
	}
}
