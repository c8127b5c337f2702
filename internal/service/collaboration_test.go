package service_test // 测试包

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dip1905/Collaborative-Whiteboard/internal/domain"
	"github.com/dip1905/Collaborative-Whiteboard/internal/repository/mocks"
	"github.com/dip1905/Collaborative-Whiteboard/internal/service"
)

// newCollabService 构建带全套 Mock 的 CollaborationService。
func newCollabService(t *testing.T) (*service.CollaborationService, *mocks.CommandRepository, *mocks.RoomRepository, *mocks.StateRepository) {
	t.Helper()
	mockCmdRepo := new(mocks.CommandRepository)
	mockRoomRepo := new(mocks.RoomRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := service.NewCollaborationService(mockCmdRepo, mockRoomRepo, mockStateRepo)
	return svc, mockCmdRepo, mockRoomRepo, mockStateRepo
}

// waitSignal 等待持久化回调触发，超时则直接失败。
func waitSignal(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal(msg)
	}
}

// --- 测试批量刷新 ---

func TestCollaborationService_AddSegment_FlushesAtThreshold(t *testing.T) {
	// Arrange
	svc, mockCmdRepo, mockRoomRepo, _ := newCollabService(t)
	roomID := "room-threshold"
	persisted := make(chan struct{}, 1)

	mockCmdRepo.On("Append", mock.Anything, mock.MatchedBy(func(cmd *domain.DrawingCommand) bool {
		if cmd.RoomID != roomID || cmd.CmdType != domain.CmdTypeStroke {
			return false
		}
		stroke, err := cmd.ParseStroke()
		if !assert.NoError(t, err) {
			return false
		}
		// 5 条线段，每条贡献起点和终点，共 10 个点，且保持提交顺序
		assert.Len(t, stroke.Points, 10)
		assert.Equal(t, domain.Point{X: 0, Y: 0}, stroke.Points[0])
		assert.Equal(t, domain.Point{X: 5, Y: 50}, stroke.Points[9])
		assert.Equal(t, "#ff0000", stroke.Color)
		assert.Equal(t, 3, stroke.StrokeWidth)
		return true
	})).
		Run(func(args mock.Arguments) { persisted <- struct{}{} }).
		Return(nil).Once()
	var touched atomic.Int32
	mockRoomRepo.On("TouchActivity", mock.Anything, roomID, mock.Anything).
		Run(func(args mock.Arguments) { touched.Add(1) }).
		Return(nil).Once()

	// Act: 第 5 条线段把缓冲推到阈值，立即刷新
	for i := 0; i < 5; i++ {
		svc.AddSegment(roomID, float64(i), float64(i*10), float64(i+1), float64((i+1)*10), "#ff0000", 3)
	}

	// Assert
	waitSignal(t, persisted, 2*time.Second, "stroke 应在达到阈值后被立即持久化")
	// 持久化是异步副作用，等 TouchActivity 调用也完成
	assert.Eventually(t, func() bool {
		return touched.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
	mockCmdRepo.AssertExpectations(t)
}

func TestCollaborationService_AddSegment_SplitsLongDrawingIntoStrokes(t *testing.T) {
	// Arrange
	svc, mockCmdRepo, mockRoomRepo, _ := newCollabService(t)
	roomID := "room-split"

	var sizesMu sync.Mutex
	var sizes []int
	done := make(chan struct{}, 3)

	mockCmdRepo.On("Append", mock.Anything, mock.AnythingOfType("*domain.DrawingCommand")).
		Run(func(args mock.Arguments) {
			cmd := args.Get(1).(*domain.DrawingCommand)
			stroke, err := cmd.ParseStroke()
			if assert.NoError(t, err) {
				sizesMu.Lock()
				sizes = append(sizes, len(stroke.Points))
				sizesMu.Unlock()
			}
			done <- struct{}{}
		}).
		Return(nil).Times(3)
	mockRoomRepo.On("TouchActivity", mock.Anything, roomID, mock.Anything).Return(nil).Maybe()

	// Act: 12 条线段共 24 个点，前两批满 10 个点即时刷新，剩余 4 个点靠防抖
	for i := 0; i < 12; i++ {
		svc.AddSegment(roomID, float64(i), 0, float64(i+1), 0, "#222222", 2)
	}

	// Assert: 24 个点拆成 10/10/4 三条 stroke
	for i := 0; i < 3; i++ {
		waitSignal(t, done, service.FlushDebounce+2*time.Second, "期望的 stroke 未被持久化")
	}
	sizesMu.Lock()
	defer sizesMu.Unlock()
	assert.Equal(t, []int{10, 10, 4}, sizes)
	mockCmdRepo.AssertExpectations(t)
}

func TestCollaborationService_AddSegment_DebounceFlush(t *testing.T) {
	// Arrange
	svc, mockCmdRepo, mockRoomRepo, _ := newCollabService(t)
	roomID := "room-debounce"
	persisted := make(chan struct{}, 1)

	mockCmdRepo.On("Append", mock.Anything, mock.MatchedBy(func(cmd *domain.DrawingCommand) bool {
		stroke, err := cmd.ParseStroke()
		if !assert.NoError(t, err) {
			return false
		}
		// 未达阈值的残留点由防抖定时器刷出
		assert.Len(t, stroke.Points, 2)
		return cmd.CmdType == domain.CmdTypeStroke
	})).
		Run(func(args mock.Arguments) { persisted <- struct{}{} }).
		Return(nil).Once()
	mockRoomRepo.On("TouchActivity", mock.Anything, roomID, mock.Anything).Return(nil).Maybe()

	// Act: 只画一条线段，然后停笔
	svc.AddSegment(roomID, 1, 2, 3, 4, "#000000", 2)

	// Assert: 刷新发生在防抖窗口之后，而不是立即
	select {
	case <-persisted:
		t.Fatal("stroke 不应在防抖窗口结束前被持久化")
	case <-time.After(200 * time.Millisecond):
	}
	waitSignal(t, persisted, service.FlushDebounce+2*time.Second, "stroke 应在停笔防抖后被持久化")
	mockCmdRepo.AssertExpectations(t)
}

func TestCollaborationService_ClearCanvas_DiscardsPendingBuffer(t *testing.T) {
	// Arrange
	svc, mockCmdRepo, mockRoomRepo, _ := newCollabService(t)
	roomID := "room-clear"
	persisted := make(chan struct{}, 1)

	// 只预期一条 clear 命令；缓冲里的点被丢弃，不应出现 stroke
	mockCmdRepo.On("Append", mock.Anything, mock.MatchedBy(func(cmd *domain.DrawingCommand) bool {
		return cmd.RoomID == roomID && cmd.CmdType == domain.CmdTypeClear
	})).
		Run(func(args mock.Arguments) { persisted <- struct{}{} }).
		Return(nil).Once()
	mockRoomRepo.On("TouchActivity", mock.Anything, roomID, mock.Anything).Return(nil).Maybe()

	// Act
	svc.AddSegment(roomID, 1, 1, 2, 2, "#00ff00", 1)
	svc.ClearCanvas(roomID)

	// Assert
	waitSignal(t, persisted, 2*time.Second, "clear 命令应被持久化")
	// 等过防抖窗口，确认被丢弃的点没有被补刷出来
	time.Sleep(service.FlushDebounce + 300*time.Millisecond)
	mockCmdRepo.AssertNumberOfCalls(t, "Append", 1)
	mockCmdRepo.AssertExpectations(t)
}

func TestCollaborationService_Ordering_StrokeBeforeClear(t *testing.T) {
	// Arrange
	svc, mockCmdRepo, mockRoomRepo, _ := newCollabService(t)
	roomID := "room-order"

	var orderMu sync.Mutex
	var order []string
	done := make(chan struct{}, 2)

	mockCmdRepo.On("Append", mock.Anything, mock.AnythingOfType("*domain.DrawingCommand")).
		Run(func(args mock.Arguments) {
			cmd := args.Get(1).(*domain.DrawingCommand)
			orderMu.Lock()
			order = append(order, cmd.CmdType)
			orderMu.Unlock()
			done <- struct{}{}
		}).
		Return(nil).Twice()
	mockRoomRepo.On("TouchActivity", mock.Anything, roomID, mock.Anything).Return(nil).Maybe()

	// Act: 先把缓冲推到阈值（stroke 入队），紧接着 clear
	for i := 0; i < 5; i++ {
		svc.AddSegment(roomID, float64(i), 0, float64(i+1), 0, "#0000ff", 2)
	}
	svc.ClearCanvas(roomID)

	// Assert: 落库顺序等于提交顺序
	waitSignal(t, done, 2*time.Second, "第一条命令未被持久化")
	waitSignal(t, done, 2*time.Second, "第二条命令未被持久化")
	orderMu.Lock()
	defer orderMu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, domain.CmdTypeStroke, order[0], "stroke 应先于 clear 落库")
	assert.Equal(t, domain.CmdTypeClear, order[1])
}

func TestCollaborationService_ReleaseRoom_FlushesPendingAfterLastLeave(t *testing.T) {
	// Arrange
	svc, mockCmdRepo, mockRoomRepo, _ := newCollabService(t)
	roomID := "room-release"
	persisted := make(chan struct{}, 1)

	mockCmdRepo.On("Append", mock.Anything, mock.MatchedBy(func(cmd *domain.DrawingCommand) bool {
		return cmd.CmdType == domain.CmdTypeStroke
	})).
		Run(func(args mock.Arguments) { persisted <- struct{}{} }).
		Return(nil).Once()
	mockRoomRepo.On("TouchActivity", mock.Anything, roomID, mock.Anything).Return(nil).Maybe()

	// Act: 最后一个成员画了一笔就断开，防抖定时器还挂着
	svc.AddSegment(roomID, 0, 0, 1, 1, "#123456", 2)
	svc.ReleaseRoom(roomID)

	// Assert: 房间释放不取消待刷新的缓冲
	waitSignal(t, persisted, service.FlushDebounce+2*time.Second, "房间释放后挂起的缓冲仍应被刷新持久化")
	mockCmdRepo.AssertExpectations(t)
}

func TestCollaborationService_PersistFailure_DoesNotStopQueue(t *testing.T) {
	// Arrange
	svc, mockCmdRepo, mockRoomRepo, _ := newCollabService(t)
	roomID := "room-faulty"
	done := make(chan struct{}, 2)

	// 第一条写库失败，第二条成功；失败只丢弃该条命令
	mockCmdRepo.On("Append", mock.Anything, mock.AnythingOfType("*domain.DrawingCommand")).
		Run(func(args mock.Arguments) { done <- struct{}{} }).
		Return(assert.AnError).Once()
	mockCmdRepo.On("Append", mock.Anything, mock.AnythingOfType("*domain.DrawingCommand")).
		Run(func(args mock.Arguments) { done <- struct{}{} }).
		Return(nil).Once()
	// 失败的那条不应推进房间活跃时间
	var touched atomic.Int32
	mockRoomRepo.On("TouchActivity", mock.Anything, roomID, mock.Anything).
		Run(func(args mock.Arguments) { touched.Add(1) }).
		Return(nil).Once()

	// Act: 连续两次推到阈值
	for i := 0; i < 10; i++ {
		svc.AddSegment(roomID, float64(i), 0, float64(i+1), 0, "#000000", 1)
	}

	// Assert
	waitSignal(t, done, 2*time.Second, "第一条命令的持久化未被尝试")
	waitSignal(t, done, 2*time.Second, "第二条命令的持久化未被尝试")
	assert.Eventually(t, func() bool {
		return touched.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
	mockCmdRepo.AssertExpectations(t)
}

// --- 测试历史回放 ---

func TestCollaborationService_History(t *testing.T) {
	// Arrange
	svc, mockCmdRepo, _, _ := newCollabService(t)
	ctx := context.Background()
	roomID := "room-history"

	stroke, err := domain.NewStrokeCommand(roomID, domain.StrokeData{
		Points:      []domain.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
		Color:       "#ffffff",
		StrokeWidth: 2,
	}, time.Now().UTC())
	require.NoError(t, err)
	clear := domain.NewClearCommand(roomID, time.Now().UTC())

	mockCmdRepo.On("ListByRoom", ctx, roomID).
		Return([]domain.DrawingCommand{stroke, clear}, nil).Once()

	// Act
	cmds, err := svc.History(ctx, roomID)

	// Assert: 返回顺序即存储顺序
	assert.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, domain.CmdTypeStroke, cmds[0].CmdType)
	assert.Equal(t, domain.CmdTypeClear, cmds[1].CmdType)
	mockCmdRepo.AssertExpectations(t)
}

func TestCollaborationService_History_Empty(t *testing.T) {
	// Arrange
	svc, mockCmdRepo, _, _ := newCollabService(t)
	ctx := context.Background()

	mockCmdRepo.On("ListByRoom", ctx, "empty-room").
		Return([]domain.DrawingCommand{}, nil).Once()

	// Act
	cmds, err := svc.History(ctx, "empty-room")

	// Assert: 没有历史不是错误
	assert.NoError(t, err)
	assert.Empty(t, cmds)
	mockCmdRepo.AssertExpectations(t)
}
