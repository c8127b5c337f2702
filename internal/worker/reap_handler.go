package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/dip1905/Collaborative-Whiteboard/internal/repository"
	"github.com/dip1905/Collaborative-Whiteboard/internal/tasks"
)

// RoomReapHandler 处理闲置房间回收任务：删除最后活动时间早于
// 保留期限的房间及其全部绘图命令。
type RoomReapHandler struct {
	roomRepo repository.RoomRepository
}

// NewRoomReapHandler 创建 Handler 实例
func NewRoomReapHandler(roomRepo repository.RoomRepository) *RoomReapHandler {
	return &RoomReapHandler{roomRepo: roomRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomReapHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
	})
	logCtx.Info("Processing room reap task...")

	var payload tasks.RoomReapPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RetentionHours <= 0 {
		logCtx.Warnf("Invalid retention hours %d, skipping", payload.RetentionHours)
		return fmt.Errorf("invalid retention hours %d: %w", payload.RetentionHours, asynq.SkipRetry)
	}

	cutoff := time.Now().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	deleted, err := h.roomRepo.DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		logCtx.WithError(err).Error("Failed to delete inactive rooms")
		return fmt.Errorf("failed to delete inactive rooms: %w", err)
	}

	logCtx.WithFields(logrus.Fields{
		"deleted_rooms":   deleted,
		"retention_hours": payload.RetentionHours,
	}).Info("Room reap task processed successfully")
	return nil
}
