package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"chat-room-service/internal/service"
	"chat-room-service/internal/tasks"
)

// PresenceReconcileHandler 处理 presence 重建任务：
// 单房间重建 (presence:reconcile) 和周期性全量巡检 (presence:sweep)。
// 巡检把每个活跃房间的 Presence Cache 与 Membership Store 的 ACTIVE
// 集合对账，检测到的不一致通过重建修复。
type PresenceReconcileHandler struct {
	membership *service.MembershipService
}

// NewPresenceReconcileHandler 创建 Handler 实例。
func NewPresenceReconcileHandler(membership *service.MembershipService) *PresenceReconcileHandler {
	return &PresenceReconcileHandler{membership: membership}
}

// ProcessReconcileTask 重建单个房间的 Presence Cache。
func (h *PresenceReconcileHandler) ProcessReconcileTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.PresenceReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	repaired, err := h.membership.ReconcilePresence(ctx, payload.RoomID)
	if err != nil {
		return fmt.Errorf("failed to reconcile presence for room %d: %w", payload.RoomID, err)
	}
	if repaired {
		logrus.WithField("room_id", payload.RoomID).Info("Presence cache repaired by reconcile task")
	}
	return nil
}

// ProcessSweepTask 对账所有活跃房间 (由 asynq.Scheduler 周期触发)。
func (h *PresenceReconcileHandler) ProcessSweepTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	rooms, err := h.membership.ListActiveRooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active rooms for presence sweep: %w", err)
	}

	var repairedCount int
	for _, room := range rooms {
		repaired, err := h.membership.ReconcilePresence(ctx, room.ID)
		if err != nil {
			// 单个房间失败不中断整轮巡检
			logCtx.WithError(err).Warnf("Presence sweep failed for room %d", room.ID)
			continue
		}
		if repaired {
			repairedCount++
		}
	}

	logCtx.WithFields(logrus.Fields{
		"rooms_checked":  len(rooms),
		"rooms_repaired": repairedCount,
	}).Info("Presence sweep completed")
	return nil
}
