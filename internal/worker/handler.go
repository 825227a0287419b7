package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"chat-room-service/internal/repository"
	"chat-room-service/internal/tasks"
)

// MessagePersistenceHandler 处理聊天消息落库任务。
type MessagePersistenceHandler struct {
	messageRepo repository.MessageRepository
}

// NewMessagePersistenceHandler 创建 Handler 实例。
func NewMessagePersistenceHandler(messageRepo repository.MessageRepository) *MessagePersistenceHandler {
	return &MessagePersistenceHandler{messageRepo: messageRepo}
}

// ProcessTask 实现 asynq.Handler 接口。
func (h *MessagePersistenceHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	retryCount, _ := asynq.GetRetryCount(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"retry":     retryCount,
	})

	var payload tasks.MessagePersistencePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal message persistence payload")
		// 坏 payload 重试没有意义
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	msg := payload.Message
	if err := h.messageRepo.Save(ctx, &msg); err != nil {
		logCtx.WithError(err).Errorf("Failed to persist chat message for room %d", msg.RoomID)
		return fmt.Errorf("failed to persist message for room %d: %w", msg.RoomID, err)
	}

	logCtx.WithField("room_id", msg.RoomID).Debug("Chat message persisted")
	return nil
}
