package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"chat-room-service/internal/domain"
	"chat-room-service/internal/repository"
	"chat-room-service/internal/tasks"
)

// ChatService 负责聊天消息日志：广播路径上的消息通过 asynq 异步落库，
// 避免热路径阻塞在 MySQL 上；历史查询直接走持久层。
type ChatService struct {
	messageRepo repository.MessageRepository
	asynqClient *asynq.Client // 可为 nil (如测试环境)，此时同步落库
}

// NewChatService 创建 ChatService 实例。
func NewChatService(messageRepo repository.MessageRepository, asynqClient *asynq.Client) *ChatService {
	if messageRepo == nil {
		panic("MessageRepository cannot be nil for ChatService")
	}
	return &ChatService{
		messageRepo: messageRepo,
		asynqClient: asynqClient,
	}
}

// RecordMessage 校验并记录一条聊天消息，返回用于广播的消息对象。
// 持久化通过任务队列异步完成；入队失败时退回同步写入，保证不丢消息。
func (s *ChatService) RecordMessage(ctx context.Context, roomID, senderID uint, sender, body string) (*domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "sender_id": senderID})

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: message body must not be empty", ErrInvalidMessage)
	}

	msg := &domain.Message{
		RoomID:    roomID,
		SenderID:  senderID,
		Sender:    sender,
		Body:      body,
		Timestamp: time.Now(),
	}

	if s.asynqClient != nil {
		payload, err := tasks.NewMessagePersistenceTask(*msg)
		if err == nil {
			task := asynq.NewTask(tasks.TypeMessagePersistence, payload)
			if _, err := s.asynqClient.EnqueueContext(ctx, task, asynq.Queue("default")); err == nil {
				return msg, nil
			}
			logCtx.Warn("Failed to enqueue message persistence task, falling back to synchronous save")
		} else {
			logCtx.WithError(err).Warn("Failed to build message persistence payload, falling back to synchronous save")
		}
	}

	if err := s.messageRepo.Save(ctx, msg); err != nil {
		logCtx.WithError(err).Error("Failed to save chat message")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return msg, nil
}

// History 返回房间最近 limit 条消息 (按时间正序，旧消息在前，与聊天窗口
// 从上往下的展示顺序一致) 以及房间的消息总数，供客户端判断还有没有更早的历史。
func (s *ChatService) History(ctx context.Context, roomID uint, limit int) ([]domain.Message, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	msgs, err := s.messageRepo.FindRecentByRoom(ctx, roomID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	total, err := s.messageRepo.CountByRoom(ctx, roomID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// 仓库返回最新在前，这里反转为旧消息在前
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, total, nil
}
