package repository

import (
	"context"

	"chat-room-service/internal/domain"
)

// MessageRepository 定义了聊天消息日志的持久化操作。
type MessageRepository interface {
	// Save 追加一条消息记录。
	Save(ctx context.Context, msg *domain.Message) error

	// FindRecentByRoom 返回房间最近的 limit 条消息，按时间倒序。
	FindRecentByRoom(ctx context.Context, roomID uint, limit int) ([]domain.Message, error)

	// CountByRoom 返回房间的消息总数。
	CountByRoom(ctx context.Context, roomID uint) (int64, error)
}
