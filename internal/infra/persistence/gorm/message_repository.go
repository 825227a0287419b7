package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"chat-room-service/internal/domain"
)

// GormMessageRepository 是 MessageRepository 接口的 GORM 实现
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GormMessageRepository 实例
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// Save 追加一条消息记录
func (r *GormMessageRepository) Save(ctx context.Context, msg *domain.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("gorm: save message (room %d, sender %d): %w", msg.RoomID, msg.SenderID, err)
	}
	return nil
}

// FindRecentByRoom 返回房间最近的 limit 条消息 (时间倒序)
func (r *GormMessageRepository) FindRecentByRoom(ctx context.Context, roomID uint, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var msgs []domain.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find recent messages for room %d: %w", roomID, err)
	}
	return msgs, nil
}

// CountByRoom 返回房间的消息总数
func (r *GormMessageRepository) CountByRoom(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count messages for room %d: %w", roomID, err)
	}
	return count, nil
}
