package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"chat-room-service/internal/domain"
	"chat-room-service/internal/repository"
)

// GormParticipantRepository 是 ParticipantRepository 接口的 GORM 实现。
// 每个 (room_id, user_id) 唯一一行 (idx_room_user)，状态随转移就地更新，
// 单实例内天然满足 read-your-writes。
type GormParticipantRepository struct {
	db *gorm.DB
}

// NewGormParticipantRepository 创建 GormParticipantRepository 实例
func NewGormParticipantRepository(db *gorm.DB) *GormParticipantRepository {
	if db == nil {
		panic("database connection cannot be nil for GormParticipantRepository")
	}
	return &GormParticipantRepository{db: db}
}

// FindByRoomAndUser 返回 (room, user) 的最新成员记录
func (r *GormParticipantRepository) FindByRoomAndUser(ctx context.Context, roomID, userID uint) (*domain.Participant, error) {
	var p domain.Participant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("gorm: find participant (room %d, user %d): %w", roomID, userID, err)
	}
	return &p, nil
}

// Save 保存成员记录（创建或更新）
func (r *GormParticipantRepository) Save(ctx context.Context, p *domain.Participant) error {
	err := r.db.WithContext(ctx).Save(p).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save participant (room %d, user %d): %w", p.RoomID, p.UserID, err)
	}
	return nil
}

// ExistsWithStatusIn 检查记录状态是否落在给定集合中
func (r *GormParticipantRepository) ExistsWithStatusIn(ctx context.Context, roomID, userID uint, statuses []domain.ParticipantStatus) (bool, error) {
	if len(statuses) == 0 {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("room_id = ? AND user_id = ? AND status IN ?", roomID, userID, statuses).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count participant statuses (room %d, user %d): %w", roomID, userID, err)
	}
	return count > 0, nil
}

// FindActiveByRoom 返回房间内状态为 ACTIVE 的全部成员记录
func (r *GormParticipantRepository) FindActiveByRoom(ctx context.Context, roomID uint) ([]domain.Participant, error) {
	var ps []domain.Participant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND status = ?", roomID, domain.StatusActive).
		Find(&ps).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find active participants for room %d: %w", roomID, err)
	}
	return ps, nil
}
