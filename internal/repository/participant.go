package repository

import (
	"context"

	"chat-room-service/internal/domain"
)

// ParticipantRepository 定义了 Membership Store (持久层) 的操作契约。
// 它是成员关系历史与再入场判定的事实来源。
// 对单个 (room, user) 键，在同一个协调器实例内要求 read-your-writes 一致性。
type ParticipantRepository interface {
	// FindByRoomAndUser 返回 (room, user) 的最新成员记录。
	// 不存在时返回 repository.ErrParticipantNotFound。
	FindByRoomAndUser(ctx context.Context, roomID, userID uint) (*domain.Participant, error)

	// Save 保存成员记录 (ID 已存在则更新，否则创建)。
	Save(ctx context.Context, p *domain.Participant) error

	// ExistsWithStatusIn 检查 (room, user) 的记录状态是否落在给定集合中。
	// 用于再入场资格判定 (阻断集合 = BlockedStatuses)。
	ExistsWithStatusIn(ctx context.Context, roomID, userID uint, statuses []domain.ParticipantStatus) (bool, error)

	// FindActiveByRoom 返回某房间状态为 ACTIVE 的全部成员记录。
	// 供 Presence Cache 重建 (reconciliation) 使用。
	FindActiveByRoom(ctx context.Context, roomID uint) ([]domain.Participant, error)
}
