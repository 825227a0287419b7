package repository

import (
	"context"

	"chat-room-service/internal/domain"
)

// PresenceRepository 定义了 Presence Cache (临时层) 的操作契约，
// 通常由 Redis 实现：每个房间一个 hash，field 为用户 ID，value 为昵称。
// 它只是缓存而非日志：允许随时为空或被整体重建，系统不把这视为错误。
// 各房间的 key 相互隔离，不存在跨房间冲突。
type PresenceRepository interface {
	// Put 写入 (覆盖) 一条在场记录。
	Put(ctx context.Context, roomID, userID uint, nickname string) error

	// Remove 删除一条在场记录。记录不存在时同样返回 nil。
	Remove(ctx context.Context, roomID, userID uint) error

	// Has 报告用户当前是否在场。
	Has(ctx context.Context, roomID, userID uint) (bool, error)

	// Entries 返回房间当前的全部在场记录。
	Entries(ctx context.Context, roomID uint) ([]domain.PresenceEntry, error)

	// Count 返回房间当前的在场人数。
	Count(ctx context.Context, roomID uint) (int, error)

	// ReplaceAll 用给定集合原子地替换房间的全部在场记录。
	// 供 reconciliation 从 Membership Store 重建缓存使用。
	ReplaceAll(ctx context.Context, roomID uint, entries []domain.PresenceEntry) error
}
