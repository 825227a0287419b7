package repository

import (
	"context"

	"chat-room-service/internal/domain"
)

// RoomRepository 定义了房间目录 (Room Registry) 的存储和检索操作。
// Coordinator 只读：房间的创建/关闭由外层请求处理器调用。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间。
	// 如果房间不存在，返回 repository.ErrRoomNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// Save 保存房间信息。ID 已存在则更新，否则创建。
	Save(ctx context.Context, room *domain.Room) error

	// FindActiveOrderByCreatedAtDesc 返回所有活跃房间，按创建时间倒序
	// (最新创建的在前)。非活跃房间被排除但保留历史。
	FindActiveOrderByCreatedAtDesc(ctx context.Context) ([]domain.Room, error)
}
