package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"chat-room-service/internal/domain"
	"chat-room-service/internal/repository"
)

// RoomService 负责房间目录 (Room Registry) 的业务逻辑。
// 房间的创建/关闭由外层请求处理器调用；Coordinator 只读这张目录。
type RoomService struct {
	roomRepo repository.RoomRepository
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(roomRepo repository.RoomRepository) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo}
}

// CreateRoom 创建一个新房间并返回 RoomListChangedEvent。
// 创建者 ID 一旦写入即不可变。
func (s *RoomService) CreateRoom(ctx context.Context, name string, creatorID uint, maxParticipants *int) (*domain.Room, []domain.Event, error) {
	logCtx := logrus.WithFields(logrus.Fields{"creator_id": creatorID, "room_name": name})

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: room name must not be empty", ErrInvalidMessage)
	}
	if maxParticipants != nil && *maxParticipants <= 0 {
		return nil, nil, fmt.Errorf("%w: max participants must be positive", ErrInvalidMessage)
	}

	room := &domain.Room{
		Name:            name,
		CreatorID:       creatorID,
		Active:          true,
		MaxParticipants: maxParticipants,
	}
	if err := s.roomRepo.Save(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to save new room")
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	logCtx.WithField("room_id", room.ID).Info("Room created successfully")
	events := []domain.Event{
		domain.RoomListChangedEvent{
			BaseEvent: domain.NewBaseEvent(room.ID),
			Type:      domain.EventTypeRoomListChanged,
		},
	}
	return room, events, nil
}

// FindRoomByID 查找房间，供 handler 在升级 WebSocket 之前验证房间存在。
func (s *RoomService) FindRoomByID(ctx context.Context, roomID uint) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("FindRoomByID: repository error")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !room.Active {
		// 关闭的房间保留历史但对外视为不存在
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// DeactivateRoom 关闭房间 (软删除)：active=false，从此不出现在列表中。
// 房间内成员的清退由外部调度器按 SystemRemove 逐个执行。
func (s *RoomService) DeactivateRoom(ctx context.Context, roomID, actorID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "actor_id": actorID})

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if room.CreatorID != actorID {
		logCtx.Warn("DeactivateRoom rejected: actor is not the room creator")
		return ErrForbidden
	}
	if !room.Active {
		return nil // 已经关闭，幂等成功
	}

	room.Active = false
	if err := s.roomRepo.Save(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to deactivate room")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	logCtx.Info("Room deactivated")
	return nil
}
