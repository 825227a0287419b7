// Package mocks 提供 repository 接口的 testify mock 实现，供 service 层测试使用。
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-room-service/internal/domain"
)

// RoomRepository 是 repository.RoomRepository 的 mock。
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	args := m.Called(ctx, id)
	var room *domain.Room
	if v := args.Get(0); v != nil {
		room = v.(*domain.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepository) Save(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomRepository) FindActiveOrderByCreatedAtDesc(ctx context.Context) ([]domain.Room, error) {
	args := m.Called(ctx)
	var rooms []domain.Room
	if v := args.Get(0); v != nil {
		rooms = v.([]domain.Room)
	}
	return rooms, args.Error(1)
}

// ParticipantRepository 是 repository.ParticipantRepository 的 mock。
type ParticipantRepository struct {
	mock.Mock
}

func (m *ParticipantRepository) FindByRoomAndUser(ctx context.Context, roomID, userID uint) (*domain.Participant, error) {
	args := m.Called(ctx, roomID, userID)
	var p *domain.Participant
	if v := args.Get(0); v != nil {
		p = v.(*domain.Participant)
	}
	return p, args.Error(1)
}

func (m *ParticipantRepository) Save(ctx context.Context, p *domain.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ParticipantRepository) ExistsWithStatusIn(ctx context.Context, roomID, userID uint, statuses []domain.ParticipantStatus) (bool, error) {
	args := m.Called(ctx, roomID, userID, statuses)
	return args.Bool(0), args.Error(1)
}

func (m *ParticipantRepository) FindActiveByRoom(ctx context.Context, roomID uint) ([]domain.Participant, error) {
	args := m.Called(ctx, roomID)
	var ps []domain.Participant
	if v := args.Get(0); v != nil {
		ps = v.([]domain.Participant)
	}
	return ps, args.Error(1)
}

// PresenceRepository 是 repository.PresenceRepository 的 mock。
type PresenceRepository struct {
	mock.Mock
}

func (m *PresenceRepository) Put(ctx context.Context, roomID, userID uint, nickname string) error {
	args := m.Called(ctx, roomID, userID, nickname)
	return args.Error(0)
}

func (m *PresenceRepository) Remove(ctx context.Context, roomID, userID uint) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *PresenceRepository) Has(ctx context.Context, roomID, userID uint) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *PresenceRepository) Entries(ctx context.Context, roomID uint) ([]domain.PresenceEntry, error) {
	args := m.Called(ctx, roomID)
	var entries []domain.PresenceEntry
	if v := args.Get(0); v != nil {
		entries = v.([]domain.PresenceEntry)
	}
	return entries, args.Error(1)
}

func (m *PresenceRepository) Count(ctx context.Context, roomID uint) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *PresenceRepository) ReplaceAll(ctx context.Context, roomID uint, entries []domain.PresenceEntry) error {
	args := m.Called(ctx, roomID, entries)
	return args.Error(0)
}

// MessageRepository 是 repository.MessageRepository 的 mock。
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Save(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepository) FindRecentByRoom(ctx context.Context, roomID uint, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []domain.Message
	if v := args.Get(0); v != nil {
		msgs = v.([]domain.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepository) CountByRoom(ctx context.Context, roomID uint) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}
