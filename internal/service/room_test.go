package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-room-service/internal/domain"
	"chat-room-service/internal/repository"
	"chat-room-service/internal/repository/mocks"
	"chat-room-service/internal/service"
)

func TestRoomService_CreateRoom_Success(t *testing.T) {
	// Arrange
	roomRepo := new(mocks.RoomRepository)
	roomService := service.NewRoomService(roomRepo)
	ctx := context.Background()

	roomRepo.On("Save", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.Name == "general" && r.CreatorID == 100 && r.Active
	})).Run(func(args mock.Arguments) {
		// 模拟数据库分配主键
		args.Get(1).(*domain.Room).ID = 5
	}).Return(nil).Once()

	// Act
	room, events, err := roomService.CreateRoom(ctx, "  general  ", 100, nil)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, uint(5), room.ID)
	assert.Equal(t, "general", room.Name, "房间名应去除首尾空白")
	require.Len(t, events, 1)
	_, ok := events[0].(domain.RoomListChangedEvent)
	assert.True(t, ok)

	// Verify
	roomRepo.AssertExpectations(t)
}

func TestRoomService_CreateRoom_InvalidInput(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	roomService := service.NewRoomService(roomRepo)
	ctx := context.Background()

	badCapacity := -1
	tests := []struct {
		name            string
		roomName        string
		maxParticipants *int
	}{
		{"空房间名", "   ", nil},
		{"非正容量", "general", &badCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := roomService.CreateRoom(ctx, tt.roomName, 100, tt.maxParticipants)
			require.Error(t, err)
			assert.True(t, errors.Is(err, service.ErrInvalidMessage))
		})
	}
	roomRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRoomService_FindRoomByID_InactiveRoomHidden(t *testing.T) {
	// Arrange: 关闭的房间保留历史但对外视为不存在
	roomRepo := new(mocks.RoomRepository)
	roomService := service.NewRoomService(roomRepo)
	ctx := context.Background()

	closed := &domain.Room{ID: 3, Name: "old", CreatorID: 1, Active: false}
	roomRepo.On("FindByID", ctx, uint(3)).Return(closed, nil).Once()

	// Act
	_, err := roomService.FindRoomByID(ctx, 3)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRoomNotFound))
	roomRepo.AssertExpectations(t)
}

func TestRoomService_DeactivateRoom(t *testing.T) {
	t.Run("房主关闭成功", func(t *testing.T) {
		roomRepo := new(mocks.RoomRepository)
		roomService := service.NewRoomService(roomRepo)
		ctx := context.Background()

		room := &domain.Room{ID: 3, Name: "general", CreatorID: 100, Active: true}
		roomRepo.On("FindByID", ctx, uint(3)).Return(room, nil).Once()
		roomRepo.On("Save", ctx, mock.MatchedBy(func(r *domain.Room) bool {
			return r.ID == 3 && !r.Active
		})).Return(nil).Once()

		err := roomService.DeactivateRoom(ctx, 3, 100)

		require.NoError(t, err)
		roomRepo.AssertExpectations(t)
	})

	t.Run("非房主被拒绝", func(t *testing.T) {
		roomRepo := new(mocks.RoomRepository)
		roomService := service.NewRoomService(roomRepo)
		ctx := context.Background()

		room := &domain.Room{ID: 3, Name: "general", CreatorID: 100, Active: true}
		roomRepo.On("FindByID", ctx, uint(3)).Return(room, nil).Once()

		err := roomService.DeactivateRoom(ctx, 3, 200)

		assert.True(t, errors.Is(err, service.ErrForbidden))
		roomRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("重复关闭幂等", func(t *testing.T) {
		roomRepo := new(mocks.RoomRepository)
		roomService := service.NewRoomService(roomRepo)
		ctx := context.Background()

		room := &domain.Room{ID: 3, Name: "general", CreatorID: 100, Active: false}
		roomRepo.On("FindByID", ctx, uint(3)).Return(room, nil).Once()

		err := roomService.DeactivateRoom(ctx, 3, 100)

		require.NoError(t, err)
		roomRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestRoomService_FindRoomByID_NotFound(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	roomService := service.NewRoomService(roomRepo)
	ctx := context.Background()

	roomRepo.On("FindByID", ctx, uint(42)).Return(nil, repository.ErrRoomNotFound).Once()

	_, err := roomService.FindRoomByID(ctx, 42)

	assert.True(t, errors.Is(err, service.ErrRoomNotFound))
	roomRepo.AssertExpectations(t)
}
