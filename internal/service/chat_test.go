package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-room-service/internal/domain"
	"chat-room-service/internal/repository/mocks"
	"chat-room-service/internal/service"
)

func TestChatService_RecordMessage_Success(t *testing.T) {
	// Arrange: asynq client 为 nil 时走同步落库路径
	messageRepo := new(mocks.MessageRepository)
	chatService := service.NewChatService(messageRepo, nil)
	ctx := context.Background()

	messageRepo.On("Save", ctx, mock.MatchedBy(func(m *domain.Message) bool {
		return m.RoomID == 1 && m.SenderID == 7 &&
			m.Sender == "alice" && m.Body == "hello" && !m.Timestamp.IsZero()
	})).Return(nil).Once()

	// Act
	msg, err := chatService.RecordMessage(ctx, 1, 7, "alice", "  hello  ")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "hello", msg.Body, "消息正文应去除首尾空白")

	// Verify
	messageRepo.AssertExpectations(t)
}

func TestChatService_RecordMessage_EmptyBodyRejected(t *testing.T) {
	messageRepo := new(mocks.MessageRepository)
	chatService := service.NewChatService(messageRepo, nil)

	_, err := chatService.RecordMessage(context.Background(), 1, 7, "alice", "   ")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidMessage))
	messageRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestChatService_History_OldestFirst(t *testing.T) {
	// Arrange: 仓库返回最新在前，History 应反转为旧消息在前
	messageRepo := new(mocks.MessageRepository)
	chatService := service.NewChatService(messageRepo, nil)
	ctx := context.Background()

	now := time.Now()
	newestFirst := []domain.Message{
		{ID: 3, RoomID: 1, Body: "third", Timestamp: now},
		{ID: 2, RoomID: 1, Body: "second", Timestamp: now.Add(-time.Minute)},
		{ID: 1, RoomID: 1, Body: "first", Timestamp: now.Add(-2 * time.Minute)},
	}
	messageRepo.On("FindRecentByRoom", ctx, uint(1), 3).Return(newestFirst, nil).Once()
	messageRepo.On("CountByRoom", ctx, uint(1)).Return(int64(10), nil).Once()

	// Act
	msgs, total, err := chatService.History(ctx, 1, 3)

	// Assert
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Body)
	assert.Equal(t, "second", msgs[1].Body)
	assert.Equal(t, "third", msgs[2].Body)
	assert.Equal(t, int64(10), total, "总数应来自 CountByRoom，供客户端分页")

	// Verify
	messageRepo.AssertExpectations(t)
}

func TestChatService_History_LimitClamped(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"零值回落到默认", 0, 50},
		{"负值回落到默认", -5, 50},
		{"超上限回落到默认", 1000, 50},
		{"合法值原样使用", 20, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messageRepo := new(mocks.MessageRepository)
			chatService := service.NewChatService(messageRepo, nil)
			ctx := context.Background()

			messageRepo.On("FindRecentByRoom", ctx, uint(1), tt.wantLimit).
				Return([]domain.Message{}, nil).Once()
			messageRepo.On("CountByRoom", ctx, uint(1)).Return(int64(0), nil).Once()

			_, _, err := chatService.History(ctx, 1, tt.limit)

			require.NoError(t, err)
			messageRepo.AssertExpectations(t)
		})
	}
}
