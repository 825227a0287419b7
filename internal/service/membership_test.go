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
	"chat-room-service/internal/repository"
	"chat-room-service/internal/repository/mocks"
	"chat-room-service/internal/service"
)

func newMembershipService() (*service.MembershipService, *mocks.RoomRepository, *mocks.ParticipantRepository, *mocks.PresenceRepository) {
	roomRepo := new(mocks.RoomRepository)
	participantRepo := new(mocks.ParticipantRepository)
	presenceRepo := new(mocks.PresenceRepository)
	svc := service.NewMembershipService(roomRepo, participantRepo, presenceRepo)
	return svc, roomRepo, participantRepo, presenceRepo
}

// --- 测试 Join 方法 ---

func TestMembershipService_Join_FirstJoin(t *testing.T) {
	// Arrange
	svc, _, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	participantRepo.On("ExistsWithStatusIn", ctx, uint(1), uint(7), domain.BlockedStatuses).
		Return(false, nil).Once()
	presenceRepo.On("Put", ctx, uint(1), uint(7), "alice").Return(nil).Once()
	participantRepo.On("FindByRoomAndUser", ctx, uint(1), uint(7)).
		Return(nil, repository.ErrParticipantNotFound).Once()
	participantRepo.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.RoomID == 1 && p.UserID == 7 &&
			p.Nickname == "alice" && p.Status == domain.StatusActive && p.LeftAt == nil
	})).Return(nil).Once()

	// Act
	outcome, events, err := svc.Join(ctx, 1, 7, "alice")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, service.JoinOutcomeFirstJoin, outcome)
	require.Len(t, events, 2, "首次入场应产生 Joined + 系统消息两个事件")

	joined, ok := events[0].(domain.JoinedEvent)
	require.True(t, ok)
	assert.Equal(t, uint(7), joined.UserID)
	assert.False(t, joined.Rejoin)
	assert.NotEmpty(t, joined.EventID(), "事件必须携带去重用的 uuid")

	sysMsg, ok := events[1].(domain.SystemMessageEvent)
	require.True(t, ok)
	assert.Equal(t, domain.SystemJoin, sysMsg.Subtype)
	assert.NotEqual(t, joined.EventID(), sysMsg.EventID())

	// Verify
	participantRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}

func TestMembershipService_Join_RejoinAfterTempLeft(t *testing.T) {
	// Arrange
	svc, _, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	existing := &domain.Participant{
		ID:       3,
		RoomID:   1,
		UserID:   7,
		Nickname: "old-nick",
		Status:   domain.StatusTempLeft,
		JoinedAt: time.Now().Add(-time.Hour),
	}
	participantRepo.On("ExistsWithStatusIn", ctx, uint(1), uint(7), domain.BlockedStatuses).
		Return(false, nil).Once()
	presenceRepo.On("Put", ctx, uint(1), uint(7), "alice").Return(nil).Once()
	participantRepo.On("FindByRoomAndUser", ctx, uint(1), uint(7)).Return(existing, nil).Once()
	participantRepo.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		// 再入场：状态回到 ACTIVE，left_at 清空，昵称取最新值
		return p.ID == 3 && p.Status == domain.StatusActive &&
			p.Nickname == "alice" && p.LeftAt == nil && p.ExitReason == nil
	})).Return(nil).Once()

	// Act
	outcome, events, err := svc.Join(ctx, 1, 7, "alice")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, service.JoinOutcomeRejoin, outcome)
	require.Len(t, events, 2)
	joined := events[0].(domain.JoinedEvent)
	assert.True(t, joined.Rejoin, "TEMP_LEFT 后的入场应标记为 rejoin")

	// Verify
	participantRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}

func TestMembershipService_Join_IneligibleAfterTerminalStatus(t *testing.T) {
	// Arrange
	svc, _, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	participantRepo.On("ExistsWithStatusIn", ctx, uint(1), uint(7), domain.BlockedStatuses).
		Return(true, nil).Once()

	// Act
	_, events, err := svc.Join(ctx, 1, 7, "alice")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrIneligible))
	assert.Empty(t, events, "被拒绝的入场不应产生任何事件")

	// Verify: 被拒绝时不应碰 Presence Cache 和 Membership Store
	presenceRepo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	participantRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	participantRepo.AssertExpectations(t)
}

func TestMembershipService_Join_StoreFailureRollsBackPresence(t *testing.T) {
	// Arrange
	svc, _, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	participantRepo.On("ExistsWithStatusIn", ctx, uint(1), uint(7), domain.BlockedStatuses).
		Return(false, nil).Once()
	presenceRepo.On("Put", ctx, uint(1), uint(7), "alice").Return(nil).Once()
	participantRepo.On("FindByRoomAndUser", ctx, uint(1), uint(7)).
		Return(nil, repository.ErrParticipantNotFound).Once()
	participantRepo.On("Save", ctx, mock.AnythingOfType("*domain.Participant")).
		Return(errors.New("mysql is down")).Once()
	// 持久层失败后应回滚已写入的在场记录
	presenceRepo.On("Remove", ctx, uint(1), uint(7)).Return(nil).Once()

	// Act
	_, events, err := svc.Join(ctx, 1, 7, "alice")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrStoreUnavailable))
	assert.Empty(t, events, "失败的操作不应返回事件")

	// Verify
	participantRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}

// --- 测试 Leave 方法 ---

func TestMembershipService_Leave_ActiveBecomesTempLeft(t *testing.T) {
	// Arrange
	svc, _, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	existing := &domain.Participant{ID: 3, RoomID: 1, UserID: 7, Nickname: "alice", Status: domain.StatusActive}
	presenceRepo.On("Remove", ctx, uint(1), uint(7)).Return(nil).Once()
	participantRepo.On("FindByRoomAndUser", ctx, uint(1), uint(7)).Return(existing, nil).Once()
	participantRepo.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		// 一时退场：TEMP_LEFT 且有意不设置 left_at
		return p.Status == domain.StatusTempLeft && p.LeftAt == nil
	})).Return(nil).Once()

	// Act
	events, err := svc.Leave(ctx, 1, 7)

	// Assert
	require.NoError(t, err)
	require.Len(t, events, 2)
	left, ok := events[0].(domain.LeftEvent)
	require.True(t, ok)
	assert.Equal(t, uint(7), left.UserID)
	sysMsg := events[1].(domain.SystemMessageEvent)
	assert.Equal(t, domain.SystemLeave, sysMsg.Subtype)

	// Verify
	participantRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}

func TestMembershipService_Leave_NoMembershipRecord(t *testing.T) {
	// Arrange: 纯 presence 波动，持久层没有这条记录
	svc, _, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	presenceRepo.On("Remove", ctx, uint(1), uint(9)).Return(nil).Once()
	participantRepo.On("FindByRoomAndUser", ctx, uint(1), uint(9)).
		Return(nil, repository.ErrParticipantNotFound).Once()

	// Act
	events, err := svc.Leave(ctx, 1, 9)

	// Assert: 不是错误，事件照常发出
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// Verify: 不应有持久层写入
	participantRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	participantRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}

// --- 测试 Exit 方法 ---

func TestMembershipService_Exit_Success(t *testing.T) {
	// Arrange
	svc, _, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	existing := &domain.Participant{ID: 3, RoomID: 1, UserID: 7, Nickname: "alice", Status: domain.StatusActive}
	presenceRepo.On("Remove", ctx, uint(1), uint(7)).Return(nil).Once()
	participantRepo.On("FindByRoomAndUser", ctx, uint(1), uint(7)).Return(existing, nil).Once()
	participantRepo.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.Status == domain.StatusSelfExited && p.LeftAt != nil &&
			p.ExitReason != nil && *p.ExitReason == "done for today" && p.KickedBy == nil
	})).Return(nil).Once()

	// Act
	events, err := svc.Exit(ctx, 1, 7, "done for today")

	// Assert
	require.NoError(t, err)
	require.Len(t, events, 2)
	exited, ok := events[0].(domain.ExitedEvent)
	require.True(t, ok)
	assert.Equal(t, "done for today", exited.Reason)
	sysMsg := events[1].(domain.SystemMessageEvent)
	assert.Equal(t, domain.SystemExit, sysMsg.Subtype)

	// Verify
	participantRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}

func TestMembershipService_Exit_IdempotentOnTerminalStatus(t *testing.T) {
	// Arrange: 用户已经永久退出，重复调用应是 no-op
	svc, _, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	now := time.Now()
	existing := &domain.Participant{
		ID: 3, RoomID: 1, UserID: 7, Nickname: "alice",
		Status: domain.StatusSelfExited, LeftAt: &now,
	}
	presenceRepo.On("Remove", ctx, uint(1), uint(7)).Return(nil).Once()
	participantRepo.On("FindByRoomAndUser", ctx, uint(1), uint(7)).Return(existing, nil).Once()

	// Act
	events, err := svc.Exit(ctx, 1, 7, "again")

	// Assert: 幂等成功且不重复发事件
	require.NoError(t, err)
	assert.Empty(t, events)

	// Verify
	participantRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	participantRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}

func TestMembershipService_Exit_MissingRecordIsNoOp(t *testing.T) {
	// Arrange
	svc, _, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	presenceRepo.On("Remove", ctx, uint(1), uint(7)).Return(nil).Once()
	participantRepo.On("FindByRoomAndUser", ctx, uint(1), uint(7)).
		Return(nil, repository.ErrParticipantNotFound).Once()

	// Act
	events, err := svc.Exit(ctx, 1, 7, "")

	// Assert
	require.NoError(t, err)
	assert.Empty(t, events)

	// Verify
	participantRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}

// --- 测试 Kick 方法 ---

func TestMembershipService_Kick_ByCreator(t *testing.T) {
	// Arrange
	svc, roomRepo, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	room := &domain.Room{ID: 1, Name: "general", CreatorID: 100, Active: true}
	target := &domain.Participant{ID: 3, RoomID: 1, UserID: 7, Nickname: "troll", Status: domain.StatusActive}

	roomRepo.On("FindByID", ctx, uint(1)).Return(room, nil).Once()
	presenceRepo.On("Remove", ctx, uint(1), uint(7)).Return(nil).Once()
	participantRepo.On("FindByRoomAndUser", ctx, uint(1), uint(7)).Return(target, nil).Once()
	participantRepo.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.Status == domain.StatusKicked && p.LeftAt != nil &&
			p.KickedBy != nil && *p.KickedBy == 100 &&
			p.ExitReason != nil && *p.ExitReason == "spam"
	})).Return(nil).Once()

	// Act
	events, err := svc.Kick(ctx, 1, 7, 100, "spam")

	// Assert
	require.NoError(t, err)
	require.Len(t, events, 2)

	kicked, ok := events[0].(domain.KickedEvent)
	require.True(t, ok, "第一个事件应是面向目标用户的私有 Kicked 事件")
	assert.Equal(t, uint(7), kicked.TargetUserID())
	assert.Equal(t, "spam", kicked.Reason)

	sysMsg, ok := events[1].(domain.SystemMessageEvent)
	require.True(t, ok)
	assert.Equal(t, domain.SystemKick, sysMsg.Subtype)

	// Verify
	roomRepo.AssertExpectations(t)
	participantRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}

func TestMembershipService_Kick_ByNonCreatorForbidden(t *testing.T) {
	// Arrange
	svc, roomRepo, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	room := &domain.Room{ID: 1, Name: "general", CreatorID: 100, Active: true}
	roomRepo.On("FindByID", ctx, uint(1)).Return(room, nil).Once()

	// Act: 普通成员 (200) 尝试踢人
	events, err := svc.Kick(ctx, 1, 7, 200, "spam")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
	assert.Empty(t, events)

	// Verify: 授权失败时不允许任何状态变更
	presenceRepo.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything)
	participantRepo.AssertNotCalled(t, "FindByRoomAndUser", mock.Anything, mock.Anything, mock.Anything)
	participantRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	roomRepo.AssertExpectations(t)
}

func TestMembershipService_Kick_RoomNotFound(t *testing.T) {
	// Arrange
	svc, roomRepo, _, _ := newMembershipService()
	ctx := context.Background()

	roomRepo.On("FindByID", ctx, uint(42)).Return(nil, repository.ErrRoomNotFound).Once()

	// Act
	_, err := svc.Kick(ctx, 42, 7, 100, "")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRoomNotFound))
	roomRepo.AssertExpectations(t)
}

func TestMembershipService_Kick_ThenJoinIsIneligible(t *testing.T) {
	// Arrange: 被踢后的再入场应被拒绝
	svc, _, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	participantRepo.On("ExistsWithStatusIn", ctx, uint(1), uint(7), domain.BlockedStatuses).
		Return(true, nil).Once()

	// Act
	_, _, err := svc.Join(ctx, 1, 7, "troll")

	// Assert
	assert.True(t, errors.Is(err, service.ErrIneligible))
	presenceRepo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	participantRepo.AssertExpectations(t)
}

// --- 测试 SystemRemove 方法 ---

func TestMembershipService_SystemRemove_Success(t *testing.T) {
	// Arrange
	svc, roomRepo, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	target := &domain.Participant{ID: 3, RoomID: 1, UserID: 7, Nickname: "alice", Status: domain.StatusActive}
	presenceRepo.On("Remove", ctx, uint(1), uint(7)).Return(nil).Once()
	participantRepo.On("FindByRoomAndUser", ctx, uint(1), uint(7)).Return(target, nil).Once()
	participantRepo.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		// 系统移除不记录操作者
		return p.Status == domain.StatusSystemRemoved && p.LeftAt != nil && p.KickedBy == nil
	})).Return(nil).Once()

	// Act
	events, err := svc.SystemRemove(ctx, 1, 7, "room closed")

	// Assert
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Verify: 系统移除不需要查房间做授权
	roomRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	participantRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}

// --- 测试 Eligibility 方法 ---

func TestMembershipService_Eligibility(t *testing.T) {
	tests := []struct {
		name     string
		blocked  bool
		eligible bool
	}{
		{"无阻断记录可入场", false, true},
		{"终结状态不可入场", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, participantRepo, _ := newMembershipService()
			ctx := context.Background()
			participantRepo.On("ExistsWithStatusIn", ctx, uint(1), uint(7), domain.BlockedStatuses).
				Return(tt.blocked, nil).Once()

			eligible, err := svc.Eligibility(ctx, 1, 7)

			require.NoError(t, err)
			assert.Equal(t, tt.eligible, eligible)
			participantRepo.AssertExpectations(t)
		})
	}
}

// --- 测试 ReconcilePresence 方法 ---

func TestMembershipService_ReconcilePresence_ConsistentIsNoOp(t *testing.T) {
	// Arrange
	svc, _, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	active := []domain.Participant{
		{RoomID: 1, UserID: 7, Nickname: "alice", Status: domain.StatusActive},
		{RoomID: 1, UserID: 8, Nickname: "bob", Status: domain.StatusActive},
	}
	entries := []domain.PresenceEntry{
		{UserID: 8, Nickname: "bob"},
		{UserID: 7, Nickname: "alice"},
	}
	participantRepo.On("FindActiveByRoom", ctx, uint(1)).Return(active, nil).Once()
	presenceRepo.On("Entries", ctx, uint(1)).Return(entries, nil).Once()

	// Act
	repaired, err := svc.ReconcilePresence(ctx, 1)

	// Assert
	require.NoError(t, err)
	assert.False(t, repaired, "缓存与持久层一致时不应重建")
	presenceRepo.AssertNotCalled(t, "ReplaceAll", mock.Anything, mock.Anything, mock.Anything)
	participantRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}

func TestMembershipService_ReconcilePresence_RebuildsOnDrift(t *testing.T) {
	// Arrange: 缓存里残留了一个已不再 ACTIVE 的用户
	svc, _, participantRepo, presenceRepo := newMembershipService()
	ctx := context.Background()

	active := []domain.Participant{
		{RoomID: 1, UserID: 7, Nickname: "alice", Status: domain.StatusActive},
	}
	stale := []domain.PresenceEntry{
		{UserID: 7, Nickname: "alice"},
		{UserID: 9, Nickname: "ghost"},
	}
	participantRepo.On("FindActiveByRoom", ctx, uint(1)).Return(active, nil).Once()
	presenceRepo.On("Entries", ctx, uint(1)).Return(stale, nil).Once()
	presenceRepo.On("ReplaceAll", ctx, uint(1), mock.MatchedBy(func(entries []domain.PresenceEntry) bool {
		return len(entries) == 1 && entries[0].UserID == 7 && entries[0].Nickname == "alice"
	})).Return(nil).Once()

	// Act
	repaired, err := svc.ReconcilePresence(ctx, 1)

	// Assert
	require.NoError(t, err)
	assert.True(t, repaired, "检测到漂移时应重建缓存")
	participantRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}

// --- 测试 ListActiveRooms 方法 ---

func TestMembershipService_ListActiveRooms_AttachesLiveCounts(t *testing.T) {
	// Arrange
	svc, roomRepo, _, presenceRepo := newMembershipService()
	ctx := context.Background()

	rooms := []domain.Room{
		{ID: 2, Name: "newer", CreatorID: 1, Active: true},
		{ID: 1, Name: "older", CreatorID: 1, Active: true},
	}
	roomRepo.On("FindActiveOrderByCreatedAtDesc", ctx).Return(rooms, nil).Once()
	presenceRepo.On("Count", ctx, uint(2)).Return(3, nil).Once()
	presenceRepo.On("Count", ctx, uint(1)).Return(0, nil).Once()

	// Act
	result, err := svc.ListActiveRooms(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, 3, result[0].ParticipantCount)
	assert.Equal(t, 0, result[1].ParticipantCount)

	// Verify
	roomRepo.AssertExpectations(t)
	presenceRepo.AssertExpectations(t)
}
