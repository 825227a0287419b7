package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"chat-room-service/internal/domain"
	"chat-room-service/internal/repository"
)

// JoinOutcome 区分首次入场和再入场。
type JoinOutcome string

const (
	JoinOutcomeFirstJoin JoinOutcome = "first_join"
	JoinOutcomeRejoin    JoinOutcome = "rejoin"
)

// MembershipService 是成员关系/在场状态的协调器 (Membership Coordinator)。
// 它接受入场/退场意图，对照状态机和再入场规则做校验，在同一个逻辑操作中
// 同时更新 Presence Cache 和 Membership Store，并返回领域事件。
//
// 两阶段契约：变更完全提交后才返回事件；失败时不返回任何事件，
// 广播由调用方 (hub / handler) 在拿到事件后执行。
//
// 并发契约：同一 (room, user) 键上的操作通过 keyedMutex 串行化；
// 不同键的操作并发执行，不加整房间锁。
type MembershipService struct {
	roomRepo        repository.RoomRepository
	participantRepo repository.ParticipantRepository
	presenceRepo    repository.PresenceRepository
	locks           *keyedMutex
}

// NewMembershipService 创建 MembershipService 实例。
func NewMembershipService(
	roomRepo repository.RoomRepository,
	participantRepo repository.ParticipantRepository,
	presenceRepo repository.PresenceRepository,
) *MembershipService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for MembershipService")
	}
	if participantRepo == nil {
		panic("ParticipantRepository cannot be nil for MembershipService")
	}
	if presenceRepo == nil {
		panic("PresenceRepository cannot be nil for MembershipService")
	}
	return &MembershipService{
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
		presenceRepo:    presenceRepo,
		locks:           newKeyedMutex(),
	}
}

// Join 处理用户入场 (首次或再入场)。
// 终结状态的用户被拒绝 (ErrIneligible)；成功时写入在场记录、
// 把成员状态置为 ACTIVE 并清空 left_at。
func (s *MembershipService) Join(ctx context.Context, roomID, userID uint, nickname string) (JoinOutcome, []domain.Event, error) {
	unlock := s.locks.Lock(membershipKey(roomID, userID))
	defer unlock()

	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "operation": "Join"})

	// 1. 再入场资格检查
	blocked, err := s.participantRepo.ExistsWithStatusIn(ctx, roomID, userID, domain.BlockedStatuses)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check rejoin eligibility")
		return "", nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if blocked {
		logCtx.Warn("Join rejected: user has a terminal membership status")
		return "", nil, ErrIneligible
	}

	// 2. 写入 Presence Cache (与原始实现一致，缓存先行)
	if err := s.presenceRepo.Put(ctx, roomID, userID, nickname); err != nil {
		logCtx.WithError(err).Error("Failed to put presence entry")
		return "", nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// 3. 写入 Membership Store
	outcome := JoinOutcomeFirstJoin
	p, err := s.participantRepo.FindByRoomAndUser(ctx, roomID, userID)
	switch {
	case errors.Is(err, repository.ErrParticipantNotFound):
		p = &domain.Participant{
			RoomID:   roomID,
			UserID:   userID,
			Nickname: nickname,
			Status:   domain.StatusActive,
		}
	case err != nil:
		s.rollbackPresence(ctx, roomID, userID, logCtx)
		logCtx.WithError(err).Error("Failed to load membership record")
		return "", nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		// 再入场：状态回到 ACTIVE，left_at 清空，昵称取入场时的值
		outcome = JoinOutcomeRejoin
		p.Status = domain.StatusActive
		p.Nickname = nickname
		p.LeftAt = nil
		p.ExitReason = nil
		p.KickedBy = nil
	}

	if err := s.participantRepo.Save(ctx, p); err != nil {
		// 持久层写入失败：尽力回滚缓存，把失败暴露给调用方重试
		s.rollbackPresence(ctx, roomID, userID, logCtx)
		logCtx.WithError(err).Error("Failed to save membership record")
		return "", nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rejoin := outcome == JoinOutcomeRejoin
	logCtx.WithField("rejoin", rejoin).Info("User joined room")

	events := []domain.Event{
		domain.JoinedEvent{
			BaseEvent: domain.NewBaseEvent(roomID),
			Type:      domain.EventTypeJoined,
			UserID:    userID,
			Nickname:  nickname,
			Rejoin:    rejoin,
		},
		domain.SystemMessageEvent{
			BaseEvent: domain.NewBaseEvent(roomID),
			Type:      domain.EventTypeSystemMessage,
			Subtype:   domain.SystemJoin,
			Text:      fmt.Sprintf("%s joined the room", nickname),
		},
	}
	return outcome, events, nil
}

// Leave 处理一时退场 (可恢复)：只移除在场记录，成员状态置为 TEMP_LEFT。
// 没有成员记录时持久层不动 (纯 presence 波动不是错误)。
// TEMP_LEFT 有意不设置 left_at，见 domain.Participant 的说明。
func (s *MembershipService) Leave(ctx context.Context, roomID, userID uint) ([]domain.Event, error) {
	unlock := s.locks.Lock(membershipKey(roomID, userID))
	defer unlock()

	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "operation": "Leave"})

	if err := s.presenceRepo.Remove(ctx, roomID, userID); err != nil {
		logCtx.WithError(err).Error("Failed to remove presence entry")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	p, err := s.participantRepo.FindByRoomAndUser(ctx, roomID, userID)
	if err != nil && !errors.Is(err, repository.ErrParticipantNotFound) {
		logCtx.WithError(err).Error("Failed to load membership record")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if p != nil && p.Status == domain.StatusActive {
		p.Status = domain.StatusTempLeft
		if err := s.participantRepo.Save(ctx, p); err != nil {
			logCtx.WithError(err).Error("Failed to save TEMP_LEFT status")
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	logCtx.Info("User left room (recoverable)")
	return []domain.Event{
		domain.LeftEvent{
			BaseEvent: domain.NewBaseEvent(roomID),
			Type:      domain.EventTypeLeft,
			UserID:    userID,
		},
		domain.SystemMessageEvent{
			BaseEvent: domain.NewBaseEvent(roomID),
			Type:      domain.EventTypeSystemMessage,
			Subtype:   domain.SystemLeave,
			Text:      fmt.Sprintf("user %d left the room", userID),
		},
	}, nil
}

// Exit 处理自发性永久退出。幂等：对已经退出的用户再次调用是
// 持久层 no-op (终结状态是吸收态)，但仍然尝试移除在场记录。
func (s *MembershipService) Exit(ctx context.Context, roomID, userID uint, reason string) ([]domain.Event, error) {
	unlock := s.locks.Lock(membershipKey(roomID, userID))
	defer unlock()

	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "operation": "Exit"})

	transitioned, nickname, err := s.finalize(ctx, roomID, userID, domain.StatusSelfExited, reason, nil, logCtx)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// 已经处于终结状态或没有记录：幂等成功，不重复发事件
		logCtx.Debug("Exit was a no-op on the store")
		return nil, nil
	}

	logCtx.Info("User exited room permanently")
	return []domain.Event{
		domain.ExitedEvent{
			BaseEvent: domain.NewBaseEvent(roomID),
			Type:      domain.EventTypeExited,
			UserID:    userID,
			Reason:    reason,
		},
		domain.SystemMessageEvent{
			BaseEvent: domain.NewBaseEvent(roomID),
			Type:      domain.EventTypeSystemMessage,
			Subtype:   domain.SystemExit,
			Text:      fmt.Sprintf("%s exited the room", nickname),
			Reason:    reason,
		},
	}, nil
}

// Kick 处理房主强制踢人。授权前置条件：kicker 必须是房间创建者，
// 否则返回 ErrForbidden，且不产生任何状态变更和事件。
// 成功时发出两个事件：面向目标用户的私有 KickedEvent 和
// 面向整个房间的 KICK 系统消息。
func (s *MembershipService) Kick(ctx context.Context, roomID, targetUserID, kickerUserID uint, reason string) ([]domain.Event, error) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"target_id": targetUserID,
		"kicker_id": kickerUserID,
		"operation": "Kick",
	})

	// 授权检查先于任何变更和加锁
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to load room for kick authorization")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if room.CreatorID != kickerUserID {
		logCtx.Warn("Kick rejected: kicker is not the room creator")
		return nil, ErrForbidden
	}

	unlock := s.locks.Lock(membershipKey(roomID, targetUserID))
	defer unlock()

	transitioned, nickname, err := s.finalize(ctx, roomID, targetUserID, domain.StatusKicked, reason, &kickerUserID, logCtx)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		logCtx.Debug("Kick was a no-op on the store")
		return nil, nil
	}

	logCtx.Info("User kicked from room")
	return []domain.Event{
		domain.KickedEvent{
			BaseEvent: domain.NewBaseEvent(roomID),
			Type:      domain.EventTypeKicked,
			UserID:    targetUserID,
			Reason:    reason,
		},
		domain.SystemMessageEvent{
			BaseEvent: domain.NewBaseEvent(roomID),
			Type:      domain.EventTypeSystemMessage,
			Subtype:   domain.SystemKick,
			Text:      fmt.Sprintf("%s was removed from the room", nickname),
			Reason:    reason,
		},
	}, nil
}

// SystemRemove 处理系统自动退出 (房间关闭、容量策略等外部调度触发)。
// 效果等同 Kick，但没有授权检查，也不记录 kicked_by。
func (s *MembershipService) SystemRemove(ctx context.Context, roomID, userID uint, reason string) ([]domain.Event, error) {
	unlock := s.locks.Lock(membershipKey(roomID, userID))
	defer unlock()

	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "operation": "SystemRemove"})

	transitioned, nickname, err := s.finalize(ctx, roomID, userID, domain.StatusSystemRemoved, reason, nil, logCtx)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		logCtx.Debug("SystemRemove was a no-op on the store")
		return nil, nil
	}

	logCtx.Info("User removed from room by system")
	return []domain.Event{
		domain.KickedEvent{
			BaseEvent: domain.NewBaseEvent(roomID),
			Type:      domain.EventTypeKicked,
			UserID:    userID,
			Reason:    reason,
		},
		domain.SystemMessageEvent{
			BaseEvent: domain.NewBaseEvent(roomID),
			Type:      domain.EventTypeSystemMessage,
			Subtype:   domain.SystemKick,
			Text:      fmt.Sprintf("%s was removed from the room", nickname),
			Reason:    reason,
		},
	}, nil
}

// finalize 执行终结转移的公共部分：移除在场记录，把成员状态置为
// 给定的终结状态并设置 left_at / exit_reason / kicked_by。
// 返回持久层是否真的发生了转移 (终结状态是吸收态，重复调用为 no-op)。
func (s *MembershipService) finalize(
	ctx context.Context,
	roomID, userID uint,
	status domain.ParticipantStatus,
	reason string,
	kickedBy *uint,
	logCtx *logrus.Entry,
) (transitioned bool, nickname string, err error) {
	if err := s.presenceRepo.Remove(ctx, roomID, userID); err != nil {
		logCtx.WithError(err).Error("Failed to remove presence entry")
		return false, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	p, err := s.participantRepo.FindByRoomAndUser(ctx, roomID, userID)
	if errors.Is(err, repository.ErrParticipantNotFound) {
		// 没有成员记录：原始实现同样静默跳过持久层
		return false, "", nil
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to load membership record")
		return false, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if p.Status.Terminal() {
		return false, p.Nickname, nil
	}

	now := time.Now()
	p.Status = status
	p.LeftAt = &now
	if reason != "" {
		p.ExitReason = &reason
	}
	p.KickedBy = kickedBy

	if err := s.participantRepo.Save(ctx, p); err != nil {
		logCtx.WithError(err).Errorf("Failed to save %s status", status)
		return false, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return true, p.Nickname, nil
}

// Eligibility 是纯查询：用户最新状态不在阻断集合中即可 (再) 入场。
// 没有记录、ACTIVE、TEMP_LEFT 都视为可入场。
func (s *MembershipService) Eligibility(ctx context.Context, roomID, userID uint) (bool, error) {
	blocked, err := s.participantRepo.ExistsWithStatusIn(ctx, roomID, userID, domain.BlockedStatuses)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return !blocked, nil
}

// ListParticipants 只读 Presence Cache，偏向实时性而非持久性。
func (s *MembershipService) ListParticipants(ctx context.Context, roomID uint) ([]domain.PresenceEntry, error) {
	entries, err := s.presenceRepo.Entries(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return entries, nil
}

// ParticipantCount 返回 Presence Cache 里的在场人数。
func (s *MembershipService) ParticipantCount(ctx context.Context, roomID uint) (int, error) {
	count, err := s.presenceRepo.Count(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

// ListActiveRooms 返回活跃房间 (最新创建的在前)，并附带实时在场人数。
// 列表快照允许轻微过期，不加任何房间锁。
func (s *MembershipService) ListActiveRooms(ctx context.Context) ([]domain.Room, error) {
	rooms, err := s.roomRepo.FindActiveOrderByCreatedAtDesc(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for i := range rooms {
		count, err := s.presenceRepo.Count(ctx, rooms[i].ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		rooms[i].ParticipantCount = count
	}
	return rooms, nil
}

// ReconcilePresence 从 Membership Store 的 ACTIVE 集合重建房间的
// Presence Cache。检测到的不一致会以 ErrInconsistent 记录日志后修复，
// 绝不静默忽略。返回是否做了修复。
func (s *MembershipService) ReconcilePresence(ctx context.Context, roomID uint) (bool, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "ReconcilePresence"})

	active, err := s.participantRepo.FindActiveByRoom(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	want := make(map[uint]string, len(active))
	for _, p := range active {
		want[p.UserID] = p.Nickname
	}

	have, err := s.presenceRepo.Entries(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if presenceMatches(want, have) {
		return false, nil
	}

	logCtx.WithFields(logrus.Fields{
		"store_active": len(want),
		"cache_size":   len(have),
	}).Warnf("%v, rebuilding cache from store", ErrInconsistent)

	entries := make([]domain.PresenceEntry, 0, len(want))
	for userID, nickname := range want {
		entries = append(entries, domain.PresenceEntry{UserID: userID, Nickname: nickname})
	}
	if err := s.presenceRepo.ReplaceAll(ctx, roomID, entries); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	logCtx.Info("Presence cache rebuilt from membership store")
	return true, nil
}

func presenceMatches(want map[uint]string, have []domain.PresenceEntry) bool {
	if len(want) != len(have) {
		return false
	}
	for _, e := range have {
		nickname, ok := want[e.UserID]
		if !ok || nickname != e.Nickname {
			return false
		}
	}
	return true
}

// rollbackPresence 在持久层写入失败后尽力撤销已写入的在场记录。
// 撤销自身失败只记录日志：调用方拿到的仍是原始失败，
// 残留的不一致由 reconciliation 兜底。
func (s *MembershipService) rollbackPresence(ctx context.Context, roomID, userID uint, logCtx *logrus.Entry) {
	if err := s.presenceRepo.Remove(ctx, roomID, userID); err != nil {
		logCtx.WithError(err).Warnf("%v: failed to roll back presence entry, reconciliation will repair", ErrInconsistent)
	}
}
