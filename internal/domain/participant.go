package domain

import "time"

// ParticipantStatus 表示用户与房间关系的当前状态。
type ParticipantStatus string

const (
	StatusActive        ParticipantStatus = "ACTIVE"         // 活跃 (当前参与中)
	StatusTempLeft      ParticipantStatus = "TEMP_LEFT"      // 一时退场 (可以再入场)
	StatusSelfExited    ParticipantStatus = "SELF_EXITED"    // 自发性永久退出
	StatusKicked        ParticipantStatus = "KICKED"         // 被房主强制退出
	StatusSystemRemoved ParticipantStatus = "SYSTEM_REMOVED" // 被系统自动退出
)

// BlockedStatuses 是禁止再入场的终结状态集合。
var BlockedStatuses = []ParticipantStatus{StatusSelfExited, StatusKicked, StatusSystemRemoved}

// Terminal 报告该状态是否为吸收态：一旦进入，Join 将失败，
// 后续的 Exit/Kick/SystemRemove 都按幂等 no-op 处理。
func (s ParticipantStatus) Terminal() bool {
	switch s {
	case StatusSelfExited, StatusKicked, StatusSystemRemoved:
		return true
	}
	return false
}

// Participant 是 (room, user) 成员关系的持久化记录 (审计用)。
// 每个 (room, user) 只保留一行，状态随转移更新。
type Participant struct {
	ID       uint              `gorm:"primaryKey"`
	RoomID   uint              `gorm:"index:idx_room_user,unique;not null"` // 与 UserID 组成逻辑键
	UserID   uint              `gorm:"index:idx_room_user,unique;not null"`
	Nickname string            `gorm:"size:191;not null"` // 入场时使用的昵称
	Status   ParticipantStatus `gorm:"size:32;not null;index"`
	JoinedAt time.Time         `gorm:"autoCreateTime"`

	// LeftAt 仅在 SELF_EXITED / KICKED / SYSTEM_REMOVED 时设置。
	// TEMP_LEFT 有意不设置 (可恢复状态，时间戳没有业务意义)，
	// 这是一个有文档的非对称设计，不是 bug。
	LeftAt     *time.Time `gorm:"index"`
	ExitReason *string    `gorm:"size:255"` // 退出原因 (可空)
	KickedBy   *uint      // 仅当 Status == KICKED 时设置
	UpdatedAt  time.Time  `gorm:"autoUpdateTime"`
}

// PresenceEntry 是 Presence Cache 中的一条临时记录：
// 某用户当前连接在某房间里。可以随时从 Membership Store 重建。
type PresenceEntry struct {
	UserID   uint   `json:"user_id"`
	Nickname string `json:"nickname"`
}
