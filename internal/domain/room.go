package domain

import "time"

// Room 表示一个聊天房间。
type Room struct {
	ID              uint      `gorm:"primaryKey" json:"id"`                        // 房间唯一标识符 (主键, 自增, 创建顺序友好)
	Name            string    `gorm:"size:191;not null" json:"name"`               // 房间显示名称
	CreatorID       uint      `gorm:"index;not null" json:"creator_id"`            // 创建该房间的用户 ID (创建后不可变)
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`      // 房间创建时间 (GORM 自动填充)
	Active          bool      `gorm:"not null;default:true;index" json:"active"`   // 非活跃房间不出现在列表中但保留历史
	MaxParticipants *int      `json:"max_participants,omitempty"`                  // 可选的最大参与人数 (nil 表示不限制)
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"-"`

	// 当前参与者人数从 Presence Cache 实时计算，不落库。
	ParticipantCount int `gorm:"-" json:"participant_count"`
}
