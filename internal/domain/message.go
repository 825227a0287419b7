package domain

import "time"

// Message 表示房间内的一条聊天消息 (持久化日志)。
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"index:idx_room_ts;not null" json:"room_id"`
	SenderID  uint      `gorm:"index;not null" json:"sender_id"`
	Sender    string    `gorm:"size:191;not null" json:"sender"` // 发送时的昵称
	Body      string    `gorm:"type:text;not null" json:"body"`
	Timestamp time.Time `gorm:"index:idx_room_ts;not null" json:"timestamp"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
}
