package domain

import "github.com/google/uuid"

// 领域事件：Coordinator 在变更完全提交之后返回事件列表，
// 由外部的 Broadcast Gateway (hub) 负责投递。下游按至少一次
// 语义消费，事件自带 uuid 以便去重。

// SystemMessageType 是房间级系统消息的子类型。
type SystemMessageType string

const (
	SystemJoin  SystemMessageType = "JOIN"
	SystemLeave SystemMessageType = "LEAVE"
	SystemExit  SystemMessageType = "EXIT"
	SystemKick  SystemMessageType = "KICK"
)

// Event 是所有领域事件的公共契约。
type Event interface {
	// EventID 返回事件的唯一标识 (uuid)。
	EventID() string
	// EventRoomID 返回事件所属的房间。
	EventRoomID() uint
}

// PrivateEvent 标记只投递给单个用户的事件 (例如 KickedEvent)。
type PrivateEvent interface {
	Event
	TargetUserID() uint
}

// BaseEvent 提供 Event 接口的公共字段。
type BaseEvent struct {
	ID     string `json:"event_id"`
	RoomID uint   `json:"room_id"`
}

func (e BaseEvent) EventID() string   { return e.ID }
func (e BaseEvent) EventRoomID() uint { return e.RoomID }

// NewBaseEvent 为指定房间生成一个带 uuid 的事件基底。
func NewBaseEvent(roomID uint) BaseEvent {
	return BaseEvent{ID: uuid.NewString(), RoomID: roomID}
}

// JoinedEvent 在用户成功入场 (首次或再入场) 后发出。
type JoinedEvent struct {
	BaseEvent
	Type     string `json:"type"`
	UserID   uint   `json:"user_id"`
	Nickname string `json:"nickname"`
	Rejoin   bool   `json:"rejoin"`
}

// LeftEvent 在用户一时退场后发出。
type LeftEvent struct {
	BaseEvent
	Type   string `json:"type"`
	UserID uint   `json:"user_id"`
}

// ExitedEvent 在用户自发性永久退出后发出。
type ExitedEvent struct {
	BaseEvent
	Type   string `json:"type"`
	UserID uint   `json:"user_id"`
	Reason string `json:"reason,omitempty"`
}

// KickedEvent 是只投递给被踢用户本人的私有事件。
type KickedEvent struct {
	BaseEvent
	Type   string `json:"type"`
	UserID uint   `json:"user_id"` // 被踢的目标用户
	Reason string `json:"reason,omitempty"`
}

func (e KickedEvent) TargetUserID() uint { return e.UserID }

// SystemMessageEvent 是面向整个房间的系统消息。
type SystemMessageEvent struct {
	BaseEvent
	Type    string            `json:"type"`
	Subtype SystemMessageType `json:"subtype"`
	Text    string            `json:"text"`
	Reason  string            `json:"reason,omitempty"`
}

// RoomListChangedEvent 在房间创建后发出，提示客户端刷新房间列表。
type RoomListChangedEvent struct {
	BaseEvent
	Type string `json:"type"`
}

// 事件 type 字段的取值，供网关序列化时使用。
const (
	EventTypeJoined          = "joined"
	EventTypeLeft            = "left"
	EventTypeExited          = "exited"
	EventTypeKicked          = "kicked"
	EventTypeSystemMessage   = "system"
	EventTypeRoomListChanged = "room_list_changed"
	EventTypeChatMessage     = "chat"
)
