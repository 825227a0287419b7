package tasks

import (
	"encoding/json"

	"chat-room-service/internal/domain"
)

// 任务类型常量
const (
	TypeMessagePersistence = "message:persist"    // 聊天消息落库
	TypePresenceReconcile  = "presence:reconcile" // 单房间 presence 重建
	TypePresenceSweep      = "presence:sweep"     // 周期性全量巡检 (scheduler 触发)
)

// MessagePersistencePayload 是消息落库任务的数据结构。
type MessagePersistencePayload struct {
	Message domain.Message
}

// NewMessagePersistenceTask 序列化消息落库任务的 payload。
func NewMessagePersistenceTask(msg domain.Message) ([]byte, error) {
	return json.Marshal(MessagePersistencePayload{Message: msg})
}

// PresenceReconcilePayload 是单房间 presence 重建任务的数据结构。
type PresenceReconcilePayload struct {
	RoomID uint
}

// NewPresenceReconcileTask 序列化单房间重建任务的 payload。
func NewPresenceReconcileTask(roomID uint) ([]byte, error) {
	return json.Marshal(PresenceReconcilePayload{RoomID: roomID})
}

// NewPresenceSweepTask 序列化周期性巡检任务的 payload (无参数)。
func NewPresenceSweepTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}
