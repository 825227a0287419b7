package dto

import "chat-room-service/internal/domain"

// 入站 WebSocket 消息：带标签的变体，必填字段在到达 Coordinator
// 之前完成校验 (取代原始实现中的无类型 payload map)。

// FrameType 是入站消息的标签。
type FrameType string

const (
	FrameChat FrameType = "chat" // 发送聊天消息
	FrameExit FrameType = "exit" // 自发性永久退出
	FrameKick FrameType = "kick" // 房主踢人
)

// IncomingFrame 表示从客户端 WebSocket 收到的一条消息。
type IncomingFrame struct {
	Type         FrameType `json:"type"`
	Body         string    `json:"body,omitempty"`           // chat: 消息正文
	TargetUserID uint      `json:"target_user_id,omitempty"` // kick: 目标用户
	Reason       string    `json:"reason,omitempty"`         // exit / kick: 原因
}

// Validate 检查必填字段，非法输入在边界处快速失败。
func (f *IncomingFrame) Validate() string {
	switch f.Type {
	case FrameChat:
		if f.Body == "" {
			return "chat frame requires a non-empty body"
		}
	case FrameExit:
		// reason 可选
	case FrameKick:
		if f.TargetUserID == 0 {
			return "kick frame requires target_user_id"
		}
	default:
		return "unknown frame type"
	}
	return ""
}

// OutgoingMessage 表示广播给客户端的一条聊天消息。
type OutgoingMessage struct {
	Type    string         `json:"type"`
	Message domain.Message `json:"message"`
}

// ErrorDTO 表示发送给单个客户端的错误消息，与房间广播相互独立。
type ErrorDTO struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
