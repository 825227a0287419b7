package service

import "errors"

var (
	// ErrRoomNotFound 房间不存在或已被关闭
	ErrRoomNotFound = errors.New("room not found")
	// ErrIneligible 用户处于终结状态 (SELF_EXITED / KICKED / SYSTEM_REMOVED)，禁止再入场
	ErrIneligible = errors.New("user is not eligible to rejoin this room")
	// ErrForbidden 只有房间创建者可以踢人
	ErrForbidden = errors.New("only the room creator may kick participants")
	// ErrStoreUnavailable 缓存或持久层临时不可用；由调用方决定退避重试，
	// 协调器本身不做内部重试循环
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInconsistent reconciliation 时检测到缓存与持久层不一致
	ErrInconsistent = errors.New("presence cache inconsistent with membership store")
	// ErrInvalidMessage 入站消息格式非法，在到达状态机之前失败
	ErrInvalidMessage = errors.New("invalid message payload")
	// ErrInternalServer 其他内部错误
	ErrInternalServer = errors.New("internal server error")
)
