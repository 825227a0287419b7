package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chat-room-service/internal/service"
)

// MembershipHandler 封装了成员关系相关的 HTTP 处理逻辑：
// 在场名单查询、永久退出、踢人、系统移除、再入场资格查询。
// WebSocket 之外的管理面入口走这里；变更后的事件仍通过 Hub 广播。
type MembershipHandler struct {
	membership *service.MembershipService
	dispatcher EventDispatcher
}

// NewMembershipHandler 创建 MembershipHandler 实例。
func NewMembershipHandler(membership *service.MembershipService, dispatcher EventDispatcher) *MembershipHandler {
	return &MembershipHandler{membership: membership, dispatcher: dispatcher}
}

// ParticipantDTO 是在场名单的列表项。
type ParticipantDTO struct {
	UserID   uint   `json:"user_id"`
	Nickname string `json:"nickname"`
}

// ListParticipants 返回房间当前在场的用户 (只读 Presence Cache)。
func (h *MembershipHandler) ListParticipants(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	entries, err := h.membership.ListParticipants(c.Request.Context(), roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Handler.ListParticipants: Failed to list participants")
		HandleServiceError(c, err)
		return
	}

	participants := make([]ParticipantDTO, 0, len(entries))
	for _, e := range entries {
		participants = append(participants, ParticipantDTO{UserID: e.UserID, Nickname: e.Nickname})
	}
	SuccessResponse(c, http.StatusOK, gin.H{
		"room_id":      roomID,
		"participants": participants,
		"count":        len(participants),
	})
}

// ExitRequest 定义永久退出请求的结构体。
type ExitRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Exit 处理用户自发性永久退出。幂等：重复退出仍返回 200。
func (h *MembershipHandler) Exit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	var req ExitRequest
	_ = c.ShouldBindJSON(&req) // body 可为空

	events, err := h.membership.Exit(c.Request.Context(), roomID, userID, req.Reason)
	if err != nil {
		logCtx.WithError(err).Error("Handler.Exit: Failed to exit room via service")
		HandleServiceError(c, err)
		return
	}
	h.dispatcher.Dispatch(events)

	logCtx.Info("Handler.Exit: User exited room")
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Exited room"})
}

// KickRequest 定义踢人请求的结构体。
type KickRequest struct {
	TargetUserID uint   `json:"target_user_id" binding:"required"`
	Reason       string `json:"reason,omitempty"`
}

// Kick 处理房主踢人。只有房间创建者可以调用，否则 403。
func (h *MembershipHandler) Kick(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"kicker_id": userID, "room_id": roomID})

	var req KickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logCtx.WithError(err).Warn("Handler.Kick: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: target_user_id is required")
		return
	}
	logCtx = logCtx.WithField("target_id", req.TargetUserID)

	events, err := h.membership.Kick(c.Request.Context(), roomID, req.TargetUserID, userID, req.Reason)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.Kick: Failed to kick participant via service")
		HandleServiceError(c, err)
		return
	}
	h.dispatcher.Dispatch(events)

	logCtx.Info("Handler.Kick: Participant kicked")
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Participant kicked"})
}

// SystemRemoveRequest 定义系统移除请求的结构体。
type SystemRemoveRequest struct {
	TargetUserID uint   `json:"target_user_id" binding:"required"`
	Reason       string `json:"reason,omitempty"`
}

// SystemRemove 处理系统自动退出 (房间关闭、策略清退等内部调度触发)。
// 与 Kick 等效但不做房主检查，也不记录操作者。
func (h *MembershipHandler) SystemRemove(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	logCtx := logrus.WithField("room_id", roomID)

	var req SystemRemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logCtx.WithError(err).Warn("Handler.SystemRemove: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: target_user_id is required")
		return
	}
	logCtx = logCtx.WithField("target_id", req.TargetUserID)

	events, err := h.membership.SystemRemove(c.Request.Context(), roomID, req.TargetUserID, req.Reason)
	if err != nil {
		logCtx.WithError(err).Error("Handler.SystemRemove: Failed to remove participant via service")
		HandleServiceError(c, err)
		return
	}
	h.dispatcher.Dispatch(events)

	logCtx.Info("Handler.SystemRemove: Participant removed by system")
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Participant removed"})
}

// Eligibility 返回当前用户对某房间的再入场资格 (纯查询，无副作用)。
func (h *MembershipHandler) Eligibility(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	eligible, err := h.membership.Eligibility(c.Request.Context(), roomID, userID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID}).
			WithError(err).Error("Handler.Eligibility: Failed to check eligibility")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"room_id": roomID, "eligible": eligible})
}
