package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chat-room-service/internal/domain"
	"chat-room-service/internal/service"
)

// EventDispatcher 把协调器返回的领域事件投递给订阅者。
// 由 hub.Hub 实现；变更提交后 handler 负责触发投递。
type EventDispatcher interface {
	Dispatch(events []domain.Event)
}

// RoomHandler 封装了与房间目录相关的 HTTP 处理逻辑。
type RoomHandler struct {
	roomService *service.RoomService
	membership  *service.MembershipService
	dispatcher  EventDispatcher
}

// NewRoomHandler 创建 RoomHandler 实例。
func NewRoomHandler(roomService *service.RoomService, membership *service.MembershipService, dispatcher EventDispatcher) *RoomHandler {
	return &RoomHandler{roomService: roomService, membership: membership, dispatcher: dispatcher}
}

// currentUserID 从 Gin 上下文取认证用户 ID (由 Auth 中间件设置)。
// 失败时已写好响应，调用方直接 return 即可。
func currentUserID(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("Handler: User ID not found in context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("Handler: User ID in context is not uint")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error processing user ID")
		return 0, false
	}
	return userID, true
}

// roomIDParam 解析路径参数 :roomId。失败时已写好 400 响应。
func roomIDParam(c *gin.Context) (uint, bool) {
	raw := c.Param("roomId")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		ErrorResponse(c, http.StatusBadRequest, "invalid room id")
		return 0, false
	}
	return uint(id), true
}

// CreateRoomRequest 定义创建房间请求的结构体。
type CreateRoomRequest struct {
	Name            string `json:"name" binding:"required"`
	MaxParticipants *int   `json:"max_participants,omitempty"`
}

// CreateRoomResponse 定义创建房间成功的响应结构体。
type CreateRoomResponse struct {
	Message string `json:"message"`
	RoomID  uint   `json:"room_id"`
}

// CreateRoom 处理创建新房间的请求。
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logCtx.WithError(err).Warn("Handler.CreateRoom: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: name is required")
		return
	}

	newRoom, events, err := h.roomService.CreateRoom(c.Request.Context(), req.Name, userID, req.MaxParticipants)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.CreateRoom: Failed to create room via service")
		HandleServiceError(c, err)
		return
	}
	h.dispatcher.Dispatch(events)

	logCtx.WithField("room_id", newRoom.ID).Info("Handler.CreateRoom: Room created successfully")
	SuccessResponse(c, http.StatusCreated, CreateRoomResponse{
		Message: "Room created successfully",
		RoomID:  newRoom.ID,
	})
}

// RoomSummary 是房间列表项：附带实时在场人数。
type RoomSummary struct {
	RoomID           uint      `json:"room_id"`
	Name             string    `json:"name"`
	CreatorID        uint      `json:"creator_id"`
	CreatedAt        time.Time `json:"created_at"`
	ParticipantCount int       `json:"participant_count"`
	MaxParticipants  *int      `json:"max_participants,omitempty"`
}

// ListRooms 返回活跃房间列表 (最新创建的在前)。
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.membership.ListActiveRooms(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Handler.ListRooms: Failed to list rooms via service")
		HandleServiceError(c, err)
		return
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, RoomSummary{
			RoomID:           room.ID,
			Name:             room.Name,
			CreatorID:        room.CreatorID,
			CreatedAt:        room.CreatedAt,
			ParticipantCount: room.ParticipantCount,
			MaxParticipants:  room.MaxParticipants,
		})
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": summaries})
}

// DeactivateRoom 处理房主关闭房间的请求 (软删除)。
func (h *RoomHandler) DeactivateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	if err := h.roomService.DeactivateRoom(c.Request.Context(), roomID, userID); err != nil {
		logCtx.WithError(err).Warn("Handler.DeactivateRoom: Failed to deactivate room")
		HandleServiceError(c, err)
		return
	}

	logCtx.Info("Handler.DeactivateRoom: Room deactivated")
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Room deactivated"})
}
