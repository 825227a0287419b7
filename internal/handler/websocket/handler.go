package websocket

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"chat-room-service/internal/hub"
	"chat-room-service/internal/service"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册。
// 入场本身由 Hub 在 register 时通过 Coordinator 完成，
// 这里只做升级前能做的检查 (认证、房间存在性)。
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	roomService *service.RoomService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
func NewWebSocketHandler(h *hub.Hub, roomService *service.RoomService) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 允许所有来源连接 (生产环境应配置具体的允许来源)
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &WebSocketHandler{
		upgrader:    upgrader,
		hub:         h,
		roomService: roomService,
	}
}

// HandleConnection 处理 WebSocket 连接请求。
// URL 预期格式: /ws/room/{roomId}
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// 1. 获取认证用户 ID 和昵称 (由 Auth 中间件设置)
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("WS Handler: User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return // 返回 HTTP 错误，因为此时还未升级到 WebSocket
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("WS Handler: User ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	nickname := c.GetString("nickname")
	if nickname == "" {
		nickname = "user-" + strconv.FormatUint(uint64(userID), 10)
	}

	// 2. 获取并验证房间 ID (从 URL 参数)
	roomIDStr := c.Param("roomId")
	roomIDUint64, err := strconv.ParseUint(roomIDStr, 10, 32)
	if err != nil {
		logCtx.WithError(err).Warnf("WS Handler: Invalid room ID format: %s", roomIDStr)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID format"})
		return
	}
	roomID := uint(roomIDUint64)
	logCtx = logCtx.WithField("room_id", roomID)

	// 3. 验证房间存在且处于活跃状态
	if _, err := h.roomService.FindRoomByID(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			logCtx.Warn("WS Handler: Room not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		} else {
			logCtx.WithError(err).Error("WS Handler: Error checking room existence")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate room"})
		}
		return
	}
	logCtx.Debug("WS Handler: Room validated")

	// 4. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 方法会自动发送 HTTP 错误响应，这里只记录日志
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	// 5. 创建 Client 并排队注册。入场资格在 Hub 处理 register 时裁决，
	// 读写 pump 也由 Hub 在裁决之后启动，避免注销消息抢先于注册到达
	client := hub.NewClient(h.hub, conn, roomID, userID, nickname)

	registerMsg := hub.HubMessage{
		Type:   "register",
		Client: client,
		RoomID: client.RoomID(),
		UserID: client.UserID(),
	}
	if !h.hub.QueueMessage(registerMsg) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}
	logCtx.Info("WS Handler: Client registration queued to Hub")
}
