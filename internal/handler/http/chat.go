package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chat-room-service/internal/service"
)

// ChatHandler 封装了聊天历史查询的 HTTP 处理逻辑。
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler 创建 ChatHandler 实例。
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// History 返回房间最近的聊天消息，按时间正序 (旧消息在前)。
// 可选查询参数 limit (默认 50，上限 200)。
func (h *ChatHandler) History(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	messages, total, err := h.chatService.History(c.Request.Context(), roomID, limit)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Handler.History: Failed to load chat history")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"room_id": roomID, "messages": messages, "total": total})
}
