package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chat-room-service/internal/service"
)

// HandleServiceError 把业务错误统一映射为 HTTP 状态码。
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrIneligible):
		// 终结状态用户的再入场尝试：请求合法但被策略拒绝
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrForbidden):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidMessage):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		logrus.WithError(err).Error("Backing store unavailable")
		ErrorResponse(c, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		// Log the internal error for debugging
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
