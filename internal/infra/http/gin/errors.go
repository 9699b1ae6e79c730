package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"noe/internal/app/chatview"
	"noe/internal/app/proposals"
	"noe/internal/app/services/auth"
	"noe/internal/domain/chat"
	"noe/internal/domain/orders"
	"noe/internal/domain/routes"
	"noe/internal/domain/user"
	"noe/internal/infra/api"
	"noe/internal/infra/face"
	"noe/internal/infra/notify"
)

func respondError(c *gin.Context, logger *slog.Logger, err error, op string) {
	status, message := classify(err)
	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, op+" failed", "error", err, "status", status, "request_id", c.GetString("request_id"))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func classify(err error) (int, string) {
	var apiErr *api.Error
	switch {
	case errors.Is(err, user.ErrNotAuthenticated), errors.Is(err, api.ErrUnauthorized):
		return http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, chat.ErrConversationNotFound), errors.Is(err, notify.ErrNotificationNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, proposals.ErrNotRecipient):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, proposals.ErrInFlight),
		errors.Is(err, proposals.ErrNotPayable),
		errors.Is(err, chat.ErrInvalidTransition),
		errors.Is(err, orders.ErrInvalidState):
		return http.StatusConflict, err.Error()
	case errors.Is(err, orders.ErrInvalidCode),
		errors.Is(err, face.ErrNoFace),
		errors.Is(err, face.ErrMultipleFaces),
		errors.Is(err, face.ErrNoMatch):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chatview.ErrNoActiveConversation),
		errors.Is(err, proposals.ErrInvalidPrice),
		errors.Is(err, proposals.ErrChatRequired),
		errors.Is(err, routes.ErrInvalidRoute),
		errors.Is(err, routes.ErrInvalidWindow),
		errors.Is(err, orders.ErrUnknownKind),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrFaceCheckDisabled):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "backend timeout"
	case errors.Is(err, user.ErrMalformedSession):
		return http.StatusBadGateway, "backend issued an unreadable token"
	case errors.As(err, &apiErr):
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status, apiErr.Message
		}
		return http.StatusBadGateway, "backend error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
