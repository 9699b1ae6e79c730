package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"noe/internal/domain/chat"
	"noe/internal/infra/notify"
)

// Inbox is the notification history kept for the local API.
type Inbox interface {
	List() []notify.Entry
	Open(id string) (chat.ConversationID, error)
}

type notificationResponse struct {
	ID             string              `json:"id"`
	Kind           string              `json:"kind"`
	Title          string              `json:"title"`
	Description    string              `json:"description,omitempty"`
	DurationMS     int64               `json:"durationMs"`
	ActionLabel    string              `json:"actionLabel,omitempty"`
	ConversationID chat.ConversationID `json:"conversationId,omitempty"`
	Opened         bool                `json:"opened"`
	CreatedAt      time.Time           `json:"createdAt"`
}

func newNotificationResponse(e notify.Entry) notificationResponse {
	out := notificationResponse{
		ID:          e.ID,
		Kind:        string(e.Kind),
		Title:       e.Title,
		Description: e.Description,
		DurationMS:  e.Duration.Milliseconds(),
		Opened:      e.Opened,
		CreatedAt:   e.CreatedAt,
	}
	if e.Action != nil {
		out.ActionLabel = e.Action.Label
		out.ConversationID = e.Action.ConversationID
	}
	return out
}

type NotificationHandler struct {
	Inbox      Inbox
	Workspaces Workspaces
	Logger     *slog.Logger
}

func (h NotificationHandler) List(c *gin.Context) {
	if h.Inbox == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications unavailable"})
		return
	}
	entries := h.Inbox.List()
	items := make([]notificationResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, newNotificationResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Open runs the notification action: a message notification selects its
// conversation.
func (h NotificationHandler) Open(c *gin.Context) {
	if h.Inbox == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications unavailable"})
		return
	}
	target, err := h.Inbox.Open(c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err, "open notification")
		return
	}
	if target == "" {
		c.JSON(http.StatusOK, gin.H{"conversationId": nil})
		return
	}
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return
	}
	if err := ws.View.Select(c.Request.Context(), target); err != nil {
		respondError(c, h.Logger, err, "select conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": target})
}

var _ NotificationHTTP = NotificationHandler{}
