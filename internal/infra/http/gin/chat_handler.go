package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"noe/internal/app/agent"
	"noe/internal/domain/chat"
	"noe/internal/domain/user"
)

// ChatHandler exposes the conversation view of the signed-in user.
type ChatHandler struct {
	Workspaces Workspaces
	Logger     *slog.Logger
}

type openConversationRequest struct {
	RouteID       string  `json:"routeId" binding:"required"`
	TransporterID user.ID `json:"transporterId" binding:"required"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type draftRequest struct {
	Text string `json:"text"`
}

type conversationList struct {
	Items  []chat.Conversation `json:"items"`
	Active chat.ConversationID `json:"active,omitempty"`
	Layout string              `json:"layout"`
}

type messageResponse struct {
	chat.Message
	CanRespond bool `json:"canRespond"`
	CanPay     bool `json:"canPay"`
}

type messageList struct {
	ConversationID chat.ConversationID `json:"conversationId"`
	Items          []messageResponse   `json:"items"`
}

func (h ChatHandler) ListConversations(c *gin.Context) {
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return
	}
	items := ws.View.Conversations()
	if items == nil {
		items = []chat.Conversation{}
	}
	c.JSON(http.StatusOK, conversationList{Items: items, Active: ws.View.Active(), Layout: string(ws.View.Layout())})
}

// Open finds or starts the conversation with a transporter about a route and selects it.
func (h ChatHandler) Open(c *gin.Context) {
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return
	}
	var req openConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	conv, err := ws.View.Open(c.Request.Context(), strings.TrimSpace(req.RouteID), req.TransporterID)
	if err != nil {
		respondError(c, h.Logger, err, "open conversation")
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h ChatHandler) Select(c *gin.Context) {
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return
	}
	id := chat.ConversationID(c.Param("id"))
	if err := ws.View.Select(c.Request.Context(), id); err != nil {
		respondError(c, h.Logger, err, "select conversation")
		return
	}
	c.JSON(http.StatusOK, h.messages(ws, id))
}

func (h ChatHandler) Back(c *gin.Context) {
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return
	}
	ws.View.Back()
	c.JSON(http.StatusOK, gin.H{"layout": ws.View.Layout()})
}

func (h ChatHandler) ListMessages(c *gin.Context) {
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return
	}
	id := chat.ConversationID(c.Param("id"))
	if !hasConversation(ws, id) {
		respondError(c, h.Logger, chat.ErrConversationNotFound, "list messages")
		return
	}
	c.JSON(http.StatusOK, h.messages(ws, id))
}

// SendMessage selects the conversation first when another one is active.
func (h ChatHandler) SendMessage(c *gin.Context) {
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	id := chat.ConversationID(c.Param("id"))
	if ws.View.Active() != id {
		if err := ws.View.Select(c.Request.Context(), id); err != nil {
			respondError(c, h.Logger, err, "select conversation")
			return
		}
	}
	msg, err := ws.View.Send(c.Request.Context(), req.Text)
	if err != nil {
		respondError(c, h.Logger, err, "send message")
		return
	}
	c.JSON(http.StatusCreated, newMessageResponse(ws, msg))
}

func (h ChatHandler) Draft(c *gin.Context) {
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": ws.View.Draft()})
}

func (h ChatHandler) SetDraft(c *gin.Context) {
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return
	}
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ws.View.SetDraft(req.Text)
	c.Status(http.StatusNoContent)
}

func (h ChatHandler) messages(ws *agent.Workspace, id chat.ConversationID) messageList {
	msgs := ws.View.Messages(id)
	out := messageList{ConversationID: id, Items: make([]messageResponse, 0, len(msgs))}
	for _, m := range msgs {
		out.Items = append(out.Items, newMessageResponse(ws, m))
	}
	return out
}

func newMessageResponse(ws *agent.Workspace, m chat.Message) messageResponse {
	return messageResponse{
		Message:    m,
		CanRespond: ws.Proposals.CanRespond(m),
		CanPay:     chat.CanPay(m),
	}
}

func hasConversation(ws *agent.Workspace, id chat.ConversationID) bool {
	for _, conv := range ws.View.Conversations() {
		if conv.ID == id {
			return true
		}
	}
	return false
}

var _ ChatHTTP = ChatHandler{}
