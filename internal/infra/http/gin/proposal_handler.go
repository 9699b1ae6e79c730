package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"noe/internal/app/proposals"
	"noe/internal/domain/chat"
	"noe/internal/domain/user"
)

type ProposalHandler struct {
	Workspaces Workspaces
	Logger     *slog.Logger
}

type createProposalRequest struct {
	Price   decimal.Decimal     `json:"price"`
	RouteID string              `json:"routeId" binding:"required"`
	UserID  user.ID             `json:"userId" binding:"required"`
	Message string              `json:"message"`
	ChatID  chat.ConversationID `json:"chatId" binding:"required"`
}

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url,omitempty"`
}

// Create is only open to transporters.
func (h ProposalHandler) Create(c *gin.Context) {
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return
	}
	if !ws.User.IsTransporter() {
		c.JSON(http.StatusForbidden, gin.H{"error": "only transporters can send proposals"})
		return
	}
	var req createProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	msg, err := ws.Proposals.Create(c.Request.Context(), proposals.CreateParams{
		Price:   req.Price,
		RouteID: strings.TrimSpace(req.RouteID),
		UserID:  req.UserID,
		Message: strings.TrimSpace(req.Message),
		ChatID:  req.ChatID,
	})
	if err != nil {
		respondError(c, h.Logger, err, "create proposal")
		return
	}
	c.JSON(http.StatusCreated, newMessageResponse(ws, msg))
}

func (h ProposalHandler) Accept(c *gin.Context) {
	h.respond(c, chat.ProposalAccepted)
}

func (h ProposalHandler) Reject(c *gin.Context) {
	h.respond(c, chat.ProposalRejected)
}

func (h ProposalHandler) respond(c *gin.Context, to chat.ProposalStatus) {
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return
	}
	id := chat.ProposalID(c.Param("id"))
	call, op := ws.Proposals.Accept, "accept proposal"
	if to == chat.ProposalRejected {
		call, op = ws.Proposals.Reject, "reject proposal"
	}
	if err := call(c.Request.Context(), id); err != nil {
		respondError(c, h.Logger, err, op)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": to})
}

func (h ProposalHandler) Pay(c *gin.Context) {
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return
	}
	checkout, err := ws.Proposals.Pay(c.Request.Context(), chat.ProposalID(c.Param("id")))
	if err != nil {
		respondError(c, h.Logger, err, "pay proposal")
		return
	}
	c.JSON(http.StatusOK, checkoutResponse{SessionID: checkout.SessionID, URL: checkout.URL})
}

var _ ProposalHTTP = ProposalHandler{}
