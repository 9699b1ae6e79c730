package api

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"noe/internal/domain/chat"
	"noe/internal/domain/user"
)

// CreateProposalParams is sent by the transporter from inside a conversation.
type CreateProposalParams struct {
	Price   decimal.Decimal     `json:"price"`
	RouteID string              `json:"routeId"`
	UserID  user.ID             `json:"userId"`
	Message string              `json:"message"`
	ChatID  chat.ConversationID `json:"chatId"`
}

// ProposalResponse is the created proposal as returned by the backend.
type ProposalResponse struct {
	ID          chat.ProposalID     `json:"id"`
	Price       decimal.Decimal     `json:"price"`
	Message     string              `json:"message"`
	Status      chat.ProposalStatus `json:"status"`
	Transporter chat.Participant    `json:"transportador"`
	CreatedAt   time.Time           `json:"createdAt"`
}

func (p ProposalResponse) Proposal() chat.Proposal {
	return chat.Proposal{ID: p.ID, Price: p.Price, Message: p.Message, Status: p.Status, CreatedAt: p.CreatedAt}
}

func (c *Client) CreateProposal(ctx context.Context, params CreateProposalParams) (ProposalResponse, error) {
	var out ProposalResponse
	err := c.do(ctx, request{op: "create proposal", method: http.MethodPost, path: "/proposals", body: params, want: http.StatusCreated}, &out)
	return out, err
}

func (c *Client) AcceptProposal(ctx context.Context, id chat.ProposalID) error {
	return c.do(ctx, request{op: "accept proposal", method: http.MethodPost, path: "/proposals/" + pathID(string(id)) + "/accept", want: http.StatusCreated}, nil)
}

func (c *Client) RejectProposal(ctx context.Context, id chat.ProposalID) error {
	return c.do(ctx, request{op: "reject proposal", method: http.MethodPost, path: "/proposals/" + pathID(string(id)) + "/reject", want: http.StatusCreated}, nil)
}
