package api

import (
	"context"
	"errors"
	"net/http"

	"noe/internal/domain/chat"
	"noe/internal/domain/orders"
)

// PaymentSession identifies the checkout session created for a proposal.
type PaymentSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url,omitempty"`
}

type createPaymentRequest struct {
	ProposalID chat.ProposalID `json:"proposalId"`
}

// CreatePaymentSession asks the backend for a checkout session. The backend
// answers 200 or 201 depending on whether the session already existed.
func (c *Client) CreatePaymentSession(ctx context.Context, id chat.ProposalID) (PaymentSession, error) {
	var out PaymentSession
	err := c.do(ctx, request{
		op:     "create payment",
		method: http.MethodPost,
		path:   "/payments/create",
		body:   createPaymentRequest{ProposalID: id},
		want:   http.StatusCreated,
		alt:    http.StatusOK,
	}, &out)
	if err == nil && out.SessionID == "" {
		return out, errors.New("api: create payment: empty session id")
	}
	return out, err
}

func (c *Client) ListOrders(ctx context.Context) ([]orders.Order, error) {
	var out []orders.Order
	err := c.do(ctx, request{op: "list orders", method: http.MethodGet, path: "/payments", want: http.StatusOK}, &out)
	return out, err
}

func (c *Client) GetOrder(ctx context.Context, id orders.ID) (orders.Order, error) {
	var out orders.Order
	err := c.do(ctx, request{op: "get order", method: http.MethodGet, path: "/payments/" + pathID(string(id)), want: http.StatusOK}, &out)
	return out, err
}
