package chat

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"noe/internal/domain/user"
)

var (
	ErrInvalidTransition    = errors.New("chat: invalid proposal transition")
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrMalformedEvent       = errors.New("chat: malformed event payload")
	ErrEmptyMessage         = errors.New("chat: message text is empty")
)

// ProposalPreview is shown instead of the text when a message carries a proposal.
const ProposalPreview = "📋 Enviou uma proposta de transporte"

type ConversationID string

type MessageID string

type ProposalID string

// Participant is the part of a user record the chat screens rely on.
type Participant struct {
	ID   user.ID   `json:"id"`
	Name string    `json:"name"`
	Role user.Role `json:"role,omitempty"`
}

// RouteRef is the route a conversation was started about.
type RouteRef struct {
	ID              string    `json:"id"`
	Origin          string    `json:"origin"`
	OriginDate      time.Time `json:"originDate"`
	Destination     string    `json:"destination"`
	DestinationDate time.Time `json:"destinationDate"`
	Status          string    `json:"status,omitempty"`
}

// Conversation is a tutor/transporter thread tied to one route.
type Conversation struct {
	ID          ConversationID `json:"id"`
	Route       RouteRef       `json:"route"`
	OtherUser   Participant    `json:"otherUser"`
	LastMessage *Message       `json:"lastMessage"`
	UnreadCount int            `json:"unreadCount"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// LastActivity is the sort key of the conversation list.
func (c Conversation) LastActivity() time.Time {
	if c.LastMessage != nil && !c.LastMessage.CreatedAt.IsZero() {
		return c.LastMessage.CreatedAt
	}
	return c.CreatedAt
}

// Message is immutable once created, except for Read, PaymentStatus and the
// embedded proposal status which mirror the server.
type Message struct {
	ID            MessageID      `json:"id"`
	ChatID        ConversationID `json:"chatId,omitempty"`
	Sender        Participant    `json:"sender"`
	Text          string         `json:"text"`
	Proposal      *Proposal      `json:"proposal,omitempty"`
	PaymentStatus string         `json:"paymentStatus,omitempty"`
	Read          bool           `json:"read"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func (m Message) clone() Message {
	if m.Proposal != nil {
		p := *m.Proposal
		m.Proposal = &p
	}
	return m
}

// PreviewText is the one-line summary used by notifications.
func PreviewText(m Message) string {
	if m.Text != "" {
		return m.Text
	}
	if m.Proposal != nil {
		return ProposalPreview
	}
	return ""
}

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
	ProposalPaid     ProposalStatus = "paid"
)

// PaymentPaid is the paymentStatus value the server sets once checkout completes.
const PaymentPaid = "paid"

// Proposal is a transporter-issued price offer embedded in a message.
type Proposal struct {
	ID        ProposalID      `json:"id"`
	Price     decimal.Decimal `json:"price"`
	Message   string          `json:"message"`
	Status    ProposalStatus  `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// CanTransition reports whether a proposal may move from one status to another.
func CanTransition(from, to ProposalStatus) bool {
	switch from {
	case ProposalPending:
		return to == ProposalAccepted || to == ProposalRejected
	case ProposalAccepted:
		return to == ProposalPaid
	default:
		return false
	}
}

// Transition returns a copy of the proposal in the target status.
func (p Proposal) Transition(to ProposalStatus) (Proposal, error) {
	if !CanTransition(p.Status, to) {
		return p, ErrInvalidTransition
	}
	p.Status = to
	return p, nil
}

// CanRespond reports whether viewer may accept or reject the proposal in m.
// Only the non-sending party of a pending proposal may respond.
func CanRespond(viewer user.ID, m Message) bool {
	if m.Proposal == nil || m.Proposal.Status != ProposalPending {
		return false
	}
	return m.Sender.ID != viewer
}

// CanPay reports whether the checkout hand-off is available for m.
func CanPay(m Message) bool {
	return m.Proposal != nil && m.Proposal.Status == ProposalAccepted && m.PaymentStatus == ""
}
