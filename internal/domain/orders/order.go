package orders

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"noe/internal/domain/routes"
	"noe/internal/domain/user"
)

var (
	ErrInvalidCode  = errors.New("orders: confirmation code does not match")
	ErrInvalidState = errors.New("orders: invalid state for confirmation")
	ErrUnknownKind  = errors.New("orders: unknown confirmation kind")
)

type ID string

type Status string

const (
	StatusPending   Status = "pendente"
	StatusPickedUp  Status = "retirado"
	StatusInTransit Status = "em_transito"
	StatusDelivered Status = "entregue"
	StatusCancelled Status = "cancelado"
)

// Label is the human readable status shown in order lists.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pendente"
	case StatusPickedUp:
		return "Retirado"
	case StatusInTransit:
		return "Em Trânsito"
	case StatusDelivered:
		return "Entregue"
	case StatusCancelled:
		return "Cancelado"
	default:
		return string(s)
	}
}

// Proposal is the accepted offer an order was paid for.
type Proposal struct {
	ID          string          `json:"id"`
	Route       routes.Route    `json:"route"`
	Tutor       user.User       `json:"user"`
	Transporter user.User       `json:"transportador"`
	Price       decimal.Decimal `json:"price"`
	Message     string          `json:"message"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Order is a paid transport contract.
type Order struct {
	ID                    ID         `json:"id"`
	Proposal              Proposal   `json:"proposal"`
	StripePaymentIntentID string     `json:"stripePaymentIntentId"`
	Status                Status     `json:"status"`
	PickupCode            string     `json:"pickupCode"`
	DeliveryCode          string     `json:"deliveryCode"`
	CreatedAt             time.Time  `json:"createdAt"`
	ConfirmedAt           *time.Time `json:"confirmedAt"`
}

// ConfirmKind selects which code is being checked.
type ConfirmKind string

const (
	ConfirmPickup   ConfirmKind = "pickup"
	ConfirmDelivery ConfirmKind = "delivery"
)

// Confirm checks a pickup or delivery code handed over by the tutor and
// returns the order in its next status.
func (o Order) Confirm(kind ConfirmKind, code string, now time.Time) (Order, error) {
	code = strings.TrimSpace(code)
	switch kind {
	case ConfirmPickup:
		if o.Status != StatusPending && o.Status != StatusInTransit {
			return o, ErrInvalidState
		}
		if code == "" || code != o.PickupCode {
			return o, ErrInvalidCode
		}
		o.Status = StatusPickedUp
	case ConfirmDelivery:
		if o.Status != StatusPickedUp && o.Status != StatusInTransit {
			return o, ErrInvalidState
		}
		if code == "" || code != o.DeliveryCode {
			return o, ErrInvalidCode
		}
		o.Status = StatusDelivered
	default:
		return o, ErrUnknownKind
	}
	at := now.UTC()
	o.ConfirmedAt = &at
	return o, nil
}
