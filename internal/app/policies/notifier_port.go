package policies

import (
	"context"
	"time"

	"github.com/google/uuid"

	"noe/internal/domain/chat"
)

// DefaultDuration is how long a toast stays visible.
const DefaultDuration = 5 * time.Second

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindMessage Kind = "message"
)

// Action is the button attached to a notification. Opening it selects the
// conversation.
type Action struct {
	Label          string
	ConversationID chat.ConversationID
}

type Notification struct {
	ID          string
	Kind        Kind
	Title       string
	Description string
	Duration    time.Duration
	Action      *Action
	CreatedAt   time.Time
}

func NewNotification(kind Kind, title, description string) Notification {
	return Notification{
		ID:          uuid.NewString(),
		Kind:        kind,
		Title:       title,
		Description: description,
		Duration:    DefaultDuration,
		CreatedAt:   time.Now().UTC(),
	}
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
