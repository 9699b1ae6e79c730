package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"noe/internal/app/outbox"
	"noe/internal/app/policies"
	"noe/internal/domain/chat"
)

var ErrNotificationNotFound = errors.New("notify: notification not found")

// LogNotifier writes every notification to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n policies.Notification) error {
	if l.Logger == nil {
		return nil
	}
	attrs := []any{"id", n.ID, "kind", n.Kind, "title", n.Title}
	if n.Action != nil {
		attrs = append(attrs, "conversation_id", n.Action.ConversationID)
	}
	l.Logger.Info("notification", attrs...)
	return nil
}

// Multi fans a notification out to every sink and joins their errors.
type Multi []policies.Notifier

func (m Multi) Notify(ctx context.Context, n policies.Notification) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Entry is a notification held by the Inbox.
type Entry struct {
	policies.Notification
	Opened bool
}

// Inbox keeps the most recent notifications for the local API, newest first.
type Inbox struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
}

func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = 50
	}
	return &Inbox{capacity: capacity}
}

func (i *Inbox) Notify(_ context.Context, n policies.Notification) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = append([]Entry{{Notification: n}}, i.entries...)
	if len(i.entries) > i.capacity {
		i.entries = i.entries[:i.capacity]
	}
	return nil
}

func (i *Inbox) List() []Entry {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Entry(nil), i.entries...)
}

// Open marks the notification as opened and returns its action target. The
// conversation id is empty when the notification carries no action.
func (i *Inbox) Open(id string) (chat.ConversationID, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx := range i.entries {
		if i.entries[idx].ID != id {
			continue
		}
		i.entries[idx].Opened = true
		if a := i.entries[idx].Action; a != nil {
			return a.ConversationID, nil
		}
		return "", nil
	}
	return "", ErrNotificationNotFound
}

// Publisher is satisfied by the Kafka producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// KafkaNotifier publishes notifications so push gateways can fan them out to
// the user's other devices.
type KafkaNotifier struct {
	publisher Publisher
	topic     string
	recipient func() string
	outbox    outbox.Outbox
}

func NewKafkaNotifier(publisher Publisher, topic string, recipient func() string) (*KafkaNotifier, error) {
	if publisher == nil {
		return nil, errors.New("notify: publisher required")
	}
	if topic == "" {
		return nil, errors.New("notify: topic required")
	}
	if recipient == nil {
		recipient = func() string { return "" }
	}
	return &KafkaNotifier{publisher: publisher, topic: topic, recipient: recipient}, nil
}

// WithOutbox parks notifications the broker rejected so a relay can retry them.
func (k *KafkaNotifier) WithOutbox(box outbox.Outbox) *KafkaNotifier {
	k.outbox = box
	return k
}

type pushMessage struct {
	ID             string    `json:"id"`
	Recipient      string    `json:"recipient,omitempty"`
	Kind           string    `json:"kind"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	ActionLabel    string    `json:"actionLabel,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	DurationMs     int64     `json:"durationMs"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (k *KafkaNotifier) Notify(ctx context.Context, n policies.Notification) error {
	msg := pushMessage{
		ID:          n.ID,
		Recipient:   k.recipient(),
		Kind:        string(n.Kind),
		Title:       n.Title,
		Description: n.Description,
		DurationMs:  n.Duration.Milliseconds(),
		CreatedAt:   n.CreatedAt,
	}
	if n.Action != nil {
		msg.ActionLabel = n.Action.Label
		msg.ConversationID = string(n.Action.ConversationID)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode: %w", err)
	}
	key := msg.Recipient
	if key == "" {
		key = n.ID
	}
	headers := map[string]string{"kind": msg.Kind, "notification-id": n.ID}
	err = k.publisher.Publish(ctx, k.topic, key, payload, headers)
	if err == nil {
		return nil
	}
	if k.outbox == nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	if addErr := k.outbox.Add(context.WithoutCancel(ctx), outbox.NewRecord(k.topic, key, payload, headers)); addErr != nil {
		return fmt.Errorf("notify: publish: %w", errors.Join(err, addErr))
	}
	return nil
}
