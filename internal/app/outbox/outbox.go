package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"noe/internal/infra/obs"
)

var ErrRelayNotConfigured = errors.New("outbox: relay missing dependencies")

// Record is a message parked for later publication.
type Record struct {
	ID        string
	Topic     string
	Key       string
	Payload   []byte
	Headers   map[string]string
	Attempts  int
	CreatedAt time.Time
}

// NewRecord assigns an id and creation time.
func NewRecord(topic, key string, payload []byte, headers map[string]string) Record {
	return Record{
		ID:        uuid.NewString(),
		Topic:     topic,
		Key:       key,
		Payload:   append([]byte(nil), payload...),
		Headers:   headers,
		CreatedAt: time.Now().UTC(),
	}
}

type Outbox interface {
	Add(ctx context.Context, rec Record) error
}

// Store is the durable side of the relay. Claim returns nil when nothing is due.
type Store interface {
	Outbox
	Claim(ctx context.Context, workerID string) (*Record, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Relay republishes parked records until the broker accepts them.
type Relay struct {
	Store     Store
	Publisher Publisher
	Interval  time.Duration
	ID        string
	Backoff   []time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

func (r *Relay) Run(ctx context.Context) error {
	if r.Store == nil || r.Publisher == nil {
		return ErrRelayNotConfigured
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil && ctx.Err() == nil {
				r.logger().Warn("outbox relay pass failed", "error", err)
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	for {
		sent, err := r.ProcessOnce(ctx)
		if err != nil || !sent {
			return err
		}
	}
}

// ProcessOnce publishes at most one due record. It reports whether a record
// was claimed.
func (r *Relay) ProcessOnce(ctx context.Context) (bool, error) {
	rec, err := r.Store.Claim(ctx, r.ID)
	if err != nil || rec == nil {
		return false, err
	}
	if err := r.Publisher.Publish(ctx, rec.Topic, rec.Key, rec.Payload, rec.Headers); err != nil {
		r.logger().Warn("outbox publish failed", "id", rec.ID, "attempts", rec.Attempts+1, "error", err)
		return false, r.Store.MarkFailed(ctx, rec.ID, r.nextRetry(rec.Attempts), err.Error())
	}
	return true, r.Store.MarkSent(ctx, rec.ID)
}

func (r *Relay) interval() time.Duration {
	if r.Interval <= 0 {
		return time.Second
	}
	return r.Interval
}

func (r *Relay) nextRetry(attempts int) time.Time {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	if attempts < len(r.Backoff) {
		return now.Add(r.Backoff[attempts])
	}
	if len(r.Backoff) > 0 {
		return now.Add(r.Backoff[len(r.Backoff)-1])
	}
	return now.Add(5 * time.Second)
}

func (r *Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return obs.Discard()
}
