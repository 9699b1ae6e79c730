package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "noe/internal/app/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

// claimTimeout releases records held by a relay that died mid-publish.
const claimTimeout = time.Minute

type Store struct {
	col *mongo.Collection
	now func() time.Time
}

func NewStore(ctx context.Context, db *mongo.Database) (*Store, error) {
	col := db.Collection("push_outbox")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("outbox: create index: %w", err)
	}
	return &Store{col: col, now: func() time.Time { return time.Now().UTC() }}, nil
}

type recordDocument struct {
	ID          string            `bson:"_id"`
	Topic       string            `bson:"topic"`
	Key         string            `bson:"key"`
	Payload     []byte            `bson:"payload"`
	Headers     map[string]string `bson:"headers"`
	State       string            `bson:"state"`
	Attempts    int               `bson:"attempts"`
	NextAttempt time.Time         `bson:"next_attempt_at"`
	ClaimedBy   string            `bson:"claimed_by,omitempty"`
	ClaimedAt   time.Time         `bson:"claimed_at,omitempty"`
	SentAt      time.Time         `bson:"sent_at,omitempty"`
	LastError   string            `bson:"last_error,omitempty"`
	CreatedAt   time.Time         `bson:"created_at"`
}

func newRecordDocument(rec appoutbox.Record, now time.Time) recordDocument {
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}
	return recordDocument{
		ID:          rec.ID,
		Topic:       rec.Topic,
		Key:         rec.Key,
		Payload:     rec.Payload,
		Headers:     rec.Headers,
		State:       stateNew,
		Attempts:    rec.Attempts,
		NextAttempt: now,
		CreatedAt:   created,
	}
}

func (d recordDocument) toRecord() *appoutbox.Record {
	return &appoutbox.Record{
		ID:        d.ID,
		Topic:     d.Topic,
		Key:       d.Key,
		Payload:   d.Payload,
		Headers:   d.Headers,
		Attempts:  d.Attempts,
		CreatedAt: d.CreatedAt,
	}
}

func (s *Store) Add(ctx context.Context, rec appoutbox.Record) error {
	if rec.ID == "" {
		return errors.New("outbox: record id required")
	}
	_, err := s.col.InsertOne(ctx, newRecordDocument(rec, s.now()))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (s *Store) Claim(ctx context.Context, workerID string) (*appoutbox.Record, error) {
	now := s.now()
	filter := bson.M{"$or": bson.A{
		bson.M{"state": bson.M{"$in": []string{stateNew, stateFailed}}, "next_attempt_at": bson.M{"$lte": now}},
		bson.M{"state": stateClaimed, "claimed_at": bson.M{"$lte": now.Add(-claimTimeout)}},
	}}
	update := bson.M{"$set": bson.M{"state": stateClaimed, "claimed_by": workerID, "claimed_at": now}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "next_attempt_at", Value: 1}})
	var doc recordDocument
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toRecord(), nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"state": stateSent, "sent_at": s.now()}})
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	update := bson.M{
		"$set": bson.M{
			"state":           stateFailed,
			"next_attempt_at": next.UTC(),
			"last_error":      errMsg,
		},
		"$inc": bson.M{"attempts": 1},
	}
	_, err := s.col.UpdateByID(ctx, id, update)
	return err
}

var _ appoutbox.Store = (*Store)(nil)
