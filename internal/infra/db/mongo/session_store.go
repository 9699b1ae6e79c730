package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"noe/internal/domain/user"
)

const sessionCollection = "client_sessions"

// SessionStore keeps one session document per install profile so several
// kiosk agents can share a database.
type SessionStore struct {
	col     *mongo.Collection
	profile string
}

func NewSessionStore(ctx context.Context, db *mongo.Database, profile string) (*SessionStore, error) {
	if profile == "" {
		profile = "default"
	}
	col := db.Collection(sessionCollection)
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetPartialFilterExpression(bson.M{"expires_at": bson.M{"$type": "date"}}),
	}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("mongo: session index: %w", err)
	}
	return &SessionStore{col: col, profile: profile}, nil
}

func (s *SessionStore) Load(ctx context.Context) (*user.Session, error) {
	var doc sessionDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": s.profile}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, user.ErrNotAuthenticated
		}
		return nil, err
	}
	sess, err := doc.toSession()
	if err != nil {
		_, _ = s.col.DeleteOne(ctx, bson.M{"_id": s.profile})
		return nil, err
	}
	return sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *user.Session) error {
	if sess == nil {
		return user.ErrTokenRequired
	}
	doc := newSessionDocument(s.profile, sess, time.Now().UTC())
	_, err := s.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

func (s *SessionStore) Clear(ctx context.Context) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": s.profile})
	return err
}

type sessionDocument struct {
	ID        string     `bson:"_id"`
	Token     string     `bson:"token"`
	User      userDoc    `bson:"user"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

type userDoc struct {
	ID           string    `bson:"id"`
	Role         string    `bson:"role"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	CPF          string    `bson:"cpf,omitempty"`
	CNPJ         string    `bson:"cnpj,omitempty"`
	VehicleType  string    `bson:"vehicle_type,omitempty"`
	VehiclePlate string    `bson:"vehicle_plate,omitempty"`
	IsVerified   bool      `bson:"is_verified"`
	SelfieURL    string    `bson:"selfie_url,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

func newSessionDocument(profile string, sess *user.Session, now time.Time) sessionDocument {
	doc := sessionDocument{
		ID:    profile,
		Token: sess.Token,
		User: userDoc{
			ID:           string(sess.User.ID),
			Role:         string(sess.User.Role),
			Name:         sess.User.Name,
			Email:        sess.User.Email,
			CPF:          sess.User.CPF,
			CNPJ:         sess.User.CNPJ,
			VehicleType:  sess.User.VehicleType,
			VehiclePlate: sess.User.VehiclePlate,
			IsVerified:   sess.User.IsVerified,
			SelfieURL:    sess.User.SelfieURL,
			CreatedAt:    sess.User.CreatedAt,
		},
		UpdatedAt: now,
	}
	if !sess.ExpiresAt.IsZero() {
		exp := sess.ExpiresAt.UTC()
		doc.ExpiresAt = &exp
	}
	return doc
}

func (d sessionDocument) toSession() (*user.Session, error) {
	u := user.User{
		ID:           user.ID(d.User.ID),
		Role:         user.Role(d.User.Role),
		Name:         d.User.Name,
		Email:        d.User.Email,
		CPF:          d.User.CPF,
		CNPJ:         d.User.CNPJ,
		VehicleType:  d.User.VehicleType,
		VehiclePlate: d.User.VehiclePlate,
		IsVerified:   d.User.IsVerified,
		SelfieURL:    d.User.SelfieURL,
		CreatedAt:    d.User.CreatedAt,
	}
	var exp time.Time
	if d.ExpiresAt != nil {
		exp = *d.ExpiresAt
	}
	sess, err := user.NewSession(d.Token, u, exp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", user.ErrMalformedSession, err)
	}
	return sess, nil
}
