package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"noe/internal/domain/user"
	"noe/internal/infra/api"
	"noe/internal/infra/face"
	"noe/internal/infra/session"
)

// MinSelfieProbability is the detection score below which a capture is
// treated as having no face.
const MinSelfieProbability = 0.5

var (
	ErrInvalidCredentials = errors.New("auth: email and password required")
	ErrFaceCheckDisabled  = errors.New("auth: face verification not configured")
)

type API interface {
	Register(ctx context.Context, params api.RegisterParams) (api.AuthResponse, error)
	Login(ctx context.Context, params api.LoginParams) (api.AuthResponse, error)
	CompleteRegistration(ctx context.Context, params api.CompleteRegistrationParams) (user.User, error)
	Profile(ctx context.Context) (user.User, error)
}

// SessionStore persists the session between runs.
type SessionStore interface {
	Load(ctx context.Context) (*user.Session, error)
	Save(ctx context.Context, sess *user.Session) error
	Clear(ctx context.Context) error
}

type FaceVerifier interface {
	Detect(ctx context.Context, imageBase64 string) (float64, error)
	Verify(ctx context.Context, documentBase64, selfieBase64 string) (float64, error)
}

// Service owns the local session. It is the TokenSource of the REST client.
// Sessions are never refreshed; an expired one is cleared.
type Service struct {
	API      API
	Sessions SessionStore
	Faces    FaceVerifier
	Logger   *slog.Logger
	Now      func() time.Time

	mu      sync.RWMutex
	current *user.Session
}

// Token returns the bearer token of a valid session, or "".
func (s *Service) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.current.Valid(s.now()) {
		return ""
	}
	return s.current.Token
}

// Current returns the active session when it is still valid.
func (s *Service) Current() (*user.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.current.Valid(s.now()) {
		return nil, false
	}
	cp := *s.current
	return &cp, true
}

func (s *Service) Login(ctx context.Context, email, password string) (*user.Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	resp, err := s.API.Login(ctx, api.LoginParams{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("auth: login: %w", err)
	}
	sess, err := s.persist(ctx, resp)
	if err != nil {
		return nil, err
	}
	s.logger().Info("user authenticated", "user_id", sess.User.ID, "role", sess.User.Role)
	return sess, nil
}

func (s *Service) Register(ctx context.Context, params api.RegisterParams) (*user.Session, error) {
	params.Email = strings.TrimSpace(strings.ToLower(params.Email))
	if params.Email == "" || params.Password == "" {
		return nil, ErrInvalidCredentials
	}
	resp, err := s.API.Register(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("auth: register: %w", err)
	}
	sess, err := s.persist(ctx, resp)
	if err != nil {
		return nil, err
	}
	s.logger().Info("user registered", "user_id", sess.User.ID, "role", sess.User.Role)
	return sess, nil
}

// Restore loads the stored session. Missing, malformed and expired data all
// end as ErrNotAuthenticated, and anything unusable is cleared.
func (s *Service) Restore(ctx context.Context) (*user.Session, error) {
	sess, err := s.Sessions.Load(ctx)
	switch {
	case errors.Is(err, user.ErrNotAuthenticated):
		return nil, user.ErrNotAuthenticated
	case errors.Is(err, user.ErrMalformedSession):
		s.logger().Warn("stored session discarded", "error", err)
		_ = s.Sessions.Clear(ctx)
		return nil, errors.Join(user.ErrNotAuthenticated, err)
	case err != nil:
		return nil, fmt.Errorf("auth: restore: %w", err)
	}
	exp, err := session.ExpiryFromToken(sess.Token)
	if err != nil {
		s.logger().Warn("stored token discarded", "error", err)
		_ = s.Sessions.Clear(ctx)
		return nil, errors.Join(user.ErrNotAuthenticated, err)
	}
	sess.ExpiresAt = exp
	if !sess.Valid(s.now()) {
		if err := s.Sessions.Clear(ctx); err != nil {
			s.logger().Warn("expired session not cleared", "error", err)
		}
		return nil, errors.Join(user.ErrNotAuthenticated, user.ErrSessionExpired)
	}
	s.setCurrent(sess)
	return sess, nil
}

func (s *Service) Logout(ctx context.Context) error {
	s.setCurrent(nil)
	if err := s.Sessions.Clear(ctx); err != nil {
		return fmt.Errorf("auth: logout: %w", err)
	}
	return nil
}

// RefreshProfile replaces the stored user snapshot with the server's.
func (s *Service) RefreshProfile(ctx context.Context) (user.User, error) {
	u, err := s.API.Profile(ctx)
	if err != nil {
		return user.User{}, fmt.Errorf("auth: profile: %w", err)
	}
	return u, s.updateUser(ctx, u)
}

// CompleteRegistration uploads identity documents and stores the updated user.
func (s *Service) CompleteRegistration(ctx context.Context, params api.CompleteRegistrationParams) (user.User, error) {
	u, err := s.API.CompleteRegistration(ctx, params)
	if err != nil {
		return user.User{}, fmt.Errorf("auth: complete registration: %w", err)
	}
	return u, s.updateUser(ctx, u)
}

// CheckSelfie accepts a capture holding exactly one face with enough confidence.
func (s *Service) CheckSelfie(ctx context.Context, imageBase64 string) (float64, error) {
	if s.Faces == nil {
		return 0, ErrFaceCheckDisabled
	}
	p, err := s.Faces.Detect(ctx, imageBase64)
	if err != nil {
		return 0, err
	}
	if p < MinSelfieProbability {
		return p, face.ErrNoFace
	}
	return p, nil
}

// VerifyIdentity returns how similar the document photo is to the selfie.
func (s *Service) VerifyIdentity(ctx context.Context, documentBase64, selfieBase64 string) (float64, error) {
	if s.Faces == nil {
		return 0, ErrFaceCheckDisabled
	}
	return s.Faces.Verify(ctx, documentBase64, selfieBase64)
}

func (s *Service) persist(ctx context.Context, resp api.AuthResponse) (*user.Session, error) {
	exp, err := session.ExpiryFromToken(resp.Token)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	sess, err := user.NewSession(resp.Token, resp.User, exp)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("auth: save session: %w", err)
	}
	s.setCurrent(sess)
	return sess, nil
}

func (s *Service) updateUser(ctx context.Context, u user.User) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return user.ErrNotAuthenticated
	}
	next := *s.current
	next.User = u
	s.current = &next
	s.mu.Unlock()
	return s.Sessions.Save(ctx, &next)
}

func (s *Service) setCurrent(sess *user.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sess
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
