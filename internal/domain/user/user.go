package user

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotAuthenticated = errors.New("user: not authenticated")
	ErrSessionExpired   = errors.New("user: session expired")
	ErrMalformedSession = errors.New("user: malformed session data")
	ErrTokenRequired    = errors.New("user: token is required")
	ErrIDRequired       = errors.New("user: id is required")
)

type ID string

// Role mirrors the backend role values. NORMAL is the pet owner (tutor).
type Role string

const (
	RoleTransporter Role = "TRANSPORTER"
	RoleTutor       Role = "NORMAL"
)

func (r Role) Valid() bool {
	return r == RoleTransporter || r == RoleTutor
}

// User is the snapshot the backend returns on login and profile calls.
type User struct {
	ID                 ID        `json:"id"`
	Role               Role      `json:"role"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	CPF                string    `json:"cpf,omitempty"`
	CNPJ               string    `json:"cnpj,omitempty"`
	CNH                string    `json:"cnh,omitempty"`
	CNHNumber          string    `json:"cnhNumber,omitempty"`
	VehicleInfo        string    `json:"vehicleInfo,omitempty"`
	VehicleType        string    `json:"vehicleType,omitempty"`
	VehiclePlate       string    `json:"vehiclePlate,omitempty"`
	IsVerified         bool      `json:"isVerified"`
	TotalTrips         int       `json:"totalTrips"`
	TotalKm            float64   `json:"totalKm"`
	AnimalsTransported int       `json:"animalsTransported"`
	DocumentFrontURL   string    `json:"documentFrontUrl,omitempty"`
	DocumentBackURL    string    `json:"documentBackUrl,omitempty"`
	CNHURL             string    `json:"cnhUrl,omitempty"`
	SelfieURL          string    `json:"selfieUrl,omitempty"`
	VehicleDocumentURL string    `json:"vehicleDocumentUrl,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

func (u User) IsTransporter() bool {
	return u.Role == RoleTransporter
}

// Initials returns the avatar fallback used by conversation lists.
func (u User) Initials() string {
	var b strings.Builder
	for _, part := range strings.Fields(u.Name) {
		r := []rune(part)
		b.WriteRune(r[0])
	}
	return b.String()
}

// Session is the locally stored authentication state.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewSession(token string, u User, expiresAt time.Time) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenRequired
	}
	if strings.TrimSpace(string(u.ID)) == "" {
		return nil, ErrIDRequired
	}
	return &Session{Token: token, User: u, ExpiresAt: expiresAt.UTC()}, nil
}

// Valid reports whether the session can still be used at now. A zero expiry
// means the token carried no exp claim and is treated as non-expiring.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.Token == "" || s.User.ID == "" {
		return false
	}
	if s.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(s.ExpiresAt)
}
