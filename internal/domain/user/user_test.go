package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionValid(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSession("tok", User{ID: "u1", Role: RoleTutor}, now.Add(time.Hour))
	require.NoError(t, err)

	assert.True(t, s.Valid(now))
	assert.False(t, s.Valid(now.Add(2*time.Hour)))

	s.ExpiresAt = time.Time{}
	assert.True(t, s.Valid(now.Add(1000*time.Hour)))

	var nilSession *Session
	assert.False(t, nilSession.Valid(now))
}

func TestNewSessionRequiresTokenAndUser(t *testing.T) {
	_, err := NewSession(" ", User{ID: "u1"}, time.Time{})
	assert.ErrorIs(t, err, ErrTokenRequired)
	_, err = NewSession("tok", User{}, time.Time{})
	assert.ErrorIs(t, err, ErrIDRequired)
}

func TestRoleAndInitials(t *testing.T) {
	assert.True(t, RoleTransporter.Valid())
	assert.False(t, Role("ADMIN").Valid())
	assert.Equal(t, "MS", User{Name: "Maria  Souza"}.Initials())
	assert.True(t, User{Role: RoleTransporter}.IsTransporter())
}
