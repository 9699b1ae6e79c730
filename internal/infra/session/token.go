package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"noe/internal/domain/user"
)

// ExpiryFromToken reads the exp claim without verifying the signature; the
// client never holds the server key. A token without exp yields the zero time.
func ExpiryFromToken(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", user.ErrMalformedSession, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", user.ErrMalformedSession, err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time.UTC(), nil
}
