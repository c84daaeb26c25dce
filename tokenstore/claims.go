package tokenstore

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the display fields of an access token.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	ExpiresAt time.Time
}

type accessTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// ParseClaims reads the claims of a JWT without verifying its signature.
// The backend verifies tokens; this is only used for display and logging.
func ParseClaims(token string) (Claims, error) {
	var c accessTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return Claims{}, fmt.Errorf("[tokenstore ParseClaims] %w", err)
	}
	claims := Claims{Subject: c.Subject, Email: c.Email, Name: c.Name}
	if c.ExpiresAt != nil {
		claims.ExpiresAt = c.ExpiresAt.Time
	}
	return claims, nil
}

// Claims returns the claims of the current access token.
func (s *Store) Claims() (Claims, bool) {
	token, ok := s.GetAccessToken()
	if !ok {
		return Claims{}, false
	}
	c, err := ParseClaims(token)
	if err != nil {
		return Claims{}, false
	}
	return c, true
}
