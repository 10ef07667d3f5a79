// Package identity is the embedded token issuer.
//
// Registered clients exchange their credentials for short lived HS256 access
// tokens carrying a space separated scope claim (OAuth2 client credentials
// grant). The same [Issuer] verifies the tokens it signed and is consumed by
// the HTTP layer through the [TokenValidator] interface.
package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken      = errors.New("identity: invalid token")
	ErrExpiredToken      = errors.New("identity: token expired")
	ErrInsufficientScope = errors.New("identity: insufficient scope")
	ErrInvalidClient     = errors.New("identity: invalid client")
	ErrInvalidScope      = errors.New("identity: invalid scope")
	ErrUnsupportedGrant  = errors.New("identity: unsupported grant type")
	ErrWeakKey           = errors.New("identity: signing key shorter than 32 bytes")
)

// TokenValidator verifies a bearer token and returns its claims.
type TokenValidator interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Claims are the claims of an access token.
type Claims struct {
	Scope    string `json:"scope"`
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// Scopes splits the scope claim.
func (c *Claims) Scopes() []string { return strings.Fields(c.Scope) }

// HasScope reports whether scope was granted.
func (c *Claims) HasScope(scope string) bool { return slices.Contains(c.Scopes(), scope) }

// Authorize verifies token with v and checks that scope was granted.
// An empty scope only requires a valid token.
func Authorize(ctx context.Context, v TokenValidator, token, scope string) (*Claims, error) {
	claims, err := v.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if scope != "" && !claims.HasScope(scope) {
		return claims, fmt.Errorf("%w: %q required", ErrInsufficientScope, scope)
	}
	return claims, nil
}
