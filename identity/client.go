package identity

import (
	"fmt"
	"slices"

	"golang.org/x/crypto/bcrypt"
)

// Client is a registered client. Its secret is only kept as a bcrypt hash.
type Client struct {
	ID         string
	Scopes     []string
	secretHash []byte
}

// NewClient registers id with secret, allowed to request scopes.
func NewClient(id, secret string, scopes ...string) (*Client, error) {
	return newClient(id, secret, bcrypt.DefaultCost, scopes)
}

func newClient(id, secret string, cost int, scopes []string) (*Client, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty client id", ErrInvalidClient)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return nil, fmt.Errorf("hash secret of client %q: %w", id, err)
	}
	return &Client{ID: id, Scopes: slices.Clone(scopes), secretHash: hash}, nil
}

func (c *Client) authenticate(secret string) bool {
	return bcrypt.CompareHashAndPassword(c.secretHash, []byte(secret)) == nil
}

// grant resolves the requested scopes against the allowed ones.
// An empty request grants everything the client is allowed.
func (c *Client) grant(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return slices.Clone(c.Scopes), nil
	}
	for _, s := range requested {
		if !slices.Contains(c.Scopes, s) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidScope, s)
		}
	}
	return slices.Compact(slices.Sorted(slices.Values(requested))), nil
}
