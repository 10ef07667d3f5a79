package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	GrantClientCredentials = "client_credentials"
	TokenTypeBearer        = "Bearer"

	minKeyLen = 32
	leeway    = 30 * time.Second
)

type Options struct {
	Key      []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	// Metrics receives identity_tokens_issued_total when set.
	Metrics *metrics.Set
}

// Token is the outcome of a successful token request.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
	Scope       string
}

// Issuer signs and verifies access tokens for its registered clients.
type Issuer struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	clients  map[string]*Client
	issued   *metrics.Counter
	now      func() time.Time
}

var _ TokenValidator = (*Issuer)(nil)

func NewIssuer(opts Options, clients ...*Client) (*Issuer, error) {
	if len(opts.Key) < minKeyLen {
		return nil, ErrWeakKey
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("identity: non positive token ttl %s", opts.TTL)
	}
	i := &Issuer{
		key:      opts.Key,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		ttl:      opts.TTL,
		clients:  make(map[string]*Client, len(clients)),
		now:      time.Now,
	}
	for _, c := range clients {
		if _, dup := i.clients[c.ID]; dup {
			return nil, fmt.Errorf("identity: client %q registered twice", c.ID)
		}
		i.clients[c.ID] = c
	}
	if opts.Metrics != nil {
		i.issued = opts.Metrics.NewCounter("identity_tokens_issued_total")
	}
	return i, nil
}

// RandomKey returns a fresh signing key. Tokens signed with it do not survive a restart.
func RandomKey() []byte {
	key := make([]byte, minKeyLen)
	_, _ = rand.Read(key) // never returns an error
	return key
}

// Issuer returns the iss claim put in tokens.
func (i *Issuer) Issuer() string { return i.issuer }

// Issue runs the client credentials grant: it authenticates the client and
// returns a token for the requested space separated scope.
func (i *Issuer) Issue(ctx context.Context, grantType, clientID, secret, scope string) (*Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if grantType != GrantClientCredentials {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGrant, grantType)
	}
	client, ok := i.clients[clientID]
	if !ok || !client.authenticate(secret) {
		return nil, ErrInvalidClient
	}
	scopes, err := client.grant(strings.Fields(scope))
	if err != nil {
		return nil, err
	}

	now := i.now()
	claims := Claims{
		Scope:    strings.Join(scopes, " "),
		ClientID: client.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   client.ID,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("sign token for client %q: %w", client.ID, err)
	}
	if i.issued != nil {
		i.issued.Inc()
	}
	return &Token{
		AccessToken: signed,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   i.ttl,
		Scope:       claims.Scope,
	}, nil
}

// Verify implements [TokenValidator].
func (i *Issuer) Verify(ctx context.Context, token string) (*Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	if i.audience != "" {
		opts = append(opts, jwt.WithAudience(i.audience))
	}

	claims := new(Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return i.key, nil }, opts...)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	default:
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
}
