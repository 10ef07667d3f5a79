package identity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestIssuer(t *testing.T, opts Options) *Issuer {
	t.Helper()
	client, err := newClient("client", "secret", bcrypt.MinCost, []string{"read", "write"})
	require.NoError(t, err)
	if opts.Key == nil {
		opts.Key = testKey
	}
	if opts.TTL == 0 {
		opts.TTL = time.Hour
	}
	if opts.Audience == "" {
		opts.Audience = "embedded"
	}
	i, err := NewIssuer(opts, client)
	require.NoError(t, err)
	return i
}

func TestIssuer_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	set := metrics.NewSet()
	i := newTestIssuer(t, Options{Issuer: "http://localhost/openid", Metrics: set})

	token, err := i.Issue(ctx, GrantClientCredentials, "client", "secret", "read")
	require.NoError(t, err)
	assert.Equal(t, TokenTypeBearer, token.TokenType)
	assert.Equal(t, time.Hour, token.ExpiresIn)
	assert.Equal(t, "read", token.Scope)

	claims, err := i.Verify(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "client", claims.Subject)
	assert.Equal(t, "client", claims.ClientID)
	assert.Equal(t, "http://localhost/openid", claims.Issuer)
	assert.True(t, claims.HasScope("read"))
	assert.False(t, claims.HasScope("write"))
	assert.NotEmpty(t, claims.ID)

	var sb strings.Builder
	set.WritePrometheus(&sb)
	assert.Contains(t, sb.String(), "identity_tokens_issued_total 1")
}

func TestIssuer_IssueDefaultsToAllowedScopes(t *testing.T) {
	i := newTestIssuer(t, Options{})

	token, err := i.Issue(context.Background(), GrantClientCredentials, "client", "secret", "")
	require.NoError(t, err)
	assert.Equal(t, "read write", token.Scope)

	token, err = i.Issue(context.Background(), GrantClientCredentials, "client", "secret", "write read write")
	require.NoError(t, err)
	assert.Equal(t, "read write", token.Scope)
}

func TestIssuer_IssueErrors(t *testing.T) {
	i := newTestIssuer(t, Options{})

	tests := []struct {
		name      string
		grant     string
		client    string
		secret    string
		scope     string
		wantError error
	}{
		{"unsupported grant", "password", "client", "secret", "", ErrUnsupportedGrant},
		{"unknown client", GrantClientCredentials, "nobody", "secret", "", ErrInvalidClient},
		{"wrong secret", GrantClientCredentials, "client", "nope", "", ErrInvalidClient},
		{"scope not allowed", GrantClientCredentials, "client", "secret", "admin", ErrInvalidScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := i.Issue(context.Background(), tt.grant, tt.client, tt.secret, tt.scope)
			assert.ErrorIs(t, err, tt.wantError)
		})
	}
}

func TestIssuer_VerifyRejects(t *testing.T) {
	ctx := context.Background()
	i := newTestIssuer(t, Options{Issuer: "a"})
	token, err := i.Issue(ctx, GrantClientCredentials, "client", "secret", "read")
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := i.Verify(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := i.Verify(ctx, token.AccessToken+"x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other key", func(t *testing.T) {
		other := newTestIssuer(t, Options{Issuer: "a", Key: []byte(strings.Repeat("k", 32))})
		_, err := other.Verify(ctx, token.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other issuer", func(t *testing.T) {
		other := newTestIssuer(t, Options{Issuer: "b"})
		_, err := other.Verify(ctx, token.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other audience", func(t *testing.T) {
		other := newTestIssuer(t, Options{Issuer: "a", Audience: "elsewhere"})
		_, err := other.Verify(ctx, token.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := newTestIssuer(t, Options{Issuer: "a"})
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Verify(ctx, token.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	i := newTestIssuer(t, Options{})
	token, err := i.Issue(ctx, GrantClientCredentials, "client", "secret", "write")
	require.NoError(t, err)

	_, err = Authorize(ctx, i, token.AccessToken, "write")
	require.NoError(t, err)

	claims, err := Authorize(ctx, i, token.AccessToken, "read")
	assert.ErrorIs(t, err, ErrInsufficientScope)
	assert.NotNil(t, claims)

	_, err = Authorize(ctx, i, "garbage", "read")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuer_Validation(t *testing.T) {
	_, err := NewIssuer(Options{Key: []byte("short"), TTL: time.Hour})
	assert.ErrorIs(t, err, ErrWeakKey)

	_, err = NewIssuer(Options{Key: RandomKey()})
	assert.Error(t, err)

	c, err := newClient("dup", "x", bcrypt.MinCost, nil)
	require.NoError(t, err)
	_, err = NewIssuer(Options{Key: RandomKey(), TTL: time.Hour}, c, c)
	assert.ErrorContains(t, err, "registered twice")

	_, err = NewClient("", "x")
	assert.ErrorIs(t, err, ErrInvalidClient)
}
