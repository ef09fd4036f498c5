package jwt

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/rollcall/internal/auth/domain"
	"github.com/smallbiznis/rollcall/internal/clock"
	"github.com/smallbiznis/rollcall/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, clk clock.Clock) *Provider {
	t.Helper()
	p, err := NewProvider(config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", JWTIssuer: "https://id.example.test"}}, clk)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestPrincipalFromSignedToken(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	p := newTestProvider(t, clk)

	token, err := p.Sign(Claims{
		Email:        "ana@example.test",
		SessionID:    "sess-1",
		AppMetadata:  map[string]any{"org_id": "1234"},
		UserMetadata: map[string]any{"orgId": "99"},
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject: "user-1",
		},
	})
	require.NoError(t, err)

	principal, err := p.Principal(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.UserID)
	assert.Equal(t, "ana@example.test", principal.Email)
	assert.Equal(t, "sess-1", principal.SessionID)
	assert.Equal(t, "1234", principal.AppMetadata["org_id"])
	assert.Equal(t, clk.Now(), principal.IssuedAt)
	assert.Equal(t, clk.Now().Add(time.Hour), principal.ExpiresAt)
}

func TestPrincipalRejectsBadTokens(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	p := newTestProvider(t, clk)

	expired, err := p.Sign(Claims{RegisteredClaims: jwtlib.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwtlib.NewNumericDate(clk.Now().Add(-time.Minute)),
	}})
	require.NoError(t, err)

	other, err := NewProvider(config.Config{Auth: config.AuthConfig{JWTSecret: "other"}}, clk)
	require.NoError(t, err)
	foreign, err := other.Sign(Claims{RegisteredClaims: jwtlib.RegisteredClaims{Subject: "user-1"}})
	require.NoError(t, err)

	noSubject, err := p.Sign(Claims{})
	require.NoError(t, err)

	cases := map[string]string{
		"empty":      "",
		"garbage":    "not-a-token",
		"expired":    expired,
		"foreign":    foreign,
		"no subject": noSubject,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Principal(context.Background(), token)
			if !errors.Is(err, domain.ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}

	_, err = p.Principal(context.Background(), expired)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestNewProviderRequiresSecretInProduction(t *testing.T) {
	_, err := NewProvider(config.Config{Environment: "production"}, nil)
	assert.Error(t, err)
}
