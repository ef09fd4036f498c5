// Package jwt verifies HS256 access tokens issued by the hosted identity
// provider and exposes their claims as a domain.Principal.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/rollcall/internal/auth/domain"
	"github.com/smallbiznis/rollcall/internal/clock"
	"github.com/smallbiznis/rollcall/internal/config"
)

// Claims mirrors the access token layout of the identity provider.
type Claims struct {
	Email        string         `json:"email,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwtlib.RegisteredClaims
}

type Provider struct {
	secret   []byte
	issuer   string
	audience string
	clock    clock.Clock
}

func NewProvider(cfg config.Config, clk clock.Clock) (*Provider, error) {
	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("AUTH_JWT_SECRET is required in production")
		}
		secret = "rollcall-development-secret"
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Provider{
		secret:   []byte(secret),
		issuer:   cfg.Auth.JWTIssuer,
		audience: cfg.Auth.JWTAudience,
		clock:    clk,
	}, nil
}

func (p *Provider) Principal(ctx context.Context, token string) (domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(p.clock.Now),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithJSONNumber(),
	}
	if p.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwtlib.WithAudience(p.audience))
	}

	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(*jwtlib.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, domain.ErrTokenExpired)
		}
		return domain.Principal{}, fmt.Errorf("%w: %w: %v", domain.ErrUnauthenticated, domain.ErrInvalidToken, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, domain.ErrInvalidToken)
	}

	principal := domain.Principal{
		UserID:       claims.Subject,
		Email:        claims.Email,
		SessionID:    claims.SessionID,
		AppMetadata:  claims.AppMetadata,
		UserMetadata: claims.UserMetadata,
	}
	if claims.IssuedAt != nil {
		principal.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return principal, nil
}

// Sign issues a token for claims with the provider's secret. The server only
// verifies tokens; Sign exists for local development and tests.
func (p *Provider) Sign(claims Claims) (string, error) {
	if claims.Issuer == "" {
		claims.Issuer = p.issuer
	}
	if claims.Audience == nil && p.audience != "" {
		claims.Audience = jwtlib.ClaimStrings{p.audience}
	}
	now := p.clock.Now()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwtlib.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwtlib.NewNumericDate(now.Add(time.Hour))
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(p.secret)
}

var _ domain.Provider = (*Provider)(nil)
