// Package domain contains the identity types shared by the auth packages.
package domain

import (
	"context"
	"time"
)

// Principal is an authenticated actor as reported by the identity provider.
// It is independent of any tenant.
type Principal struct {
	UserID       string
	Email        string
	SessionID    string
	AppMetadata  map[string]any
	UserMetadata map[string]any
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// SessionKey identifies the auth session the principal was issued under.
// Tokens refreshed within one session share it.
func (p Principal) SessionKey() string {
	if p.SessionID != "" {
		return p.UserID + "|" + p.SessionID
	}
	return p.UserID + "|" + p.IssuedAt.UTC().Format(time.RFC3339)
}

// Provider resolves a bearer token into a Principal. Implementations return
// an error wrapping ErrUnauthenticated for any token they do not accept.
type Provider interface {
	Principal(ctx context.Context, token string) (Principal, error)
}
