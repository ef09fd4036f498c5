// Package correlation carries the id that ties one client operation together
// across logs, spans and audit records.
package correlation

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

// MaxLength bounds ids accepted from clients.
const MaxLength = 128

type ctxKey struct{}

// ID returns the correlation id on ctx, or "".
func ID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithID stores id on ctx after Sanitize. An id that sanitizes to "" leaves
// ctx unchanged.
func WithID(ctx context.Context, id string) context.Context {
	id = Sanitize(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// Ensure returns ctx with a correlation id, minting a ULID when none is set.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := ID(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return context.WithValue(ctx, ctxKey{}, id), id
}

// Sanitize trims raw and rejects values that are too long or carry
// characters outside printable ASCII, so a header value can be echoed back
// and logged as is.
func Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > MaxLength {
		return ""
	}
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return raw
}
