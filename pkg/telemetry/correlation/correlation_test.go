package correlation

import (
	"context"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestEnsureKeepsExisting(t *testing.T) {
	ctx := WithID(context.Background(), "cid-1")

	ctx, cid := Ensure(ctx)
	if cid != "cid-1" || ID(ctx) != "cid-1" {
		t.Fatalf("expected existing id, got %q", cid)
	}
}

func TestEnsureGeneratesULID(t *testing.T) {
	ctx, cid := Ensure(context.Background())
	if _, err := ulid.Parse(cid); err != nil {
		t.Fatalf("expected ulid, got %q: %v", cid, err)
	}
	if ID(ctx) != cid {
		t.Fatalf("expected id stored on context")
	}
}

func TestWithIDRejectsUnsafeValues(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"has space",
		"line\nbreak",
		strings.Repeat("a", MaxLength+1),
	}
	for _, raw := range tests {
		if got := ID(WithID(context.Background(), raw)); got != "" {
			t.Fatalf("WithID(%q) stored %q", raw, got)
		}
	}

	if got := ID(WithID(context.Background(), "  req-42  ")); got != "req-42" {
		t.Fatalf("expected trimmed id, got %q", got)
	}
}
