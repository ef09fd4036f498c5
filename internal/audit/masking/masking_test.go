package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "****6789", MaskSecret("sk_123456789"))
}

func TestMaskSensitive(t *testing.T) {
	out := MaskSensitive(map[string]any{
		"title":        "Algebra",
		"access_token": "eyJhbGciOiJIUzI1NiJ9",
		"nested":       map[string]any{"Password": "hunter22"},
		"count":        3,
		"":             "dropped",
	})

	assert.Equal(t, "Algebra", out["title"])
	assert.Equal(t, "****NiJ9", out["access_token"])
	assert.Equal(t, map[string]any{"Password": "****er22"}, out["nested"])
	assert.Equal(t, 3, out["count"])
	assert.NotContains(t, out, "")
	assert.Nil(t, MaskSensitive(nil))
}
