package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	id string
	at time.Time
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 123, time.UTC)
	cursor, err := DecodeCursor(EncodeCursor(Cursor{ID: "42", CreatedAt: at}))
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)
	assert.True(t, at.Equal(cursor.CreatedAt))
}

func TestDecodeCursor(t *testing.T) {
	cursor, err := DecodeCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, cursor)

	for _, token := range []string{"%%%", "bm90LWpzb24", EncodeCursor(Cursor{ID: "1"})} {
		_, err := DecodeCursor(token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, 10, Pagination{PageSize: 10}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Size())
}

func TestPage(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{{"c", base.Add(2 * time.Second)}, {"b", base.Add(time.Second)}, {"a", base}}
	cursorOf := func(r row) Cursor { return Cursor{ID: r.id, CreatedAt: r.at} }

	page, info := Page(rows, 2, cursorOf)
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)
	next, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "b", next.ID)

	page, info = Page(rows, 5, cursorOf)
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)

	page, info = Page([]row{}, 5, cursorOf)
	assert.Empty(t, page)
	assert.False(t, info.HasMore)
}
