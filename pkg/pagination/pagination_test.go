package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, DefaultLimit, NormalizeLimit(-3))
	require.Equal(t, 7, NormalizeLimit(7))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	require.Equal(t, 8, LimitWithBuffer(7))
}

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 30, 0, 123456789, time.FixedZone("IST", 19800))
	id := uuid.New()
	token := EncodeCursor(Cursor{CreatedAt: at, ID: id})
	require.NotContains(t, token, "+")
	require.NotContains(t, token, "/")
	require.NotContains(t, token, "=")

	cursor, err := ParseCursor(token)
	require.NoError(t, err)
	require.True(t, cursor.CreatedAt.Equal(at))
	require.Equal(t, time.UTC, cursor.CreatedAt.Location())
	require.Equal(t, id, cursor.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	cursor, err := ParseCursor("   ")
	require.NoError(t, err)
	require.Nil(t, cursor)

	for _, token := range []string{"%%%", "bm90LWpzb24", "e30"} {
		_, err := ParseCursor(token)
		require.ErrorIs(t, err, ErrInvalidCursor, token)
	}
}

func TestTrim(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	base := time.Now()
	rows := make([]row, 4)
	for i := range rows {
		rows[i] = row{id: uuid.New(), at: base.Add(-time.Duration(i) * time.Minute)}
	}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Trim(rows, 3, key)
	require.Len(t, page, 3)
	require.NotNil(t, next)
	require.Equal(t, rows[2].id, next.ID)

	page, next = Trim(rows[:2], 3, key)
	require.Len(t, page, 2)
	require.Nil(t, next)
}
