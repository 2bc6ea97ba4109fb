package dialect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinDialects(t *testing.T) {
	md, ok := Get("mariadb")
	require.True(t, ok)
	assert.False(t, md.RequiresIDCast())
	assert.Equal(t, "like", md.LikeOperator)

	pg, ok := Get("postgres")
	require.True(t, ok)
	assert.True(t, pg.RequiresIDCast())
	assert.Equal(t, "ilike", pg.LikeOperator)

	assert.Contains(t, List(), "mariadb")
	assert.Contains(t, List(), "postgres")

	_, ok = Get("oracle")
	assert.False(t, ok)
}

func TestFormatLiterals(t *testing.T) {
	d, _ := Get("mariadb")
	ts := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-15", d.FormatDate(ts))
	assert.Equal(t, "2026-03-15 09:30:00.000000", d.FormatDatetime(ts))
	assert.Equal(t, "09:30:00.000000", d.FormatTime(ts))

	// date-only strings get a midnight time appended for datetime slots
	assert.Equal(t, "2026-03-15 00:00:00.000000", d.FormatDatetime("2026-03-15"))
	assert.Equal(t, "2026-03-15 10:00:00", d.FormatDatetime("2026-03-15 10:00:00"))
}
