package faillog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.Open(":memory:"))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := setupTestStore(t)

	require.NoError(t, s.Record("sync_contacts", "deadlock detected"))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Record("send_digest", "smtp timeout"))

	entries, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// newest first
	assert.Equal(t, "send_digest", entries[0].Title)
	assert.Equal(t, "smtp timeout", entries[0].Detail)
	assert.Equal(t, "sync_contacts", entries[1].Title)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())
	assert.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt))
}

func TestListLimit(t *testing.T) {
	s := setupTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record("job", "boom"))
	}

	entries, err := s.List(3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestListEmpty(t *testing.T) {
	s := setupTestStore(t)

	entries, err := s.List(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnopenedStore(t *testing.T) {
	s := NewStore()

	require.Error(t, s.Record("job", "boom"))
	_, err := s.List(1)
	require.Error(t, err)
	assert.NoError(t, s.Close())
}
