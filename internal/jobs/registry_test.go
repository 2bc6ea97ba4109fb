package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Defaults(t *testing.T) {
	r := NewRegistry("site1.example", nil)

	assert.Equal(t, []string{"default", "long", "short"}, r.List())
	assert.Equal(t, DefaultTimeout, r.Timeout("default"))
	assert.Equal(t, DefaultTimeout, r.Timeout("short"))
	assert.Equal(t, LongQueueTimeout, r.Timeout("long"))
}

func TestRegistry_CustomQueues(t *testing.T) {
	r := NewRegistry("site1.example", map[string]time.Duration{
		"imports": 45 * time.Minute,
		"bad":     0, // non-positive timeouts fall back to the default
	})

	assert.Equal(t, 45*time.Minute, r.Timeout("imports"))
	assert.Equal(t, DefaultTimeout, r.Timeout("bad"))
	assert.NoError(t, r.Validate("imports"))
}

func TestRegistry_Validate(t *testing.T) {
	r := NewRegistry("site1.example", nil)

	assert.NoError(t, r.Validate("default"))
	err := r.Validate("turbo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue should be one of default, long, short")
}

func TestRegistry_Namespacing(t *testing.T) {
	r := NewRegistry("site1.example", nil)

	assert.Equal(t, "site1.example:long", r.Qualified("long"))
	assert.Equal(t,
		[]string{"site1.example:default", "site1.example:long", "site1.example:short"},
		r.QualifiedList())

	logical, ok := r.Logical("site1.example:short")
	require.True(t, ok)
	assert.Equal(t, "short", logical)

	_, ok = r.Logical("site2.example:short")
	assert.False(t, ok)

	_, ok = r.Logical("site1.example:turbo")
	assert.False(t, ok)
}
