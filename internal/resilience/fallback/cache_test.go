package fallback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetExpiry(t *testing.T) {
	c := NewCache(10)

	key, err := Key("planner.Plan", map[string]string{"task": "build"})
	require.NoError(t, err)

	c.Set(key, "cached-response", 20*time.Millisecond)

	v, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "cached-response", v)

	time.Sleep(25 * time.Millisecond)
	_, ok = c.Get(key)
	assert.False(t, ok, "entry must be treated as absent once expired")
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	c := NewCache(2)

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Set("c", "3", time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should be evicted once capacity is exceeded")

	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestKey_StableForEquivalentPayloads(t *testing.T) {
	p1 := map[string]string{"task": "build", "target": "x"}
	p2 := map[string]string{"task": "build", "target": "x"}

	k1, err := Key("planner.Plan", p1)
	require.NoError(t, err)
	k2, err := Key("planner.Plan", p2)
	require.NoError(t, err)

	assert.Equal(t, k1, k2, "structurally equal payloads must hash to the same key")
}

func TestKey_DiffersByMethod(t *testing.T) {
	payload := map[string]string{"task": "build"}

	k1, err := Key("planner.Plan", payload)
	require.NoError(t, err)
	k2, err := Key("analyst.Analyze", payload)
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
}
