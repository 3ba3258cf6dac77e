package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdemCache_GetMiss(t *testing.T) {
	c := newIdemCache(2)
	_, ok := c.get("missing")
	require.False(t, ok)
}

func TestIdemCache_PutGetRoundTrip(t *testing.T) {
	c := newIdemCache(2)
	c.put("a", Result{Success: true, Output: []byte("hello")})

	got, ok := c.get("a")
	require.True(t, ok)
	require.True(t, got.Success)
	require.Equal(t, []byte("hello"), got.Output)
}

func TestIdemCache_EvictsOldestAtCapacity(t *testing.T) {
	c := newIdemCache(2)
	c.put("a", Result{Success: true})
	c.put("b", Result{Success: true})
	c.put("c", Result{Success: true})

	_, ok := c.get("a")
	require.False(t, ok, "oldest key must be evicted once capacity is exceeded")

	_, ok = c.get("b")
	require.True(t, ok)
	_, ok = c.get("c")
	require.True(t, ok)
	require.Equal(t, 2, c.size())
}

func TestIdemCache_DefaultsCapacityWhenNonPositive(t *testing.T) {
	c := newIdemCache(0)
	require.Equal(t, 1000, c.capacity)
}
