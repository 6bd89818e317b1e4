package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("j", "w")
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Size())
}

func TestLRUCache_DeleteAndClear(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1)
	c.Delete("a")
	assert.Zero(t, c.Size())

	c.Set("b", 2)
	c.Clear()
	_, ok := c.Get("b")
	assert.False(t, ok)
}

func TestLocalReportCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewLocalReportCache(8, time.Minute)

	require.NoError(t, c.Set(ctx, "summary:2024-06", []byte(`{"balance":1}`)))
	v, ok, err := c.Get(ctx, "summary:2024-06")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"balance":1}`, string(v))

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.Get(ctx, "summary:2024-06")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoopReportCache(t *testing.T) {
	var c ReportCache = NoopReportCache{}
	require.NoError(t, c.Set(context.Background(), "k", []byte("v")))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Register(NewLocalReportCache(1, time.Second))
	m.Stop()

	m.StartCleanup(10 * time.Millisecond)
	m.Stop()
}
