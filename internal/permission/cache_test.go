package permission_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/nemt-dispatch/internal/permission"
	"github.com/pkordes/nemt-dispatch/testutil"
)

var cacheStart = time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)

func TestCache_ExpiresAfterTTL(t *testing.T) {
	clock := testutil.NewClock(cacheStart)
	c := permission.NewCache[string, int](time.Minute, clock.NowFunc())

	c.Put("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clock.Advance(59 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry expires exactly at TTL")
}

func TestCache_ExpiredGetKeepsConcurrentPut(t *testing.T) {
	clock := testutil.NewClock(cacheStart)
	var (
		c      *permission.Cache[string, int]
		racing bool
	)
	// Once racing is set, the next clock read stores a fresh value, which lands
	// between Get's read and its eviction of the stale entry.
	now := func() time.Time {
		if racing {
			racing = false
			c.Put("a", 2)
		}
		return clock.Now()
	}
	c = permission.NewCache[string, int](time.Minute, now)

	c.Put("a", 1)
	clock.Advance(time.Minute)
	racing = true
	_, ok := c.Get("a")
	assert.False(t, ok)

	v, ok := c.Get("a")
	require.True(t, ok, "fresh entry must survive the stale eviction")
	assert.Equal(t, 2, v)
}

func TestCache_Invalidate(t *testing.T) {
	c := permission.NewCache[string, int](time.Minute, nil)
	c.Put("a", 1)
	c.Put("b", 2)

	c.Invalidate("a")
	_, okA := c.Get("a")
	_, okB := c.Get("b")
	assert.False(t, okA)
	assert.True(t, okB)

	c.InvalidateAll()
	_, okB = c.Get("b")
	assert.False(t, okB)
}

func TestCache_GetOrLoad(t *testing.T) {
	clock := testutil.NewClock(cacheStart)
	c := permission.NewCache[string, int](time.Minute, clock.NowFunc())
	loads := 0
	load := func(context.Context) (int, error) {
		loads++
		return loads, nil
	}
	ctx := context.Background()

	v1, err := c.GetOrLoad(ctx, "k", load)
	require.NoError(t, err)
	v2, err := c.GetOrLoad(ctx, "k", load)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)
	assert.Equal(t, 1, v2)
	assert.Equal(t, 1, loads)

	clock.Advance(2 * time.Minute)
	v3, err := c.GetOrLoad(ctx, "k", load)
	require.NoError(t, err)
	assert.Equal(t, 2, v3)
}

func TestCache_RefreshErrorKeepsOldValue(t *testing.T) {
	c := permission.NewCache[string, int](time.Minute, nil)
	c.Put("k", 7)
	boom := errors.New("boom")

	_, err := c.Refresh(context.Background(), "k", func(context.Context) (int, error) { return 0, boom })

	assert.ErrorIs(t, err, boom)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}
