package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCacheManyAndInvalidate(t *testing.T) {
	c := New()
	ctx := context.Background()
	require.NoError(t, c.SetMany(ctx, map[string][]byte{
		"record:EU:patient:1": []byte("a"),
		"record:EU:patient:2": []byte("b"),
		"record:US:patient:1": []byte("c"),
	}, 0))

	got, err := c.GetMany(ctx, []string{"record:EU:patient:1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"record:EU:patient:1": []byte("a")}, got)

	n, err := c.Invalidate(ctx, "record:EU:patient:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, _ := c.Get(ctx, "record:US:patient:1")
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "record:US:patient:1"))
	_, ok, _ = c.Get(ctx, "record:US:patient:1")
	assert.False(t, ok)
}

func TestCacheReturnsCopies(t *testing.T) {
	c := New()
	ctx := context.Background()
	buf := []byte("v")
	require.NoError(t, c.Set(ctx, "k", buf, 0))
	buf[0] = 'x'
	v, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("v"), v)
}
