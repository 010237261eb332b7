package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client, "test:"), mr
}

type view struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.Set(ctx, "v", view{Name: "a", Count: 3}, time.Minute))
	assert.True(t, mr.Exists("test:v"))

	var got view
	require.NoError(t, c.Get(ctx, "v", &got))
	assert.Equal(t, view{Name: "a", Count: 3}, got)
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestCache(t)

	var got view
	assert.ErrorIs(t, c.Get(context.Background(), "absent", &got), ErrMiss)
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.Set(ctx, "v", view{Name: "a"}, time.Second))
	mr.FastForward(2 * time.Second)

	var got view
	assert.ErrorIs(t, c.Get(ctx, "v", &got), ErrMiss)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, c.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("test:a"))
	assert.False(t, mr.Exists("test:b"))
}

func TestGetReportsBackendErrors(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	var got view
	err := c.Get(context.Background(), "v", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}
