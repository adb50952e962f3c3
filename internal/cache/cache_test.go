package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, c Client) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	require.True(t, IsNotFound(err))

	buf := []byte("pub-key")
	require.NoError(t, c.Set(ctx, "pub:42", buf, time.Minute))
	buf[0] = 'X'

	got, err := c.Get(ctx, "pub:42")
	require.NoError(t, err)
	assert.Equal(t, "pub-key", string(got))

	require.NoError(t, c.Delete(ctx, "pub:42"))
	_, err = c.Get(ctx, "pub:42")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, c.Ping(ctx))
}

func TestMemory(t *testing.T) {
	c := NewMemory("test", time.Minute)
	defer c.Close()
	exercise(t, c)
}

func TestMemory_Expiration(t *testing.T) {
	c := NewMemory("", 0)
	defer c.Close()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "k")
		return IsNotFound(err)
	}, time.Second, 5*time.Millisecond)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c := NewRedis(Config{Addr: addr, Prefix: "cachetest", DefaultTTL: time.Minute})
	defer c.Close()
	exercise(t, c)
}

func TestNew(t *testing.T) {
	c, err := New(Config{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New(Config{Driver: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = New(Config{Driver: "memcached"})
	require.Error(t, err)
}
