package rate

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 5, 0, time.UTC)}
}

func allowSeq(t *testing.T, l Limiter, identity, action string, limit, n int) []bool {
	t.Helper()
	out := make([]bool, n)
	for i := range out {
		res, err := l.Allow(context.Background(), identity, action, limit)
		require.NoError(t, err)
		out[i] = res.Allowed
	}
	return out
}

func TestMemoryLimiter_WindowSequence(t *testing.T) {
	clk := newClock()
	l := NewMemoryLimiter(time.Minute, clk.Now)
	defer l.Close()

	assert.Equal(t, []bool{true, true, true, false, false}, allowSeq(t, l, "bot:1", "keygen", 3, 5))

	clk.Advance(time.Minute)
	assert.Equal(t, []bool{true}, allowSeq(t, l, "bot:1", "keygen", 3, 1))
}

func TestMemoryLimiter_IndependentActionsAndIdentities(t *testing.T) {
	clk := newClock()
	l := NewMemoryLimiter(time.Minute, clk.Now)
	defer l.Close()

	allowSeq(t, l, "user:1", "prediction", 2, 2)
	res, err := l.Allow(context.Background(), "user:1", "prediction", 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
	// quedan 55s hasta el fin de la ventana
	assert.Equal(t, 55*time.Second, res.RetryAfter)

	assert.Equal(t, []bool{true}, allowSeq(t, l, "user:1", "keygen", 2, 1))
	assert.Equal(t, []bool{true}, allowSeq(t, l, "user:2", "prediction", 2, 1))
}

func TestMemoryLimiter_ZeroLimitDeniesEverything(t *testing.T) {
	l := NewMemoryLimiter(time.Minute, newClock().Now)
	defer l.Close()
	assert.Equal(t, []bool{false, false}, allowSeq(t, l, "u", "a", 0, 2))
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l := NewMemoryLimiter(time.Minute, newClock().Now)
	defer l.Close()

	const limit = 10
	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(context.Background(), "u", "prediction", limit)
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(limit), allowed.Load())
}

func TestMemoryLimiter_ExpiredWindowsArePurged(t *testing.T) {
	l := NewMemoryLimiter(20*time.Millisecond, nil)
	defer l.Close()

	for i := 0; i < 5; i++ {
		_, err := l.Allow(context.Background(), fmt.Sprintf("u%d", i), "a", 1)
		require.NoError(t, err)
	}
	require.Equal(t, 5, l.Len())

	time.Sleep(60 * time.Millisecond)
	l.Purge()
	assert.Equal(t, 0, l.Len())
}

// TestRedisLimiter requiere un redis real (TEST_REDIS_ADDR).
func TestRedisLimiter_WindowSequence(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR no seteada")
	}
	client := rdb.NewClient(&rdb.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())

	clk := newClock()
	prefix := fmt.Sprintf("rltest:%d:", time.Now().UnixNano())
	l := NewRedisLimiter(client, prefix, time.Minute, clk.Now)
	defer l.Close()

	assert.Equal(t, []bool{true, true, true, false, false}, allowSeq(t, l, "bot:1", "keygen", 3, 5))
	clk.Advance(time.Minute)
	assert.Equal(t, []bool{true}, allowSeq(t, l, "bot:1", "keygen", 3, 1))
}

func TestRedisLimiter_BackendDown(t *testing.T) {
	client := rdb.NewClient(&rdb.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	l := NewRedisLimiter(client, "", time.Minute, nil)
	defer l.Close()

	_, err := l.Allow(context.Background(), "u", "a", 1)
	require.ErrorIs(t, err, ErrBackend)
}
