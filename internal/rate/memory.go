package rate

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter guarda contadores en go-cache. Cada contador vive 2 ventanas y
// el janitor de go-cache purga los vencidos.
type MemoryLimiter struct {
	c *gocache.Cache
	w window
}

func NewMemoryLimiter(windowSize time.Duration, now Clock) *MemoryLimiter {
	w := newWindow(windowSize, now)
	return &MemoryLimiter{
		c: gocache.New(2*w.size, w.size),
		w: w,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, identity, action string, limit int) (Result, error) {
	now := l.w.now().UTC()
	start := now.Truncate(l.w.size)
	key := l.w.key(identity, action, start)

	// Add sólo crea si no existe; IncrementInt64 es atómico bajo el lock del cache.
	_ = l.c.Add(key, int64(0), 2*l.w.size)
	hits, err := l.c.IncrementInt64(key, 1)
	if err != nil {
		return Result{}, ErrBackend.WithCause(err)
	}
	return l.w.result(hits, limit, start, now), nil
}

// Len cuenta contadores guardados (incluye vencidos aún no purgados).
func (l *MemoryLimiter) Len() int { return l.c.ItemCount() }

// Purge elimina contadores vencidos sin esperar al janitor.
func (l *MemoryLimiter) Purge() { l.c.DeleteExpired() }

func (l *MemoryLimiter) Close() error {
	l.c.Flush()
	return nil
}
