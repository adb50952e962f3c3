package rate

import (
	"context"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisLimiter: fixed window sencillo (INCR + EXPIRE), compartido entre réplicas.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	w      window
}

func NewRedisLimiter(client *rdb.Client, prefix string, windowSize time.Duration, now Clock) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, w: newWindow(windowSize, now)}
}

func (l *RedisLimiter) Allow(ctx context.Context, identity, action string, limit int) (Result, error) {
	now := l.w.now().UTC()
	start := now.Truncate(l.w.size)
	redisKey := l.Prefix + l.w.key(identity, action, start)

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// la clave incluye el índice de ventana: refrescar el TTL en cada hit es inocuo
	pipe.Expire(ctx, redisKey, 2*l.w.size)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, ErrBackend.WithCause(err)
	}
	return l.w.result(incr.Val(), limit, start, now), nil
}

func (l *RedisLimiter) Close() error { return l.Client.Close() }
