// Package rate limita acciones por (identidad, acción) en ventanas fijas.
//
// Una ventana es el índice now.Truncate(window); el contador se incrementa de
// forma atómica y la llamada pasa si el valor previo era < limit. Cada acción
// tiene su propio contador.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
)

// Acciones limitadas por el servicio.
const (
	ActionKeygen       = "keygen"
	ActionPrediction   = "prediction"
	ActionMarketCreate = "market.create"
)

// ErrBackend se devuelve cuando el contador no está disponible.
var ErrBackend = errs.New(errs.KindTransient, "RATE_BACKEND_UNAVAILABLE")

type Result struct {
	Allowed     bool
	Limit       int64
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, identity, action string, limit int) (Result, error)
	Close() error
}

// Clock permite fijar el tiempo en tests.
type Clock func() time.Time

// window agrupa el cálculo de clave y restos de ventana, común a ambos backends.
type window struct {
	size time.Duration
	now  Clock
}

func newWindow(size time.Duration, now Clock) window {
	if size <= 0 {
		size = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return window{size: size, now: now}
}

// key = action:identity:windowStartUnix. Los espacios se normalizan para que
// la clave sea segura en redis.
func (w window) key(identity, action string, start time.Time) string {
	return fmt.Sprintf("%s:%s:%d",
		strings.ReplaceAll(action, " ", "_"),
		strings.ReplaceAll(identity, " ", "_"),
		start.Unix())
}

func (w window) result(hits int64, limit int, start, now time.Time) Result {
	max := int64(limit)
	allowed := hits <= max // hits es post-incremento: pre < limit
	remaining := max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{Allowed: allowed, Limit: max, Remaining: remaining, CurrentHits: hits}
	if !allowed {
		res.RetryAfter = start.Add(w.size).Sub(now)
		if res.RetryAfter <= 0 {
			res.RetryAfter = time.Second
		}
	}
	return res
}
