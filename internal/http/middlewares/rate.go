package middlewares

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/http/errors"
	"github.com/dropDatabas3/cipherpool/internal/http/helpers"
	"github.com/dropDatabas3/cipherpool/internal/metrics"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
	"github.com/dropDatabas3/cipherpool/internal/rate"
)

// clientIP extrae la IP del cliente, considerando proxies.
func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// extractJSONField lee hasta max bytes del body (si es JSON) para extraer un campo y repone el body.
func extractJSONField(r *http.Request, field string, max int64) string {
	if r.Method != http.MethodPost ||
		!strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	var buf bytes.Buffer
	_, _ = io.CopyN(&buf, r.Body, max)
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf.Bytes()), rest), rest}

	var tmp map[string]any
	if err := json.Unmarshal(buf.Bytes(), &tmp); err == nil {
		if s, ok := tmp[field].(string); ok {
			return s
		}
	}
	return ""
}

// RateKeyFunc devuelve la identidad contra la que se cuenta la acción.
type RateKeyFunc func(r *http.Request) string

// UserRateKey = "user:<id>" de la identidad del envelope.
func UserRateKey(r *http.Request) string {
	if id, ok := GetIdentity(r.Context()); ok {
		return "user:" + id.ID
	}
	return ""
}

// BotRateKey = "bot:<identity>" tomando identity del body (la identidad para la
// que el bot pide algo); si no viene, el subject del token de servicio.
// La identidad se normaliza igual que en los services: el contador y la
// identidad sobre la que se actúa tienen que ser la misma.
func BotRateKey(r *http.Request) string {
	if id := strings.TrimSpace(extractJSONField(r, "identity", helpers.MaxBodyBytes)); id != "" {
		return "bot:" + id
	}
	if c := GetService(r.Context()); c != nil {
		return "bot:" + c.Subject
	}
	return ""
}

// WithActionLimit limita action a limit llamadas por ventana y por identidad.
// Si el backend falla la request se rechaza como Transient.
func WithActionLimit(l rate.Limiter, action string, limit int, key RateKeyFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := key(r)
			if identity == "" {
				errors.WriteError(w, errs.ErrUnauthenticated)
				return
			}
			res, err := l.Allow(r.Context(), identity, action, limit)
			if err != nil {
				metrics.RateDecisions.WithLabelValues(action, "error").Inc()
				logger.From(r.Context()).Warn("rate_limit_error", logger.Action(action), logger.Err(err))
				errors.WriteError(w, err)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				metrics.RateDecisions.WithLabelValues(action, "denied").Inc()
				logger.From(r.Context()).Info("rate_limited", logger.Action(action), logger.Identity(identity))
				secs := int(math.Ceil(res.RetryAfter.Seconds()))
				errors.WriteError(w, errors.ErrRateLimitExceeded.WithRetryAfter(secs))
				return
			}
			metrics.RateDecisions.WithLabelValues(action, "allowed").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// ipLimiter aplica un token bucket por IP y desaloja entradas ociosas.
type ipLimiter struct {
	limit   xrate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*ipEntry
	hits  uint64
}

type ipEntry struct {
	limiter  *xrate.Limiter
	lastSeen time.Time
}

func (l *ipLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &ipEntry{limiter: xrate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

// WithIPThrottle frena ráfagas por IP antes de autenticar (p.ej. upgrades
// websocket). rps <= 0 desactiva el throttle.
func WithIPThrottle(rps float64, burst int) Middleware {
	if rps <= 0 || burst <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := &ipLimiter{
		limit:   xrate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		byKey:   make(map[string]*ipEntry),
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r), time.Now()) {
				errors.WriteError(w, errors.ErrRateLimitExceeded.WithRetryAfter(1))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
