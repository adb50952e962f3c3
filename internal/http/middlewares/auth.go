package middlewares

import (
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/http/errors"
	"github.com/dropDatabas3/cipherpool/internal/jwt"
	"github.com/dropDatabas3/cipherpool/internal/metrics"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
	"github.com/dropDatabas3/cipherpool/internal/security/envelope"
)

// EnvelopeVerifier valida initData crudo.
type EnvelopeVerifier interface {
	Verify(raw string) (envelope.Identity, error)
}

// EnvelopeFromRequest toma el envelope de "Authorization: tma <initData>" o,
// para el upgrade websocket, del query param "auth".
func EnvelopeFromRequest(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		scheme, raw, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "tma") {
			return strings.TrimSpace(raw)
		}
	}
	return r.URL.Query().Get("auth")
}

// RequireEnvelope autentica al usuario final. maxAge <= 0 desactiva el chequeo
// de frescura de auth_date.
func RequireEnvelope(v EnvelopeVerifier, maxAge time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := EnvelopeFromRequest(r)
			if raw == "" {
				metrics.EnvelopeVerifications.WithLabelValues("rejected").Inc()
				errors.WriteError(w, errs.ErrUnauthenticated)
				return
			}
			id, err := v.Verify(raw)
			if err == nil {
				err = envelope.CheckFreshness(id, maxAge, time.Now())
			}
			if err != nil {
				metrics.EnvelopeVerifications.WithLabelValues("rejected").Inc()
				logger.From(r.Context()).Info("envelope_rejected", logger.Any("code", errs.CodeOf(err)))
				errors.WriteError(w, err)
				return
			}
			metrics.EnvelopeVerifications.WithLabelValues("ok").Inc()

			ctx := WithIdentity(r.Context(), id)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.Identity(id.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireService valida un Bearer de servicio y, si roles no está vacío, que
// el rol del token sea uno de ellos.
func RequireService(iss *jwt.ServiceIssuer, roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := strings.TrimSpace(r.Header.Get("Authorization"))
			scheme, tok, ok := strings.Cut(h, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tok) == "" {
				errors.WriteError(w, errs.ErrUnauthenticated)
				return
			}
			claims, err := iss.Parse(strings.TrimSpace(tok))
			if err != nil {
				errors.WriteError(w, errs.ErrUnauthenticated.WithCause(err))
				return
			}
			if len(roles) > 0 && !hasRole(claims.Role, roles) {
				errors.WriteError(w, errs.ErrForbidden)
				return
			}
			ctx := WithService(r.Context(), claims)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.Any("service", claims.Subject)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
