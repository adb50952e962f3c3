package middlewares

import (
	"context"

	"github.com/dropDatabas3/cipherpool/internal/jwt"
	"github.com/dropDatabas3/cipherpool/internal/security/envelope"
)

type ctxKey string

const (
	ctxRequestIDKey ctxKey = "request_id"
	ctxIdentityKey  ctxKey = "identity"
	ctxServiceKey   ctxKey = "service"
)

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// WithIdentity inyecta la identidad verificada (envelope) en el contexto.
func WithIdentity(ctx context.Context, id envelope.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}

// WithService inyecta los claims del token de servicio.
func WithService(ctx context.Context, c *jwt.ServiceClaims) context.Context {
	return context.WithValue(ctx, ctxServiceKey, c)
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}

// GetIdentity devuelve la identidad autenticada por RequireEnvelope.
func GetIdentity(ctx context.Context) (envelope.Identity, bool) {
	id, ok := ctx.Value(ctxIdentityKey).(envelope.Identity)
	return id, ok && id.ID != ""
}

// GetService devuelve los claims del caller de servicio (nil si no hay).
func GetService(ctx context.Context) *jwt.ServiceClaims {
	c, _ := ctx.Value(ctxServiceKey).(*jwt.ServiceClaims)
	return c
}
