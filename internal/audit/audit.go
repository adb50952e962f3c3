// Package audit registra eventos de seguridad (emisión y rotación de claves,
// alta y resolución de mercados) en el logger "audit".
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
)

// Eventos auditados.
const (
	EventKeyWritten     = "key.written"
	EventMarketCreated  = "market.created"
	EventMarketResolved = "market.resolved"
)

// Log escribe un evento con el logger del request (conserva request_id).
// Nunca incluye material de claves ni payloads: sólo identidades, ids y versiones.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	fields = append(fields, zap.String("event", event))
	logger.From(ctx).Named("audit").Info(event, fields...)
}
