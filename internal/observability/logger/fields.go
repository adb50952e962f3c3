package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

// DurationMs duración en milisegundos.
func DurationMs(d time.Duration) zap.Field { return zap.Int64("duration_ms", d.Milliseconds()) }

// =================================================================================
// CAMPOS ESTÁNDAR - DOMINIO
// =================================================================================

// Identity id de plataforma del usuario autenticado.
func Identity(v string) zap.Field { return zap.String("identity", v) }

// Action acción sujeta a rate limit (keygen, prediction, market.create).
func Action(v string) zap.Field { return zap.String("action", v) }

func MarketID(v string) zap.Field { return zap.String("market_id", v) }
func GroupID(v string) zap.Field  { return zap.String("group_id", v) }
func Curve(v string) zap.Field    { return zap.String("curve", v) }

// Kind tipo de notificación realtime o categoría de error.
func Kind(v string) zap.Field { return zap.String("kind", v) }

// ConnID id interno de una conexión realtime.
func ConnID(v string) zap.Field { return zap.String("conn_id", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
