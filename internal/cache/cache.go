// Package cache provee un cache clave/valor con backend memory o redis.
//
// Lo usa el vault para no ir a storage en cada lookup de clave pública. Un
// cache caído nunca es fatal: los callers degradan a storage.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set guarda un valor. ttl 0 = sin expiración.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error

	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver     string // "memory" | "redis" | "none"
	Addr       string
	Password   string
	DB         int
	Prefix     string // Prefijo para todas las keys
	DefaultTTL time.Duration
}

var ErrNotFound = errors.New("cache: key not found")

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// New crea un cliente de cache según la configuración. Driver "none" (o vacío)
// devuelve nil: los callers tratan un Client nil como cache deshabilitado.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg), nil
	case "memory":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	case "none", "":
		return nil, nil
	default:
		return nil, errors.New("cache: driver desconocido " + cfg.Driver)
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
