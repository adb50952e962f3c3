// Package store abre el backend de storage configurado.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/cipherpool/internal/domain/repository"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
	"github.com/dropDatabas3/cipherpool/internal/store/memory"
	"github.com/dropDatabas3/cipherpool/internal/store/pg"
	migrations "github.com/dropDatabas3/cipherpool/migrations/postgres"
)

type Config struct {
	Driver   string
	DSN      string
	Postgres pg.PoolConfig
	// Migrate aplica las migraciones embebidas al abrir (sólo postgres).
	Migrate bool
}

// Open devuelve el repository.Store del driver pedido.
func Open(ctx context.Context, cfg Config) (repository.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "memory", "":
		return memory.New(), nil
	case "postgres", "pg", "postgresql":
		st, err := pg.New(ctx, cfg.DSN, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			res, err := st.Migrate(ctx, migrations.PostgresFS, migrations.PostgresDir)
			if err != nil {
				_ = st.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.From(ctx).Info("migrations applied",
				zap.Ints("applied", res.Applied),
				zap.Ints("skipped", res.Skipped),
				logger.DurationMs(res.Duration))
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}

// PoolConfigFrom arma la config del pool a partir de strings de config.
func PoolConfigFrom(maxOpen, maxIdle int, lifetime time.Duration) pg.PoolConfig {
	return pg.PoolConfig{MaxOpenConns: maxOpen, MaxIdleConns: maxIdle, ConnMaxLifetime: lifetime}
}
