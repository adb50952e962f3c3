// Package server arma el handler HTTP con todas sus dependencias a partir de
// la config. cmd/service sólo se ocupa del ciclo de vida del proceso.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/cipherpool/internal/cache"
	"github.com/dropDatabas3/cipherpool/internal/config"
	"github.com/dropDatabas3/cipherpool/internal/domain/repository"
	"github.com/dropDatabas3/cipherpool/internal/http/controllers"
	"github.com/dropDatabas3/cipherpool/internal/http/controllers/health"
	"github.com/dropDatabas3/cipherpool/internal/http/router"
	"github.com/dropDatabas3/cipherpool/internal/http/services"
	"github.com/dropDatabas3/cipherpool/internal/jwt"
	"github.com/dropDatabas3/cipherpool/internal/metrics"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
	"github.com/dropDatabas3/cipherpool/internal/rate"
	"github.com/dropDatabas3/cipherpool/internal/realtime"
	"github.com/dropDatabas3/cipherpool/internal/security/curve"
	"github.com/dropDatabas3/cipherpool/internal/security/envelope"
	"github.com/dropDatabas3/cipherpool/internal/security/secretbox"
	"github.com/dropDatabas3/cipherpool/internal/store"
	"github.com/dropDatabas3/cipherpool/internal/vault"
)

// App es el grafo de dependencias ya construido.
type App struct {
	Handler http.Handler
	Hub     *realtime.Hub
	Store   repository.Store
	Limiter rate.Limiter
	Vault   *vault.Vault
	Issuer  *jwt.ServiceIssuer
	Cache   cache.Client // nil si cache.driver=none
}

// Options permite a los tests reemplazar piezas sin tocar la config.
type Options struct {
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Now        func() time.Time
}

// Close libera hub, limiter, cache y storage en ese orden.
func (a *App) Close() error {
	var errs []error
	if a.Hub != nil {
		errs = append(errs, a.Hub.Close())
	}
	if a.Limiter != nil {
		errs = append(errs, a.Limiter.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

// Build construye todo el grafo. Ante error libera lo que ya se abrió.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	log := logger.From(ctx).With(logger.Component("server"))
	app := &App{}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	// 1. Crypto: una sola curva para vault y canal
	c, err := curve.ByName(cfg.Crypto.Curve)
	if err != nil {
		return nil, err
	}
	box, err := secretbox.New(cfg.Crypto.VaultMasterKey)
	if err != nil {
		return nil, fmt.Errorf("vault master key: %w", err)
	}
	verifier, err := envelope.NewVerifier(cfg.Auth.PlatformSecret)
	if err != nil {
		return nil, err
	}
	app.Issuer, err = jwt.NewServiceIssuer(cfg.Auth.ServiceTokenSecret, config.Duration(cfg.Auth.ServiceTokenTTL, 720*time.Hour))
	if err != nil {
		return nil, err
	}

	// 2. Storage
	storageTimeout := config.Duration(cfg.Timeouts.Storage, 5*time.Second)
	app.Store, err = store.Open(ctx, store.Config{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
		Postgres: store.PoolConfigFrom(
			cfg.Storage.Postgres.MaxOpenConns,
			cfg.Storage.Postgres.MaxIdleConns,
			config.Duration(cfg.Storage.Postgres.ConnMaxLifetime, 30*time.Minute),
		),
		Migrate: cfg.Storage.Migrate,
	})
	if err != nil {
		return nil, err
	}

	// 3. Rate limiter
	window := config.Duration(cfg.Rate.Window, time.Minute)
	switch cfg.Rate.Backend {
	case "redis":
		client := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Rate.Redis.Addr,
			DB:       cfg.Rate.Redis.DB,
			Password: cfg.Rate.Redis.Password,
		})
		if perr := client.Ping(ctx).Err(); perr != nil {
			// el limiter falla cerrado por request; arrancamos igual
			log.Warn("redis ping failed", logger.Err(perr))
		}
		app.Limiter = rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix, window, opts.Now)
	default:
		app.Limiter = rate.NewMemoryLimiter(window, opts.Now)
	}

	// 4. Vault (+ cache de públicas) y hub
	app.Cache, err = cache.New(cache.Config{
		Driver:     cfg.Cache.Driver,
		Addr:       cfg.Rate.Redis.Addr,
		Password:   cfg.Rate.Redis.Password,
		DB:         cfg.Rate.Redis.DB,
		Prefix:     "cipherpool",
		DefaultTTL: config.Duration(cfg.Cache.TTL, 30*time.Second),
	})
	if err != nil {
		return nil, err
	}
	app.Vault = vault.New(app.Store, c, box, storageTimeout)
	if app.Cache != nil {
		app.Vault.WithPublicKeyCache(app.Cache, config.Duration(cfg.Cache.TTL, 30*time.Second))
	}
	app.Hub = realtime.NewHub(verifier, realtime.Options{
		WriteTimeout: config.Duration(cfg.Timeouts.Write, 5*time.Second),
		MaxAge:       config.Duration(cfg.Auth.MaxAge, 0),
		Now:          opts.Now,
	})

	// 5. Metrics
	if err := metrics.Register(opts.Registerer); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	// 6. Services → controllers → router
	svcs := services.New(services.Deps{
		Vault:          app.Vault,
		Curve:          c.Name(),
		Store:          app.Store,
		Notifier:       app.Hub,
		MiniAppURL:     cfg.App.MiniAppURL,
		BotName:        cfg.App.BotName,
		MarketTTL:      config.Duration(cfg.Markets.TTL, 7*24*time.Hour),
		StorageTimeout: storageTimeout,
		Limiter:        app.Limiter,
		KeygenLimit:    cfg.Rate.Keygen,
		MarketLimit:    cfg.Rate.MarketCreate,
	})
	ctrls := controllers.New(svcs, controllers.RealtimeDeps{
		Hub:              app.Hub,
		OriginPatterns:   cfg.Server.WSOriginPatterns,
		HandshakeTimeout: config.Duration(cfg.Timeouts.Handshake, 10*time.Second),
	}, map[string]health.Pinger{"storage": app.Store})

	app.Handler = router.New(router.Deps{
		Controllers: ctrls,
		Verifier:    verifier,
		MaxAge:      config.Duration(cfg.Auth.MaxAge, 0),
		Services:    app.Issuer,
		Limiter:     app.Limiter,
		Limits: router.Limits{
			Keygen:         cfg.Rate.Keygen,
			Prediction:     cfg.Rate.Prediction,
			MarketCreate:   cfg.Rate.MarketCreate,
			WSUpgradeRPS:   cfg.Rate.WSUpgradeRPS,
			WSUpgradeBurst: cfg.Rate.WSUpgradeBurst,
		},
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		Metrics:     metrics.Handler(opts.Gatherer),
	})

	log.Info("server wired",
		logger.Curve(c.Name()),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("rate_backend", cfg.Rate.Backend),
		zap.String("cache", cfg.Cache.Driver),
	)
	return app, nil
}
