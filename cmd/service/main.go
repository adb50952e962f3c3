package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/cipherpool/internal/config"
	"github.com/dropDatabas3/cipherpool/internal/http/server"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path al config YAML (opcional)")
	flag.Parse()

	// .env es opcional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.L().Fatal("config load failed", logger.Err(err))
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "cipherpool", Version: version})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, cfg, server.Options{})
	if err != nil {
		log.Fatal("wiring failed", logger.Err(err))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// sin WriteTimeout: cortaría las conexiones websocket
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Timeouts.Shutdown, 15*time.Second))
		defer cancel()

		// el hub primero: las conexiones websocket son hijacked y Shutdown no las espera
		_ = app.Hub.Close()
		serr := srv.Shutdown(sctx)
		return errors.Join(serr, app.Close())
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", logger.Err(err))
		os.Exit(1)
	}
	log.Info("bye")
}
