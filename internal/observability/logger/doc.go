// Package logger provee un logger Zap singleton con scoping por contexto.
//
//   - Singleton: una instancia global inicializada con Init() en cmd/service.
//   - Context scoping: cada request (o conexión realtime) lleva su propio logger
//     con request_id / identity sin crear un nuevo core.
//   - Entornos: "dev" usa consola con colores, "prod" usa JSON.
//
// Nunca loguear payloads, claves privadas ni el initData completo: sólo
// identificadores (ver fields.go).
//
// Uso:
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("prediction.submit"))
//	log.Info("prediction stored", logger.Identity(id), logger.MarketID(mid))
package logger
