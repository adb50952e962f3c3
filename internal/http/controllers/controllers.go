// Package controllers agrupa todos los controllers HTTP.
//
//	svcs := services.New(deps)
//	ctrls := controllers.New(svcs, realtimeDeps, healthDeps)
//	h := router.New(router.Deps{Controllers: ctrls, ...})
package controllers

import (
	"time"

	"github.com/dropDatabas3/cipherpool/internal/http/controllers/bot"
	"github.com/dropDatabas3/cipherpool/internal/http/controllers/health"
	"github.com/dropDatabas3/cipherpool/internal/http/controllers/keys"
	"github.com/dropDatabas3/cipherpool/internal/http/controllers/markets"
	"github.com/dropDatabas3/cipherpool/internal/http/controllers/realtime"
	"github.com/dropDatabas3/cipherpool/internal/http/services"
)

// RealtimeDeps configura el endpoint websocket.
type RealtimeDeps struct {
	Hub              realtime.Hub
	OriginPatterns   []string
	HandshakeTimeout time.Duration
}

// Controllers contiene todos los controllers.
type Controllers struct {
	Keys     *keys.KeysController
	Markets  *markets.MarketsController
	Bot      *bot.BotController
	Realtime *realtime.RealtimeController
	Health   *health.HealthController
}

func New(s *services.Services, rt RealtimeDeps, ready map[string]health.Pinger) *Controllers {
	return &Controllers{
		Keys:     keys.NewKeysController(s.Keys),
		Markets:  markets.NewMarketsController(s.Markets),
		Bot:      bot.NewBotController(s.Bot),
		Realtime: realtime.NewRealtimeController(rt.Hub, rt.OriginPatterns, rt.HandshakeTimeout),
		Health:   health.NewHealthController(ready, 0),
	}
}
