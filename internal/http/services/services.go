// Package services agrupa los services HTTP. Es el composition root de la capa
// de servicio: server arma Deps una vez y los controllers reciben Services.
package services

import (
	"time"

	"github.com/dropDatabas3/cipherpool/internal/domain/repository"
	"github.com/dropDatabas3/cipherpool/internal/http/services/bot"
	"github.com/dropDatabas3/cipherpool/internal/http/services/keys"
	"github.com/dropDatabas3/cipherpool/internal/http/services/markets"
	"github.com/dropDatabas3/cipherpool/internal/rate"
)

// Deps son las dependencias externas compartidas.
type Deps struct {
	Vault          keys.Vault
	Curve          string
	Store          repository.Store
	Notifier       markets.Notifier
	MiniAppURL     string
	BotName        string
	MarketTTL      time.Duration
	StorageTimeout time.Duration

	// Limiter y límites que el bot comparte con los endpoints REST
	Limiter     rate.Limiter
	KeygenLimit int
	MarketLimit int
}

// Services contiene todos los services.
type Services struct {
	Keys    keys.KeysService
	Markets markets.MarketsService
	Bot     bot.BotService
}

func New(d Deps) *Services {
	k := keys.NewKeysService(keys.Deps{Vault: d.Vault, Curve: d.Curve})
	m := markets.NewMarketsService(markets.Deps{
		Markets:        d.Store,
		Predictions:    d.Store,
		Notifier:       d.Notifier,
		MiniAppURL:     d.MiniAppURL,
		TTL:            d.MarketTTL,
		StorageTimeout: d.StorageTimeout,
	})
	b := bot.NewBotService(bot.Deps{
		Keys:              k,
		Markets:           m,
		BotName:           d.BotName,
		MiniAppURL:        d.MiniAppURL,
		Limiter:           d.Limiter,
		KeygenLimit:       d.KeygenLimit,
		MarketCreateLimit: d.MarketLimit,
	})
	return &Services{
		Keys:    k,
		Markets: m,
		Bot:     b,
	}
}
