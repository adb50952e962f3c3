// Package router registra todas las rutas HTTP sobre chi.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/cipherpool/internal/http/controllers"
	httperrors "github.com/dropDatabas3/cipherpool/internal/http/errors"
	mw "github.com/dropDatabas3/cipherpool/internal/http/middlewares"
	"github.com/dropDatabas3/cipherpool/internal/jwt"
	"github.com/dropDatabas3/cipherpool/internal/rate"
)

// Limits por ventana de cada acción.
type Limits struct {
	Keygen       int
	Prediction   int
	MarketCreate int
	// throttle por IP del upgrade websocket (antes de autenticar)
	WSUpgradeRPS   float64
	WSUpgradeBurst int
}

// Deps contiene todo lo que el router necesita.
type Deps struct {
	Controllers *controllers.Controllers
	Verifier    mw.EnvelopeVerifier
	MaxAge      time.Duration
	Services    *jwt.ServiceIssuer
	Limiter     rate.Limiter
	Limits      Limits
	CORSOrigins []string
	Metrics     http.Handler
}

// New arma el handler raíz.
func New(d Deps) http.Handler {
	c := d.Controllers
	r := chi.NewRouter()

	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(d.CORSOrigins),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", c.Health.Healthz)
	r.Get("/readyz", c.Health.Readyz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	user := mw.RequireEnvelope(d.Verifier, d.MaxAge)
	anyService := mw.RequireService(d.Services, jwt.RoleBot, jwt.RoleAdmin)
	admin := mw.RequireService(d.Services, jwt.RoleAdmin)

	r.Route("/v1", func(r chi.Router) {
		// ─── service token ───
		r.With(anyService, mw.WithNoStore(), mw.WithActionLimit(d.Limiter, rate.ActionKeygen, d.Limits.Keygen, mw.BotRateKey)).
			Post("/keys", c.Keys.Issue)
		r.With(anyService, mw.WithActionLimit(d.Limiter, rate.ActionMarketCreate, d.Limits.MarketCreate, mw.BotRateKey)).
			Post("/markets", c.Markets.Create)
		r.With(anyService).Post("/bot/commands", c.Bot.Command)
		r.With(admin).Post("/admin/markets/{id}/resolve", c.Markets.Resolve)

		// ─── envelope ───
		r.With(user).Get("/keys/{identity}/public", c.Keys.PublicKey)
		r.With(user).Get("/markets/{id}", c.Markets.Get)
		r.With(user, mw.WithActionLimit(d.Limiter, rate.ActionPrediction, d.Limits.Prediction, mw.UserRateKey)).
			Post("/predictions", c.Markets.Predict)
		r.With(user).Get("/positions", c.Markets.Positions)

		// el upgrade autentica dentro del handler (?auth= o primer frame)
		r.With(mw.WithIPThrottle(d.Limits.WSUpgradeRPS, d.Limits.WSUpgradeBurst)).
			Get("/realtime", c.Realtime.Connect)
	})

	return r
}
