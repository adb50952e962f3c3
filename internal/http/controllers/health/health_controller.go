// Package health contiene el controller para health checks.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/cipherpool/internal/http/helpers"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
)

// Pinger es cualquier dependencia que sabe responder si está viva.
type Pinger interface {
	Ping(ctx context.Context) error
}

type response struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// HealthController maneja las rutas de health check.
type HealthController struct {
	deps    map[string]Pinger
	timeout time.Duration
}

// NewHealthController crea el controller. deps se chequean en /readyz.
func NewHealthController(deps map[string]Pinger, timeout time.Duration) *HealthController {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthController{deps: deps, timeout: timeout}
}

// Healthz maneja GET /healthz (liveness, sin dependencias).
func (c *HealthController) Healthz(w http.ResponseWriter, _ *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz maneja GET /readyz
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	resp := response{Status: "ready", Components: map[string]string{}}
	for name, p := range c.deps {
		if err := p.Ping(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Components[name] = "down"
			log.Warn("readiness check failed", logger.Component(name), logger.Err(err))
			continue
		}
		resp.Components[name] = "up"
	}

	status := http.StatusOK
	if resp.Status == "unavailable" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, status, resp)
}
