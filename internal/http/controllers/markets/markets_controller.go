// Package markets contiene el controller de mercados y predicciones.
package markets

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/http/dto"
	httperrors "github.com/dropDatabas3/cipherpool/internal/http/errors"
	"github.com/dropDatabas3/cipherpool/internal/http/helpers"
	"github.com/dropDatabas3/cipherpool/internal/http/middlewares"
	svc "github.com/dropDatabas3/cipherpool/internal/http/services/markets"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
)

// MarketsController maneja /v1/markets, /v1/predictions y /v1/positions.
type MarketsController struct {
	service svc.MarketsService
}

func NewMarketsController(service svc.MarketsService) *MarketsController {
	return &MarketsController{service: service}
}

// Create maneja POST /v1/markets (token de servicio).
func (c *MarketsController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("MarketsController.Create"))

	var req dto.CreateMarketRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Identity) == "" || len(req.Payload) == 0 {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}
	out, err := c.service.Create(ctx, req.Identity, req.GroupID, req.Payload)
	if err != nil {
		log.Debug("create failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, out)
}

// Get maneja GET /v1/markets/{id}.
func (c *MarketsController) Get(w http.ResponseWriter, r *http.Request) {
	out, err := c.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Predict maneja POST /v1/predictions. La identidad sale del envelope, nunca
// del body.
func (c *MarketsController) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := middlewares.GetIdentity(ctx)
	if !ok {
		httperrors.WriteError(w, errs.ErrUnauthenticated)
		return
	}
	var req dto.SubmitPredictionRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.MarketID == "" || len(req.SealedPayload) == 0 {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}
	out, err := c.service.Predict(ctx, id.ID, req.MarketID, req.SealedPayload)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Positions maneja GET /v1/positions: sólo las del caller.
func (c *MarketsController) Positions(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, errs.ErrUnauthenticated)
		return
	}
	out, err := c.service.Positions(r.Context(), id.ID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Resolve maneja POST /v1/admin/markets/{id}/resolve.
func (c *MarketsController) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("MarketsController.Resolve"))

	var req dto.ResolveMarketRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Outcome == nil {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithCode("OUTCOME_REQUIRED"))
		return
	}
	out, err := c.service.Resolve(ctx, chi.URLParam(r, "id"), *req.Outcome)
	if err != nil {
		log.Info("resolve failed", logger.Any("code", errs.CodeOf(err)))
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}
