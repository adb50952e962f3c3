// Package keys contiene el controller de KeyVault.
package keys

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/cipherpool/internal/http/dto"
	httperrors "github.com/dropDatabas3/cipherpool/internal/http/errors"
	"github.com/dropDatabas3/cipherpool/internal/http/helpers"
	svc "github.com/dropDatabas3/cipherpool/internal/http/services/keys"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
)

// KeysController maneja /v1/keys.
type KeysController struct {
	service svc.KeysService
}

func NewKeysController(service svc.KeysService) *KeysController {
	return &KeysController{service: service}
}

// Issue maneja POST /v1/keys (token de servicio). Devuelve el par completo,
// incluida la privada: sólo el bot la entrega a su dueño.
func (c *KeysController) Issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("KeysController.Issue"))

	var req dto.IssueKeysRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Identity == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithCode("IDENTITY_REQUIRED"))
		return
	}

	out, err := c.service.Issue(ctx, req.Identity, req.Rotate)
	if err != nil {
		log.Debug("issue failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	helpers.WriteJSON(w, status, out)
}

// PublicKey maneja GET /v1/keys/{identity}/public.
func (c *KeysController) PublicKey(w http.ResponseWriter, r *http.Request) {
	out, err := c.service.PublicKey(r.Context(), chi.URLParam(r, "identity"))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}
