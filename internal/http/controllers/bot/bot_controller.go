// Package bot contiene el controller de comandos del bot.
package bot

import (
	"net/http"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/http/dto"
	httperrors "github.com/dropDatabas3/cipherpool/internal/http/errors"
	"github.com/dropDatabas3/cipherpool/internal/http/helpers"
	"github.com/dropDatabas3/cipherpool/internal/http/middlewares"
	svc "github.com/dropDatabas3/cipherpool/internal/http/services/bot"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
)

type BotController struct {
	service svc.BotService
}

func NewBotController(service svc.BotService) *BotController {
	return &BotController{service: service}
}

// Command maneja POST /v1/bot/commands.
func (c *BotController) Command(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("BotController.Command"))

	claims := middlewares.GetService(ctx)
	if claims == nil {
		httperrors.WriteError(w, errs.ErrUnauthenticated)
		return
	}
	var req dto.BotCommandRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}
	out, err := c.service.Handle(ctx, claims.Role, req)
	if err != nil {
		log.Info("bot command rejected", logger.Any("code", errs.CodeOf(err)))
		httperrors.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, out)
}
