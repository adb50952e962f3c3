// Package bot resuelve los comandos de chat que reenvía el bot de grupo.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/cipherpool/internal/bot/command"
	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/http/dto"
	"github.com/dropDatabas3/cipherpool/internal/http/services/keys"
	"github.com/dropDatabas3/cipherpool/internal/http/services/markets"
	"github.com/dropDatabas3/cipherpool/internal/jwt"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
	"github.com/dropDatabas3/cipherpool/internal/rate"
)

var (
	ErrNotACommand = errs.New(errs.KindInvalid, "NOT_A_COMMAND")
	ErrUnknown     = errs.New(errs.KindInvalid, "UNKNOWN_COMMAND")
	ErrBadArgs     = errs.New(errs.KindInvalid, "BAD_COMMAND_ARGS")
	ErrNotCreator  = errs.New(errs.KindForbidden, "NOT_MARKET_CREATOR")
)

// BotService ejecuta un comando de chat en nombre de identity.
type BotService interface {
	Handle(ctx context.Context, callerRole string, req dto.BotCommandRequest) (*dto.BotCommandResponse, error)
}

// Deps contiene las dependencias del servicio.
type Deps struct {
	Keys       keys.KeysService
	Markets    markets.MarketsService
	BotName    string
	MiniAppURL string

	// Limiter es opcional. Cuenta /keys y /predict con las mismas acciones que
	// los endpoints REST, así el bot no es un atajo para saltar los límites.
	Limiter           rate.Limiter
	KeygenLimit       int
	MarketCreateLimit int
}

type botService struct {
	deps Deps
}

func NewBotService(deps Deps) BotService {
	return &botService{deps: deps}
}

func (s *botService) Handle(ctx context.Context, callerRole string, req dto.BotCommandRequest) (*dto.BotCommandResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("bot"), logger.Op("Handle"))

	cmd, err := command.Parse(req.Text, s.deps.BotName)
	if err != nil {
		return nil, mapParseErr(err)
	}
	log.Debug("bot command", logger.Kind(cmd.Kind.String()), logger.Identity(req.Identity), logger.GroupID(req.GroupID))

	out := &dto.BotCommandResponse{Command: cmd.Kind.String()}
	switch cmd.Kind {
	case command.Start:
		out.Reply = "Abrí el mini app para participar: " + s.deps.MiniAppURL
		out.Data = map[string]string{"url": s.deps.MiniAppURL}

	case command.Join:
		// unirse al pool = recibir el par de claves
		kp, err := s.issueKeys(ctx, req.Identity)
		if err != nil {
			return nil, err
		}
		out.Reply = "Te uniste al pool cifrado. Abrí el mini app: " + s.deps.MiniAppURL
		out.Data = kp

	case command.Keys:
		kp, err := s.issueKeys(ctx, req.Identity)
		if err != nil {
			return nil, err
		}
		out.Reply = "Tus claves están listas."
		out.Data = kp

	case command.Predict:
		if err := s.allow(ctx, req.Identity, rate.ActionMarketCreate, s.deps.MarketCreateLimit); err != nil {
			return nil, err
		}
		payload, _ := json.Marshal(map[string]string{"question": cmd.Question})
		mk, err := s.deps.Markets.Create(ctx, req.Identity, req.GroupID, payload)
		if err != nil {
			return nil, err
		}
		out.Reply = fmt.Sprintf("Nuevo mercado: %s\n%s", cmd.Question, mk.ShareableURL)
		out.Data = mk

	case command.Resolve:
		if callerRole != jwt.RoleAdmin {
			m, err := s.deps.Markets.Get(ctx, cmd.MarketID)
			if err != nil {
				return nil, err
			}
			if m.CreatorID != strings.TrimSpace(req.Identity) {
				return nil, ErrNotCreator
			}
		}
		res, err := s.deps.Markets.Resolve(ctx, cmd.MarketID, cmd.Outcome)
		if err != nil {
			return nil, err
		}
		verdict := "NO"
		if cmd.Outcome {
			verdict = "SÍ"
		}
		out.Reply = fmt.Sprintf("Mercado %s resuelto: %s", res.MarketID, verdict)
		out.Data = res

	default:
		return nil, ErrUnknown
	}
	return out, nil
}

// issueKeys cuenta contra el límite de keygen y devuelve el par vigente.
func (s *botService) issueKeys(ctx context.Context, identity string) (*dto.KeyPairResponse, error) {
	if err := s.allow(ctx, identity, rate.ActionKeygen, s.deps.KeygenLimit); err != nil {
		return nil, err
	}
	return s.deps.Keys.Issue(ctx, identity, false)
}

func (s *botService) allow(ctx context.Context, identity, action string, limit int) error {
	if s.deps.Limiter == nil {
		return nil
	}
	res, err := s.deps.Limiter.Allow(ctx, "bot:"+strings.TrimSpace(identity), action, limit)
	if err != nil {
		return err
	}
	if !res.Allowed {
		return errs.ErrRateLimited
	}
	return nil
}

func mapParseErr(err error) error {
	switch {
	case errors.Is(err, command.ErrNotACommand), errors.Is(err, command.ErrOtherBotName):
		return ErrNotACommand.WithCause(err)
	case errors.Is(err, command.ErrUnknown):
		return ErrUnknown.WithCause(err)
	default:
		return ErrBadArgs.WithCause(err)
	}
}
