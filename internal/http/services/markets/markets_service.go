// Package markets implementa mercados y predicciones sobre payloads opacos.
//
// El servidor nunca interpreta Payload ni SealedPayload: los guarda y los
// devuelve tal cual. El recibo de una predicción es sha256(hex) del payload.
package markets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/cipherpool/internal/audit"
	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/domain/repository"
	"github.com/dropDatabas3/cipherpool/internal/http/dto"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
	"github.com/dropDatabas3/cipherpool/internal/realtime"
)

// Notificaciones emitidas.
const (
	KindMarketResolved     = "market.resolved"
	KindPredictionReceived = "prediction.received"
)

var (
	ErrMarketNotFound   = errs.New(errs.KindNotFound, "MARKET_NOT_FOUND")
	ErrMarketClosed     = errs.New(errs.KindConflict, "MARKET_CLOSED")
	ErrAlreadyResolved  = errs.New(errs.KindConflict, "MARKET_ALREADY_RESOLVED")
	ErrPayloadRequired  = errs.New(errs.KindInvalid, "PAYLOAD_REQUIRED")
	ErrMarketIDRequired = errs.New(errs.KindInvalid, "MARKET_ID_REQUIRED")
	ErrIdentityRequired = errs.New(errs.KindInvalid, "IDENTITY_REQUIRED")
	ErrStorage          = errs.New(errs.KindTransient, "STORAGE_UNAVAILABLE")
)

// Notifier es la parte del hub que usa el servicio.
type Notifier interface {
	Send(ctx context.Context, identity string, n realtime.Notification) realtime.Outcome
	Broadcast(ctx context.Context, n realtime.Notification) int
}

// MarketsService define las operaciones de mercados.
type MarketsService interface {
	Create(ctx context.Context, creator, groupID string, payload json.RawMessage) (*dto.CreateMarketResponse, error)
	Get(ctx context.Context, id string) (*dto.MarketResponse, error)
	Predict(ctx context.Context, identity, marketID string, sealed json.RawMessage) (*dto.SubmitPredictionResponse, error)
	Positions(ctx context.Context, identity string) (*dto.PositionsResponse, error)
	Resolve(ctx context.Context, id string, outcome bool) (*dto.ResolveMarketResponse, error)
}

// Deps contiene las dependencias del servicio.
type Deps struct {
	Markets        repository.MarketRepository
	Predictions    repository.PredictionRepository
	Notifier       Notifier
	MiniAppURL     string
	TTL            time.Duration // vida de un mercado; default 7 días
	StorageTimeout time.Duration
	Now            func() time.Time
}

type marketsService struct {
	deps Deps
}

func NewMarketsService(deps Deps) MarketsService {
	if deps.TTL <= 0 {
		deps.TTL = 7 * 24 * time.Hour
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &marketsService{deps: deps}
}

func (s *marketsService) Create(ctx context.Context, creator, groupID string, payload json.RawMessage) (*dto.CreateMarketResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("markets"), logger.Op("Create"))

	creator = strings.TrimSpace(creator)
	if creator == "" {
		return nil, ErrIdentityRequired
	}
	if isEmptyJSON(payload) {
		return nil, ErrPayloadRequired
	}

	now := s.deps.Now().UTC()
	m := repository.Market{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		CreatorID: creator,
		GroupID:   strings.TrimSpace(groupID),
		Payload:   payload,
		Status:    repository.MarketOpen,
		CreatedAt: now,
		ExpiresAt: now.Add(s.deps.TTL),
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()
	if err := s.deps.Markets.CreateMarket(sctx, m); err != nil {
		return nil, s.storageErr(ctx, "create_market", err)
	}

	audit.Log(ctx, audit.EventMarketCreated, logger.MarketID(m.ID), logger.Identity(creator), logger.GroupID(m.GroupID))
	log.Debug("market created", logger.MarketID(m.ID))
	return &dto.CreateMarketResponse{
		ID:           m.ID,
		ShareableURL: ShareURL(s.deps.MiniAppURL, m.ID),
		ExpiresAt:    m.ExpiresAt,
	}, nil
}

func (s *marketsService) Get(ctx context.Context, id string) (*dto.MarketResponse, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.MarketResponse{
		ID:        m.ID,
		CreatorID: m.CreatorID,
		GroupID:   m.GroupID,
		Payload:   json.RawMessage(m.Payload),
		Status:    string(m.Status),
		Outcome:   m.Outcome,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}, nil
}

// Predict guarda (o sobrescribe) la predicción de identity sobre marketID y
// avisa al creador si está conectado.
func (s *marketsService) Predict(ctx context.Context, identity, marketID string, sealed json.RawMessage) (*dto.SubmitPredictionResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("markets"), logger.Op("Predict"))

	if isEmptyJSON(sealed) {
		return nil, ErrPayloadRequired
	}
	m, err := s.load(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Status != repository.MarketOpen || !s.deps.Now().Before(m.ExpiresAt) {
		return nil, ErrMarketClosed
	}

	sum := sha256.Sum256(sealed)
	p := repository.Prediction{
		Identity:      identity,
		MarketID:      m.ID,
		SealedPayload: sealed,
		Receipt:       hex.EncodeToString(sum[:]),
		UpdatedAt:     s.deps.Now().UTC(),
	}
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()
	if err := s.deps.Predictions.UpsertPrediction(sctx, p); err != nil {
		return nil, s.storageErr(ctx, "upsert_prediction", err)
	}

	if s.deps.Notifier != nil && m.CreatorID != identity {
		out := s.deps.Notifier.Send(ctx, m.CreatorID, realtime.Notification{
			Kind: KindPredictionReceived,
			Body: map[string]any{"market_id": m.ID},
		})
		log.Debug("creator notified", logger.MarketID(m.ID), logger.Any("outcome", out.String()))
	}

	log.Info("prediction stored", logger.MarketID(m.ID), logger.Identity(identity))
	return &dto.SubmitPredictionResponse{MarketID: m.ID, Receipt: p.Receipt}, nil
}

func (s *marketsService) Positions(ctx context.Context, identity string) (*dto.PositionsResponse, error) {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()
	list, err := s.deps.Predictions.ListByIdentity(sctx, identity)
	if err != nil {
		return nil, s.storageErr(ctx, "list_predictions", err)
	}
	out := &dto.PositionsResponse{Identity: identity, Positions: make([]dto.Position, 0, len(list))}
	for _, p := range list {
		out.Positions = append(out.Positions, dto.Position{
			MarketID:      p.MarketID,
			SealedPayload: json.RawMessage(p.SealedPayload),
			Receipt:       p.Receipt,
			UpdatedAt:     p.UpdatedAt,
		})
	}
	return out, nil
}

// Resolve fija el resultado y lo difunde a todas las conexiones vivas.
func (s *marketsService) Resolve(ctx context.Context, id string, outcome bool) (*dto.ResolveMarketResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("markets"), logger.Op("Resolve"))

	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status == repository.MarketResolved {
		return nil, ErrAlreadyResolved
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()
	if err := s.deps.Markets.ResolveMarket(sctx, m.ID, outcome); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, s.storageErr(ctx, "resolve_market", err)
	}

	delivered := 0
	if s.deps.Notifier != nil {
		delivered = s.deps.Notifier.Broadcast(ctx, realtime.Notification{
			Kind: KindMarketResolved,
			Body: map[string]any{"market_id": m.ID, "resolved": true, "outcome": outcome},
		})
	}
	audit.Log(ctx, audit.EventMarketResolved, logger.MarketID(m.ID), logger.Any("outcome", outcome))
	log.Info("market resolved", logger.MarketID(m.ID), logger.Count(delivered))
	return &dto.ResolveMarketResponse{MarketID: m.ID, Outcome: outcome, Delivered: delivered}, nil
}

func (s *marketsService) load(ctx context.Context, id string) (*repository.Market, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrMarketIDRequired
	}
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()
	m, err := s.deps.Markets.GetMarket(sctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMarketNotFound
	}
	if err != nil {
		return nil, s.storageErr(ctx, "get_market", err)
	}
	return m, nil
}

func (s *marketsService) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.deps.StorageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.deps.StorageTimeout)
}

func (s *marketsService) storageErr(ctx context.Context, op string, err error) error {
	logger.From(ctx).Warn("storage error", logger.Op(op), logger.Err(err))
	return ErrStorage.WithCause(err)
}

// ShareURL arma el deep link del mini app: <base>?startapp=<id>.
func ShareURL(base, id string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("startapp", id)
	u.RawQuery = q.Encode()
	return u.String()
}

func isEmptyJSON(b json.RawMessage) bool {
	s := strings.TrimSpace(string(b))
	return s == "" || s == "null"
}
