package repository

import (
	"context"
	"time"
)

// MarketStatus estado de un mercado.
type MarketStatus string

const (
	MarketOpen     MarketStatus = "open"
	MarketResolved MarketStatus = "resolved"
)

// Market es un registro de mercado. Payload es opaco para el servidor.
type Market struct {
	ID        string
	CreatorID string
	GroupID   string
	Payload   []byte
	Status    MarketStatus
	Outcome   *bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// MarketRepository persiste mercados.
type MarketRepository interface {
	CreateMarket(ctx context.Context, m Market) error
	GetMarket(ctx context.Context, id string) (*Market, error)
	// ResolveMarket marca el mercado como resuelto. ErrNotFound si no existe.
	ResolveMarket(ctx context.Context, id string, outcome bool) error
}
