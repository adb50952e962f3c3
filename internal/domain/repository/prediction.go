package repository

import (
	"context"
	"time"
)

// Prediction es la posición (sellada) de una identidad sobre un mercado.
type Prediction struct {
	Identity      string
	MarketID      string
	SealedPayload []byte
	Receipt       string
	UpdatedAt     time.Time
}

// PredictionRepository persiste predicciones con unicidad (identity, market_id).
type PredictionRepository interface {
	// UpsertPrediction sobrescribe una predicción previa del mismo par.
	UpsertPrediction(ctx context.Context, p Prediction) error
	ListByIdentity(ctx context.Context, identity string) ([]Prediction, error)
}

// Store agrupa los repositorios que necesita el servicio.
type Store interface {
	KeyRepository
	MarketRepository
	PredictionRepository
	Ping(ctx context.Context) error
	Close() error
}
