package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/cipherpool/internal/domain/repository"
)

// ─── MarketRepository ───

func (s *Store) CreateMarket(ctx context.Context, m repository.Market) error {
	const query = `
		INSERT INTO markets (id, creator_id, group_id, payload, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	status := m.Status
	if status == "" {
		status = repository.MarketOpen
	}
	_, err := s.pool.Exec(ctx, query, m.ID, m.CreatorID, m.GroupID, m.Payload, string(status), m.CreatedAt, m.ExpiresAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (s *Store) GetMarket(ctx context.Context, id string) (*repository.Market, error) {
	const query = `
		SELECT id, creator_id, group_id, payload, status, outcome, created_at, expires_at
		FROM markets WHERE id = $1
	`
	var (
		m      repository.Market
		status string
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.CreatorID, &m.GroupID, &m.Payload, &status, &m.Outcome, &m.CreatedAt, &m.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Status = repository.MarketStatus(status)
	return &m, nil
}

func (s *Store) ResolveMarket(ctx context.Context, id string, outcome bool) error {
	const query = `UPDATE markets SET status = 'resolved', outcome = $2 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, outcome)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ─── PredictionRepository ───

func (s *Store) UpsertPrediction(ctx context.Context, p repository.Prediction) error {
	const query = `
		INSERT INTO predictions (identity, market_id, sealed_payload, receipt, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (identity, market_id) DO UPDATE SET
			sealed_payload = EXCLUDED.sealed_payload,
			receipt = EXCLUDED.receipt,
			updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query, p.Identity, p.MarketID, p.SealedPayload, p.Receipt)
	return err
}

func (s *Store) ListByIdentity(ctx context.Context, identity string) ([]repository.Prediction, error) {
	const query = `
		SELECT identity, market_id, sealed_payload, receipt, updated_at
		FROM predictions WHERE identity = $1
		ORDER BY updated_at DESC, market_id
	`
	rows, err := s.pool.Query(ctx, query, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.Prediction{}
	for rows.Next() {
		var p repository.Prediction
		if err := rows.Scan(&p.Identity, &p.MarketID, &p.SealedPayload, &p.Receipt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
