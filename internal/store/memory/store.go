// Package memory implementa repository.Store en memoria. Es el driver por
// defecto en desarrollo y el que usan los tests de servicios.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/cipherpool/internal/domain/repository"
)

type Store struct {
	mu          sync.RWMutex
	keys        map[string]repository.KeyRecord
	markets     map[string]repository.Market
	predictions map[string]map[string]repository.Prediction // identity -> market -> p
	now         func() time.Time
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		keys:        make(map[string]repository.KeyRecord),
		markets:     make(map[string]repository.Market),
		predictions: make(map[string]map[string]repository.Prediction),
		now:         time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// ─── KeyRepository ───

func (s *Store) GetKeyPair(_ context.Context, identity string) (*repository.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.keys[identity]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rec.PublicKey = append([]byte(nil), rec.PublicKey...)
	return &rec, nil
}

func (s *Store) UpsertKeyPair(_ context.Context, rec repository.KeyRecord, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.keys[rec.Identity]
	switch {
	case !exists && expectedVersion != 0:
		return 0, repository.ErrConflict
	case exists && cur.Version != expectedVersion:
		return 0, repository.ErrConflict
	}
	now := s.now().UTC()
	rec.Version = expectedVersion + 1
	rec.UpdatedAt = now
	if exists {
		rec.CreatedAt = cur.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.PublicKey = append([]byte(nil), rec.PublicKey...)
	s.keys[rec.Identity] = rec
	return rec.Version, nil
}

// ─── MarketRepository ───

func (s *Store) CreateMarket(_ context.Context, m repository.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markets[m.ID]; ok {
		return repository.ErrConflict
	}
	if m.Status == "" {
		m.Status = repository.MarketOpen
	}
	m.Payload = append([]byte(nil), m.Payload...)
	s.markets[m.ID] = m
	return nil
}

func (s *Store) GetMarket(_ context.Context, id string) (*repository.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m.Payload = append([]byte(nil), m.Payload...)
	return &m, nil
}

func (s *Store) ResolveMarket(_ context.Context, id string, outcome bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.Status = repository.MarketResolved
	m.Outcome = &outcome
	s.markets[id] = m
	return nil
}

// ─── PredictionRepository ───

func (s *Store) UpsertPrediction(_ context.Context, p repository.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byMarket, ok := s.predictions[p.Identity]
	if !ok {
		byMarket = make(map[string]repository.Prediction)
		s.predictions[p.Identity] = byMarket
	}
	p.SealedPayload = append([]byte(nil), p.SealedPayload...)
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now().UTC()
	}
	byMarket[p.MarketID] = p
	return nil
}

func (s *Store) ListByIdentity(_ context.Context, identity string) ([]repository.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repository.Prediction, 0, len(s.predictions[identity]))
	for _, p := range s.predictions[identity] {
		p.SealedPayload = append([]byte(nil), p.SealedPayload...)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].MarketID < out[j].MarketID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
