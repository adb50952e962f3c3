package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/cipherpool/internal/domain/repository"
)

func TestUpsertKeyPair_Versioning(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetKeyPair(ctx, "alice")
	require.ErrorIs(t, err, repository.ErrNotFound)

	v, err := s.UpsertKeyPair(ctx, repository.KeyRecord{Identity: "alice", PublicKey: []byte{4, 1}}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// segundo "primer insert" pierde
	_, err = s.UpsertKeyPair(ctx, repository.KeyRecord{Identity: "alice", PublicKey: []byte{4, 2}}, 0)
	require.ErrorIs(t, err, repository.ErrConflict)

	v, err = s.UpsertKeyPair(ctx, repository.KeyRecord{Identity: "alice", PublicKey: []byte{4, 3}}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	rec, err := s.GetKeyPair(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 3}, rec.PublicKey)
	assert.Equal(t, int64(2), rec.Version)
	assert.False(t, rec.CreatedAt.After(rec.UpdatedAt))

	_, err = s.UpsertKeyPair(ctx, repository.KeyRecord{Identity: "bob"}, 7)
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestMarkets(t *testing.T) {
	ctx := context.Background()
	s := New()

	m := repository.Market{ID: "m1", CreatorID: "c", Payload: []byte("opaque")}
	require.NoError(t, s.CreateMarket(ctx, m))
	require.ErrorIs(t, s.CreateMarket(ctx, m), repository.ErrConflict)

	got, err := s.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, repository.MarketOpen, got.Status)
	assert.Nil(t, got.Outcome)

	require.NoError(t, s.ResolveMarket(ctx, "m1", true))
	got, err = s.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, repository.MarketResolved, got.Status)
	require.NotNil(t, got.Outcome)
	assert.True(t, *got.Outcome)

	require.ErrorIs(t, s.ResolveMarket(ctx, "nope", false), repository.ErrNotFound)
}

func TestPredictions_UpsertByPair(t *testing.T) {
	ctx := context.Background()
	s := New()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertPrediction(ctx, repository.Prediction{Identity: "u", MarketID: "a", SealedPayload: []byte("1"), UpdatedAt: t0}))
	require.NoError(t, s.UpsertPrediction(ctx, repository.Prediction{Identity: "u", MarketID: "b", SealedPayload: []byte("2"), UpdatedAt: t0.Add(time.Minute)}))
	require.NoError(t, s.UpsertPrediction(ctx, repository.Prediction{Identity: "u", MarketID: "a", SealedPayload: []byte("3"), UpdatedAt: t0.Add(2 * time.Minute)}))

	list, err := s.ListByIdentity(ctx, "u")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].MarketID)
	assert.Equal(t, []byte("3"), list[0].SealedPayload)

	other, err := s.ListByIdentity(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}
