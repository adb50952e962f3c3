package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/cipherpool/internal/domain/repository"
	migrations "github.com/dropDatabas3/cipherpool/migrations/postgres"
)

func TestParseMigrations_Embedded(t *testing.T) {
	migs, err := ParseMigrations(migrations.PostgresFS, migrations.PostgresDir)
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "init", migs[0].Name)
	assert.Contains(t, migs[0].SQL, "identity_keys")
	for i := 1; i < len(migs); i++ {
		assert.Less(t, migs[i-1].Version, migs[i].Version)
	}
}

func TestNew_RejectsBadDSN(t *testing.T) {
	_, err := New(context.Background(), "postgres://%zz", PoolConfig{})
	require.Error(t, err)
}

// openTestStore requiere una base real; sin TEST_DATABASE_URL se saltea.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL no seteada")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := New(ctx, dsn, PoolConfig{MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	_, err = s.Migrate(ctx, migrations.PostgresFS, migrations.PostgresDir)
	require.NoError(t, err)
	return s
}

func TestStore_KeyVersioning(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := "test-" + time.Now().Format("150405.000000000")

	v, err := s.UpsertKeyPair(ctx, repository.KeyRecord{Identity: id, Curve: "p256", PublicKey: []byte{4}, PrivateKeyEnc: "a|b"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = s.UpsertKeyPair(ctx, repository.KeyRecord{Identity: id, Curve: "p256", PublicKey: []byte{5}, PrivateKeyEnc: "c|d"}, 0)
	require.ErrorIs(t, err, repository.ErrConflict)

	v, err = s.UpsertKeyPair(ctx, repository.KeyRecord{Identity: id, Curve: "p256", PublicKey: []byte{6}, PrivateKeyEnc: "e|f"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	rec, err := s.GetKeyPair(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte{6}, rec.PublicKey)

	_, err = s.GetKeyPair(ctx, id+"-missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_MarketsAndPredictions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := "m-" + time.Now().Format("150405.000000000")
	now := time.Now().UTC()

	require.NoError(t, s.CreateMarket(ctx, repository.Market{ID: id, CreatorID: "c", Payload: []byte("x"), CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.ErrorIs(t, s.CreateMarket(ctx, repository.Market{ID: id, CreatorID: "c", Payload: []byte("x"), CreatedAt: now, ExpiresAt: now}), repository.ErrConflict)

	require.NoError(t, s.UpsertPrediction(ctx, repository.Prediction{Identity: "u-" + id, MarketID: id, SealedPayload: []byte("1"), Receipt: "r1"}))
	require.NoError(t, s.UpsertPrediction(ctx, repository.Prediction{Identity: "u-" + id, MarketID: id, SealedPayload: []byte("2"), Receipt: "r2"}))
	list, err := s.ListByIdentity(ctx, "u-"+id)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "r2", list[0].Receipt)

	require.NoError(t, s.ResolveMarket(ctx, id, false))
	m, err := s.GetMarket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, repository.MarketResolved, m.Status)
	require.NotNil(t, m.Outcome)
	assert.False(t, *m.Outcome)
}
