package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/cipherpool/internal/domain/repository"
)

// ─── KeyRepository ───

func (s *Store) GetKeyPair(ctx context.Context, identity string) (*repository.KeyRecord, error) {
	const query = `
		SELECT identity, curve, public_key, private_key_enc, version, created_at, updated_at
		FROM identity_keys WHERE identity = $1
	`
	var rec repository.KeyRecord
	err := s.pool.QueryRow(ctx, query, identity).Scan(
		&rec.Identity, &rec.Curve, &rec.PublicKey, &rec.PrivateKeyEnc, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertKeyPair: expectedVersion 0 inserta sólo si no existe; cualquier otro
// valor actualiza sólo si la versión almacenada coincide. 0 filas = conflicto.
func (s *Store) UpsertKeyPair(ctx context.Context, rec repository.KeyRecord, expectedVersion int64) (int64, error) {
	const insertQuery = `
		INSERT INTO identity_keys (identity, curve, public_key, private_key_enc, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, NOW(), NOW())
		ON CONFLICT (identity) DO NOTHING
		RETURNING version
	`
	const updateQuery = `
		UPDATE identity_keys SET
			curve = $2,
			public_key = $3,
			private_key_enc = $4,
			version = version + 1,
			updated_at = NOW()
		WHERE identity = $1 AND version = $5
		RETURNING version
	`
	var (
		version int64
		err     error
	)
	if expectedVersion == 0 {
		err = s.pool.QueryRow(ctx, insertQuery, rec.Identity, rec.Curve, rec.PublicKey, rec.PrivateKeyEnc).Scan(&version)
	} else {
		err = s.pool.QueryRow(ctx, updateQuery, rec.Identity, rec.Curve, rec.PublicKey, rec.PrivateKeyEnc, expectedVersion).Scan(&version)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, repository.ErrConflict
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}
