package repository

import (
	"context"
	"time"
)

// KeyRecord es el par de claves persistido de una identidad.
// PublicKey va en claro; PrivateKeyEnc es el resultado de secretbox
// (nonce|ciphertext) bajo la master key del vault.
type KeyRecord struct {
	Identity      string
	Curve         string
	PublicKey     []byte
	PrivateKeyEnc string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// KeyRepository custodia un único par por identidad.
type KeyRepository interface {
	// GetKeyPair devuelve el par actual o ErrNotFound.
	GetKeyPair(ctx context.Context, identity string) (*KeyRecord, error)

	// UpsertKeyPair inserta o reemplaza el par de forma atómica si la versión
	// almacenada coincide con expectedVersion (0 = no existe todavía).
	// Devuelve la nueva versión, o ErrConflict si otro escritor ganó.
	UpsertKeyPair(ctx context.Context, rec KeyRecord, expectedVersion int64) (int64, error)
}
