// Package vault custodia un par EC por identidad. La privada se guarda cifrada
// con secretbox (AAD = identidad) y sólo se descifra para devolverla a su dueño.
package vault

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/cipherpool/internal/audit"
	"github.com/dropDatabas3/cipherpool/internal/cache"
	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/domain/repository"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
	"github.com/dropDatabas3/cipherpool/internal/security/curve"
	"github.com/dropDatabas3/cipherpool/internal/security/secretbox"
)

// Errores del vault.
var (
	ErrKeyNotFound   = errs.New(errs.KindNotFound, "KEY_NOT_FOUND")
	ErrStorage       = errs.New(errs.KindTransient, "KEY_STORAGE_UNAVAILABLE")
	ErrKeyMaterial   = errs.New(errs.KindCryptoFailure, "KEY_MATERIAL_INVALID")
	ErrEmptyIdentity = errs.New(errs.KindInvalid, "IDENTITY_REQUIRED")
)

// KeyPair es lo que ve el dueño: ambas claves en hex.
type KeyPair struct {
	Identity   string `json:"identity"`
	Curve      string `json:"curve"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
	Version    int64  `json:"version"`
	Created    bool   `json:"created"`
}

// Vault implementa Issue/Reissue/PublicKey sobre un KeyRepository.
type Vault struct {
	repo    repository.KeyRepository
	curve   curve.Curve
	box     *secretbox.Box
	timeout time.Duration

	pubCache cache.Client
	pubTTL   time.Duration
}

// New construye el vault. timeout acota cada operación de storage (0 = sin límite
// propio, sólo el del ctx).
func New(repo repository.KeyRepository, c curve.Curve, box *secretbox.Box, timeout time.Duration) *Vault {
	return &Vault{repo: repo, curve: c, box: box, timeout: timeout}
}

// WithPublicKeyCache cachea las públicas por ttl. Cada write del par invalida
// la entrada; con un cache local por instancia otra réplica puede servir la
// pública vieja hasta ttl.
func (v *Vault) WithPublicKeyCache(c cache.Client, ttl time.Duration) *Vault {
	v.pubCache = c
	v.pubTTL = ttl
	return v
}

// Curve expone la curva configurada (la misma que usa el canal).
func (v *Vault) Curve() curve.Curve { return v.curve }

// Issue devuelve el par existente o genera uno en la primera llamada.
// Dos Issue concurrentes para la misma identidad terminan con el mismo par.
func (v *Vault) Issue(ctx context.Context, identity string) (*KeyPair, error) {
	if identity == "" {
		return nil, ErrEmptyIdentity
	}
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := v.get(ctx, identity)
		switch {
		case err == nil:
			return v.open(rec, false)
		case !errors.Is(err, repository.ErrNotFound):
			return nil, v.storageErr(ctx, "issue", identity, err)
		}

		kp, err := v.write(ctx, identity, 0)
		if errors.Is(err, repository.ErrConflict) {
			// otro Issue ganó: releer y devolver el suyo
			continue
		}
		return kp, err
	}
	return nil, ErrStorage.WithCause(repository.ErrConflict)
}

// Reissue reemplaza siempre el par. Lo previamente sellado con la clave vieja
// deja de poder abrirse.
func (v *Vault) Reissue(ctx context.Context, identity string) (*KeyPair, error) {
	if identity == "" {
		return nil, ErrEmptyIdentity
	}
	for attempt := 0; attempt < 2; attempt++ {
		var expected int64
		rec, err := v.get(ctx, identity)
		switch {
		case err == nil:
			expected = rec.Version
		case !errors.Is(err, repository.ErrNotFound):
			return nil, v.storageErr(ctx, "reissue", identity, err)
		}

		kp, err := v.write(ctx, identity, expected)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		kp.Created = expected == 0
		return kp, nil
	}
	return nil, ErrStorage.WithCause(repository.ErrConflict)
}

// PublicKey devuelve sólo la pública (bytes crudos). NotFound si no hay par.
func (v *Vault) PublicKey(ctx context.Context, identity string) ([]byte, error) {
	if v.pubCache != nil {
		if pub, err := v.pubCache.Get(ctx, pubCacheKey(identity)); err == nil {
			return pub, nil
		} else if !cache.IsNotFound(err) {
			logger.From(ctx).Debug("vault_cache_error", logger.Op("get"), logger.Err(err))
		}
	}
	rec, err := v.get(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, v.storageErr(ctx, "public_key", identity, err)
	}
	if v.pubCache != nil {
		if err := v.pubCache.Set(ctx, pubCacheKey(identity), rec.PublicKey, v.pubTTL); err != nil {
			logger.From(ctx).Debug("vault_cache_error", logger.Op("set"), logger.Err(err))
		}
	}
	return rec.PublicKey, nil
}

func pubCacheKey(identity string) string { return "pub:" + identity }

// PrivateKey descifra la privada custodiada de identity. Nunca sale por la API
// HTTP; la usa el modo custodia de poolctl seal/open.
func (v *Vault) PrivateKey(ctx context.Context, identity string) ([]byte, error) {
	rec, err := v.get(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, v.storageErr(ctx, "private_key", identity, err)
	}
	priv, err := v.box.Open(rec.PrivateKeyEnc, []byte(identity))
	if err != nil {
		return nil, ErrKeyMaterial.WithCause(err)
	}
	return priv, nil
}

func (v *Vault) get(ctx context.Context, identity string) (*repository.KeyRecord, error) {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()
	return v.repo.GetKeyPair(ctx, identity)
}

// write genera un par nuevo y lo persiste condicionado a expected.
// Devuelve repository.ErrConflict sin envolver para que el caller reintente.
func (v *Vault) write(ctx context.Context, identity string, expected int64) (*KeyPair, error) {
	pub, priv, err := v.curve.GenerateKeyPair()
	if err != nil {
		return nil, ErrKeyMaterial.WithCause(err)
	}
	enc, err := v.box.Seal(priv, []byte(identity))
	if err != nil {
		return nil, ErrKeyMaterial.WithCause(err)
	}

	wctx, cancel := v.withTimeout(ctx)
	defer cancel()
	version, err := v.repo.UpsertKeyPair(wctx, repository.KeyRecord{
		Identity:      identity,
		Curve:         v.curve.Name(),
		PublicKey:     pub,
		PrivateKeyEnc: enc,
	}, expected)
	if errors.Is(err, repository.ErrConflict) {
		return nil, err
	}
	if err != nil {
		return nil, v.storageErr(ctx, "upsert", identity, err)
	}

	if v.pubCache != nil {
		if err := v.pubCache.Delete(ctx, pubCacheKey(identity)); err != nil {
			logger.From(ctx).Warn("vault_cache_error", logger.Op("invalidate"), logger.Identity(identity), logger.Err(err))
		}
	}
	audit.Log(ctx, audit.EventKeyWritten,
		logger.Identity(identity), logger.Curve(v.curve.Name()), zap.Int64("version", version))
	logger.From(ctx).Debug("vault_keypair_written",
		logger.Identity(identity), logger.Curve(v.curve.Name()), zap.Int64("version", version))

	return &KeyPair{
		Identity:   identity,
		Curve:      v.curve.Name(),
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: hex.EncodeToString(priv),
		Version:    version,
		Created:    expected == 0,
	}, nil
}

func (v *Vault) open(rec *repository.KeyRecord, created bool) (*KeyPair, error) {
	if rec.Curve != "" && rec.Curve != v.curve.Name() {
		return nil, ErrKeyMaterial.WithCause(curve.ErrInvalidKey)
	}
	priv, err := v.box.Open(rec.PrivateKeyEnc, []byte(rec.Identity))
	if err != nil {
		return nil, ErrKeyMaterial.WithCause(err)
	}
	return &KeyPair{
		Identity:   rec.Identity,
		Curve:      v.curve.Name(),
		PublicKey:  hex.EncodeToString(rec.PublicKey),
		PrivateKey: hex.EncodeToString(priv),
		Version:    rec.Version,
		Created:    created,
	}, nil
}

func (v *Vault) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, v.timeout)
}

func (v *Vault) storageErr(ctx context.Context, op, identity string, err error) error {
	logger.From(ctx).Warn("vault_storage_error",
		logger.Op(op), logger.Identity(identity), logger.Err(err))
	return ErrStorage.WithCause(err)
}
