// Package keys expone KeyVault a la capa HTTP.
package keys

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/http/dto"
	"github.com/dropDatabas3/cipherpool/internal/metrics"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
	"github.com/dropDatabas3/cipherpool/internal/vault"
)

var ErrIdentityRequired = errs.New(errs.KindInvalid, "IDENTITY_REQUIRED")

// Vault es lo que el servicio necesita del KeyVault.
type Vault interface {
	Issue(ctx context.Context, identity string) (*vault.KeyPair, error)
	Reissue(ctx context.Context, identity string) (*vault.KeyPair, error)
	PublicKey(ctx context.Context, identity string) ([]byte, error)
}

// KeysService define las operaciones de claves.
type KeysService interface {
	Issue(ctx context.Context, identity string, rotate bool) (*dto.KeyPairResponse, error)
	PublicKey(ctx context.Context, identity string) (*dto.PublicKeyResponse, error)
}

// Deps contiene las dependencias del servicio.
type Deps struct {
	Vault Vault
	Curve string
}

type keysService struct {
	deps Deps
}

func NewKeysService(deps Deps) KeysService {
	return &keysService{deps: deps}
}

func (s *keysService) Issue(ctx context.Context, identity string, rotate bool) (*dto.KeyPairResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("keys"),
		logger.Op("Issue"),
	)
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, ErrIdentityRequired
	}

	op := "issue"
	issue := s.deps.Vault.Issue
	if rotate {
		op = "reissue"
		issue = s.deps.Vault.Reissue
	}
	kp, err := issue(ctx, identity)
	if err != nil {
		metrics.VaultOperations.WithLabelValues(op, string(errs.KindOf(err))).Inc()
		log.Warn("keypair issue failed", logger.Identity(identity), logger.Kind(string(errs.KindOf(err))))
		return nil, err
	}
	metrics.VaultOperations.WithLabelValues(op, "ok").Inc()
	log.Info("keypair issued", logger.Identity(identity), logger.Any("created", kp.Created))

	return &dto.KeyPairResponse{
		Identity:   kp.Identity,
		Curve:      kp.Curve,
		PublicKey:  kp.PublicKey,
		PrivateKey: kp.PrivateKey,
		Created:    kp.Created,
	}, nil
}

func (s *keysService) PublicKey(ctx context.Context, identity string) (*dto.PublicKeyResponse, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, ErrIdentityRequired
	}
	pub, err := s.deps.Vault.PublicKey(ctx, identity)
	if err != nil {
		metrics.VaultOperations.WithLabelValues("public_key", string(errs.KindOf(err))).Inc()
		return nil, err
	}
	metrics.VaultOperations.WithLabelValues("public_key", "ok").Inc()
	return &dto.PublicKeyResponse{
		Identity:  identity,
		Curve:     s.deps.Curve,
		PublicKey: hex.EncodeToString(pub),
	}, nil
}
