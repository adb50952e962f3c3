package keys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/security/curve"
	"github.com/dropDatabas3/cipherpool/internal/security/secretbox"
	"github.com/dropDatabas3/cipherpool/internal/store/memory"
	"github.com/dropDatabas3/cipherpool/internal/vault"
)

func newService(t *testing.T) KeysService {
	t.Helper()
	key, err := secretbox.GenerateKey()
	require.NoError(t, err)
	box, err := secretbox.New(key)
	require.NoError(t, err)
	v := vault.New(memory.New(), curve.P256{}, box, 0)
	return NewKeysService(Deps{Vault: v, Curve: "p256"})
}

func TestIssue_IdempotentUntilRotate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "42", false)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "p256", first.Curve)

	again, err := svc.Issue(ctx, " 42 ", false)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.PublicKey, again.PublicKey)
	assert.Equal(t, first.PrivateKey, again.PrivateKey)

	rotated, err := svc.Issue(ctx, "42", true)
	require.NoError(t, err)
	assert.NotEqual(t, first.PublicKey, rotated.PublicKey)

	pub, err := svc.PublicKey(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, rotated.PublicKey, pub.PublicKey)
}

func TestPublicKey_Errors(t *testing.T) {
	svc := newService(t)

	_, err := svc.PublicKey(context.Background(), "nobody")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))

	_, err = svc.PublicKey(context.Background(), "  ")
	require.ErrorIs(t, err, ErrIdentityRequired)

	_, err = svc.Issue(context.Background(), "", false)
	require.ErrorIs(t, err, ErrIdentityRequired)
}
