package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/jwt"
	"github.com/dropDatabas3/cipherpool/internal/security/channel"
	"github.com/dropDatabas3/cipherpool/internal/security/curve"
	"github.com/dropDatabas3/cipherpool/internal/security/envelope"
	"github.com/dropDatabas3/cipherpool/internal/security/secretbox"
	"github.com/dropDatabas3/cipherpool/internal/store/memory"
	"github.com/dropDatabas3/cipherpool/internal/vault"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func keypair(t *testing.T, c string) map[string]string {
	t.Helper()
	out, err := run(t, "", "keypair", "--curve", c)
	require.NoError(t, err)
	var kp map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &kp))
	return kp
}

func TestSealOpenRoundTrip(t *testing.T) {
	for _, c := range []string{"p256", "secp256k1"} {
		t.Run(c, func(t *testing.T) {
			a, b := keypair(t, c), keypair(t, c)

			sealed, err := run(t, "ping", "seal", "--curve", c, "--private-key", a["privateKey"], "--peer-public-key", b["publicKey"])
			require.NoError(t, err)

			opened, err := run(t, sealed, "open", "--curve", c, "--private-key", b["privateKey"], "--peer-public-key", a["publicKey"])
			require.NoError(t, err)
			assert.Equal(t, "ping", opened)

			_, err = run(t, sealed, "open", "--curve", c, "--private-key", b["privateKey"], "--peer-public-key", a["publicKey"], "--context", "otro")
			require.Error(t, err)
		})
	}
}

func TestServiceTokenAndEnvelope(t *testing.T) {
	out, err := run(t, "", "service-token", "--secret", "s3cret", "--role", "admin", "--subject", "ops")
	require.NoError(t, err)
	iss, err := jwt.NewServiceIssuer("s3cret", 0)
	require.NoError(t, err)
	claims, err := iss.Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, jwt.RoleAdmin, claims.Role)

	out, err = run(t, "", "sign-envelope", "--secret", "platform", "--user-id", "77")
	require.NoError(t, err)
	v, err := envelope.NewVerifier("platform")
	require.NoError(t, err)
	id, err := v.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "77", id.ID)
}

func TestGenMasterKey(t *testing.T) {
	out, err := run(t, "", "gen-master-key")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	_, err = run(t, "", "seal", "--private-key", "zz", "--peer-public-key", hex.EncodeToString([]byte{4}))
	require.Error(t, err)
}

func TestAPIRequiresToken(t *testing.T) {
	t.Setenv("CIPHERPOOL_TOKEN", "")
	_, err := run(t, "", "api", "resolve", "--market", "x", "--outcome", "yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestVaultSecret_CustodiedPair(t *testing.T) {
	ctx := context.Background()
	k, err := secretbox.GenerateKey()
	require.NoError(t, err)
	box, err := secretbox.New(k)
	require.NoError(t, err)
	c := curve.P256{}
	v := vault.New(memory.New(), c, box, 0)
	for _, id := range []string{"alice", "bob"} {
		_, err := v.Issue(ctx, id)
		require.NoError(t, err)
	}

	ab, err := vaultSecret(ctx, c, v, "alice", "bob")
	require.NoError(t, err)
	ba, err := vaultSecret(ctx, c, v, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, ab, ba)

	msg, err := channel.Seal([]byte("ping"), ab, channel.DefaultContext)
	require.NoError(t, err)
	pt, err := channel.Open(msg, ba, channel.DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(pt))

	_, err = vaultSecret(ctx, c, v, "alice", "ghost")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
	_, err = vaultSecret(ctx, c, v, "ghost", "bob")
	require.ErrorIs(t, err, vault.ErrKeyNotFound)
}

func TestSeal_CustodyFlagsGoTogether(t *testing.T) {
	_, err := run(t, "ping", "seal", "--as", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--peer")
}
