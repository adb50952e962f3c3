package channel

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/security/curve"
)

type staticKeys map[string][]byte

func (s staticKeys) PublicKey(_ context.Context, id string) ([]byte, error) {
	if k, ok := s[id]; ok {
		return k, nil
	}
	return nil, errs.ErrNotFound
}

func testSecret(t *testing.T) SharedSecret {
	t.Helper()
	var s SharedSecret
	for i := range s {
		s[i] = byte(i * 7)
	}
	return s
}

func TestSealOpen_RoundTrip(t *testing.T) {
	secret := testSecret(t)
	for _, pt := range [][]byte{
		[]byte("ping"),
		{},
		bytes.Repeat([]byte{0xAB}, 64<<10),
		[]byte(`{"question":"BTC > 100k?","choice":"yes"}`),
	} {
		msg, err := Seal(pt, secret, DefaultContext)
		require.NoError(t, err)
		got, err := Open(msg, secret, DefaultContext)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(pt, got))
	}
}

func TestOpen_ContextBinding(t *testing.T) {
	secret := testSecret(t)
	msg, err := Seal([]byte("ping"), secret, DefaultContext)
	require.NoError(t, err)

	got, err := Open(msg, secret, "another-app")
	require.ErrorIs(t, err, ErrOpen)
	assert.Nil(t, got)
}

func TestSeal_FreshNonces(t *testing.T) {
	secret := testSecret(t)
	seenIV := map[string]bool{}
	seenCT := map[string]bool{}
	for i := 0; i < 2000; i++ {
		msg, err := Seal([]byte("same plaintext"), secret, DefaultContext)
		require.NoError(t, err)
		require.False(t, seenIV[msg.IV], "nonce reutilizado")
		require.False(t, seenCT[msg.Encrypted+msg.AuthTag], "ciphertext repetido")
		seenIV[msg.IV] = true
		seenCT[msg.Encrypted+msg.AuthTag] = true

		iv, err := hex.DecodeString(msg.IV)
		require.NoError(t, err)
		require.Len(t, iv, 12)
	}
}

func TestOpen_FailsClosed(t *testing.T) {
	secret := testSecret(t)
	msg, err := Seal([]byte("top secret"), secret, DefaultContext)
	require.NoError(t, err)

	flipHex := func(s string) string {
		b, _ := hex.DecodeString(s)
		b[0] ^= 0x01
		return hex.EncodeToString(b)
	}

	cases := map[string]*SecureMessage{
		"nil":           nil,
		"tampered ct":   {IV: msg.IV, Encrypted: flipHex(msg.Encrypted), AuthTag: msg.AuthTag},
		"tampered tag":  {IV: msg.IV, Encrypted: msg.Encrypted, AuthTag: flipHex(msg.AuthTag)},
		"tampered iv":   {IV: flipHex(msg.IV), Encrypted: msg.Encrypted, AuthTag: msg.AuthTag},
		"short iv":      {IV: msg.IV[:16], Encrypted: msg.Encrypted, AuthTag: msg.AuthTag},
		"16 byte iv":    {IV: msg.IV + "00000000", Encrypted: msg.Encrypted, AuthTag: msg.AuthTag},
		"bad hex":       {IV: "zz", Encrypted: msg.Encrypted, AuthTag: msg.AuthTag},
		"missing tag":   {IV: msg.IV, Encrypted: msg.Encrypted},
		"truncated tag": {IV: msg.IV, Encrypted: msg.Encrypted, AuthTag: msg.AuthTag[:10]},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			pt, err := Open(m, secret, DefaultContext)
			require.ErrorIs(t, err, ErrOpen)
			assert.Nil(t, pt)
			// mismo mensaje externo para todas las fallas
			assert.Equal(t, ErrOpen.Error(), err.Error())
		})
	}

	var wrong SharedSecret
	pt, err := Open(msg, wrong, DefaultContext)
	require.ErrorIs(t, err, ErrOpen)
	assert.Nil(t, pt)
}

func TestScenario_PairwisePing(t *testing.T) {
	for _, c := range []curve.Curve{curve.P256{}, curve.Secp256k1{}} {
		t.Run(c.Name(), func(t *testing.T) {
			pubU1, privU1, err := c.GenerateKeyPair()
			require.NoError(t, err)
			pubU2, privU2, err := c.GenerateKeyPair()
			require.NoError(t, err)
			_, privOther, err := c.GenerateKeyPair()
			require.NoError(t, err)

			ch := New(c, staticKeys{"U1": pubU1, "U2": pubU2})
			ctx := context.Background()

			// U1 cifra para U2 usando la pública de U2 resuelta por el vault
			s1, err := ch.SecretFor(ctx, privU1, "U2")
			require.NoError(t, err)
			msg, err := Seal([]byte("ping"), s1, DefaultContext)
			require.NoError(t, err)

			s2, err := ch.SecretFor(ctx, privU2, "U1")
			require.NoError(t, err)
			assert.Equal(t, s1, s2)
			got, err := Open(msg, s2, DefaultContext)
			require.NoError(t, err)
			assert.Equal(t, "ping", string(got))

			// U2 con otra privada no recupera nada
			s3, err := ch.DeriveSecret(privOther, pubU1)
			require.NoError(t, err)
			got, err = Open(msg, s3, DefaultContext)
			require.ErrorIs(t, err, ErrOpen)
			assert.Nil(t, got)
		})
	}
}

func TestDeriveSecret_NotRawECDH(t *testing.T) {
	c := curve.P256{}
	pubA, privA, err := c.GenerateKeyPair()
	require.NoError(t, err)
	_, privB, err := c.GenerateKeyPair()
	require.NoError(t, err)

	raw, err := c.ECDH(privB, pubA)
	require.NoError(t, err)
	s, err := New(c, nil).DeriveSecret(privB, pubA)
	require.NoError(t, err)
	assert.NotEqual(t, raw, s[:])
	_ = privA
}

func TestSecretFor_UnknownCounterpart(t *testing.T) {
	c := curve.P256{}
	_, priv, err := c.GenerateKeyPair()
	require.NoError(t, err)
	_, err = New(c, staticKeys{}).SecretFor(context.Background(), priv, "ghost")
	require.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestSecretFor_WithoutResolver(t *testing.T) {
	_, priv, err := curve.P256{}.GenerateKeyPair()
	require.NoError(t, err)
	_, err = New(curve.P256{}, nil).SecretFor(context.Background(), priv, "U2")
	require.ErrorIs(t, err, ErrNoResolver)
	assert.Equal(t, "KEY_RESOLVER_MISSING", errs.CodeOf(err))
}

func TestDeriveSecret_CurveMismatch(t *testing.T) {
	kPub, _, err := curve.Secp256k1{}.GenerateKeyPair()
	require.NoError(t, err)
	_, pPriv, err := curve.P256{}.GenerateKeyPair()
	require.NoError(t, err)

	_, err = New(curve.P256{}, nil).DeriveSecret(pPriv, kPub)
	require.ErrorIs(t, err, ErrDerive)
}
