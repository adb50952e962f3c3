package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	c, err := ByName("P256")
	require.NoError(t, err)
	assert.Equal(t, "p256", c.Name())

	c, err = ByName("secp256k1")
	require.NoError(t, err)
	assert.Equal(t, "secp256k1", c.Name())

	_, err = ByName("ed25519")
	require.ErrorIs(t, err, ErrUnknownCurve)
}

func TestCurves_AgreeOnSharedSecret(t *testing.T) {
	for _, c := range []Curve{P256{}, Secp256k1{}} {
		t.Run(c.Name(), func(t *testing.T) {
			pubA, privA, err := c.GenerateKeyPair()
			require.NoError(t, err)
			pubB, privB, err := c.GenerateKeyPair()
			require.NoError(t, err)

			assert.Len(t, pubA, 65)
			assert.Equal(t, byte(0x04), pubA[0])

			ab, err := c.ECDH(privA, pubB)
			require.NoError(t, err)
			ba, err := c.ECDH(privB, pubA)
			require.NoError(t, err)
			assert.Equal(t, ab, ba)

			derived, err := c.PublicFromPrivate(privA)
			require.NoError(t, err)
			assert.Equal(t, pubA, derived)
		})
	}
}

func TestCurves_RejectForeignKeyMaterial(t *testing.T) {
	pPub, pPriv, err := P256{}.GenerateKeyPair()
	require.NoError(t, err)
	kPub, kPriv, err := Secp256k1{}.GenerateKeyPair()
	require.NoError(t, err)

	// una clave de otra curva nunca produce un secreto "compatible"
	_, err = P256{}.ECDH(pPriv, kPub)
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = P256{}.ECDH(kPriv, pPub)
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = Secp256k1{}.ECDH(pPriv, kPub)
	require.ErrorIs(t, err, ErrInvalidKey)
}
