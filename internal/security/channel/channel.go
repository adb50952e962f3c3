// Package channel deriva un secreto compartido entre dos identidades (ECDH +
// HKDF) y sella/abre payloads con AES-256-GCM.
//
// El canal no conoce la estructura del payload: son bytes opacos.
package channel

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/security/curve"
)

const (
	// DefaultContext es la associated data por defecto.
	DefaultContext = "prediction-market"

	nonceSize = 12
	tagSize   = 16
	keySize   = 32

	kdfInfo = "cipherpool/ecdh-aes256gcm/v1"
)

// ErrOpen es el único error visible al abrir: no distingue clave incorrecta de
// ciphertext manipulado ni de campos mal formados.
var ErrOpen = errs.New(errs.KindCryptoFailure, "DECRYPT_FAILED")

// ErrDerive se devuelve cuando las claves no pertenecen a la curva configurada.
var ErrDerive = errs.New(errs.KindCryptoFailure, "KEY_AGREEMENT_FAILED")

// ErrNoResolver: SecretFor sobre un canal creado sin resolver de claves.
var ErrNoResolver = errs.New(errs.KindInternal, "KEY_RESOLVER_MISSING")

// SharedSecret es la clave simétrica derivada (nunca la salida cruda del ECDH).
type SharedSecret [keySize]byte

// SecureMessage viaja como tres campos hex independientes.
type SecureMessage struct {
	IV        string `json:"iv"`
	Encrypted string `json:"encrypted"`
	AuthTag   string `json:"authTag"`
}

// PublicKeyResolver obtiene la clave pública de una identidad (KeyVault).
type PublicKeyResolver interface {
	PublicKey(ctx context.Context, identity string) ([]byte, error)
}

// Channel ata la curva configurada con la resolución de claves.
type Channel struct {
	curve curve.Curve
	keys  PublicKeyResolver
}

// New crea el canal. keys puede ser nil si sólo se usa DeriveSecret.
func New(c curve.Curve, keys PublicKeyResolver) *Channel {
	return &Channel{curve: c, keys: keys}
}

// DeriveSecret hace ECDH(myPrivate, theirPublic) y estira el resultado con
// HKDF-SHA256. Ambas partes obtienen el mismo secreto.
func (c *Channel) DeriveSecret(myPrivate, theirPublic []byte) (SharedSecret, error) {
	var out SharedSecret
	raw, err := c.curve.ECDH(myPrivate, theirPublic)
	if err != nil {
		return out, ErrDerive.WithCause(err)
	}
	r := hkdf.New(sha256.New, raw, nil, []byte(kdfInfo))
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return out, ErrDerive.WithCause(err)
	}
	return out, nil
}

// SecretFor resuelve la pública de counterpart vía el vault y deriva el secreto.
func (c *Channel) SecretFor(ctx context.Context, myPrivate []byte, counterpart string) (SharedSecret, error) {
	if c.keys == nil {
		return SharedSecret{}, ErrNoResolver
	}
	pub, err := c.keys.PublicKey(ctx, counterpart)
	if err != nil {
		return SharedSecret{}, err
	}
	return c.DeriveSecret(myPrivate, pub)
}

// Seal cifra plaintext con un nonce aleatorio nuevo y context como AAD.
func Seal(plaintext []byte, secret SharedSecret, context string) (*SecureMessage, error) {
	aead, err := newAEAD(secret)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("nonce random: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, []byte(context))
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	return &SecureMessage{
		IV:        hex.EncodeToString(nonce),
		Encrypted: hex.EncodeToString(ct),
		AuthTag:   hex.EncodeToString(tag),
	}, nil
}

// Open verifica el tag antes de liberar cualquier byte. Ante cualquier falla
// devuelve (nil, ErrOpen).
func Open(msg *SecureMessage, secret SharedSecret, context string) ([]byte, error) {
	if msg == nil {
		return nil, ErrOpen
	}
	nonce, err := hex.DecodeString(msg.IV)
	if err != nil || len(nonce) != nonceSize {
		return nil, ErrOpen
	}
	ct, err := hex.DecodeString(msg.Encrypted)
	if err != nil {
		return nil, ErrOpen
	}
	tag, err := hex.DecodeString(msg.AuthTag)
	if err != nil || len(tag) != tagSize {
		return nil, ErrOpen
	}
	aead, err := newAEAD(secret)
	if err != nil {
		return nil, ErrOpen
	}
	buf := make([]byte, 0, len(ct)+tagSize)
	buf = append(buf, ct...)
	buf = append(buf, tag...)
	pt, err := aead.Open(nil, nonce, buf, []byte(context))
	if err != nil {
		return nil, ErrOpen
	}
	return pt, nil
}

func newAEAD(secret SharedSecret) (cipher.AEAD, error) {
	block, err := aes.NewCipher(secret[:])
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	return cipher.NewGCM(block)
}
