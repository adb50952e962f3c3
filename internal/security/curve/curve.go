// Package curve define la única curva elíptica que comparten KeyVault y
// SecureChannel. Ningún otro paquete elige curva por su cuenta: ambos reciben
// la misma instancia construida desde config (crypto.curve).
package curve

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var (
	ErrUnknownCurve = errors.New("curve: curva desconocida")
	ErrInvalidKey   = errors.New("curve: clave inválida para la curva")
)

// Curve genera pares y calcula ECDH sobre una curva fija.
//
// Codificación: PublicKey es el punto sin comprimir (0x04||X||Y). El formato
// de la privada depende de la curva (ver cada implementación).
type Curve interface {
	Name() string
	GenerateKeyPair() (public, private []byte, err error)
	// ECDH devuelve la salida cruda (coordenada X compartida). Nunca usarla
	// directamente como clave de cifrado.
	ECDH(private, peerPublic []byte) ([]byte, error)
	// PublicFromPrivate recalcula la pública (valida que ambas sean del mismo par).
	PublicFromPrivate(private []byte) ([]byte, error)
}

// ByName resuelve la curva configurada.
func ByName(name string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "p256", "p-256", "prime256v1":
		return P256{}, nil
	case "secp256k1", "k256":
		return Secp256k1{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurve, name)
	}
}

// =================================================================================
// P-256 (compatible con WebCrypto: pública 'raw', privada 'pkcs8')
// =================================================================================

// P256 usa crypto/ecdh. La privada se codifica PKCS#8 DER.
type P256 struct{}

func (P256) Name() string { return "p256" }

func (P256) GenerateKeyPair() ([]byte, []byte, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	return priv.PublicKey().Bytes(), der, nil
}

func (c P256) ECDH(private, peerPublic []byte) ([]byte, error) {
	priv, err := c.parsePrivate(private)
	if err != nil {
		return nil, err
	}
	pub, err := ecdh.P256().NewPublicKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return priv.ECDH(pub)
}

func (c P256) PublicFromPrivate(private []byte) ([]byte, error) {
	priv, err := c.parsePrivate(private)
	if err != nil {
		return nil, err
	}
	return priv.PublicKey().Bytes(), nil
}

func (P256) parsePrivate(der []byte) (*ecdh.PrivateKey, error) {
	k, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	switch key := k.(type) {
	case *ecdsa.PrivateKey:
		priv, err := key.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		if priv.Curve() != ecdh.P256() {
			return nil, ErrInvalidKey
		}
		return priv, nil
	case *ecdh.PrivateKey:
		if key.Curve() != ecdh.P256() {
			return nil, ErrInvalidKey
		}
		return key, nil
	default:
		return nil, ErrInvalidKey
	}
}

// =================================================================================
// secp256k1 (privada = escalar crudo de 32 bytes)
// =================================================================================

// Secp256k1 usa dcrd/secp256k1; crypto/ecdh no soporta esta curva.
type Secp256k1 struct{}

func (Secp256k1) Name() string { return "secp256k1" }

func (Secp256k1) GenerateKeyPair() ([]byte, []byte, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, err
	}
	return priv.PubKey().SerializeUncompressed(), priv.Serialize(), nil
}

func (c Secp256k1) ECDH(private, peerPublic []byte) ([]byte, error) {
	priv, err := c.parsePrivate(private)
	if err != nil {
		return nil, err
	}
	pub, err := secp256k1.ParsePubKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return secp256k1.GenerateSharedSecret(priv, pub), nil
}

func (c Secp256k1) PublicFromPrivate(private []byte) ([]byte, error) {
	priv, err := c.parsePrivate(private)
	if err != nil {
		return nil, err
	}
	return priv.PubKey().SerializeUncompressed(), nil
}

func (Secp256k1) parsePrivate(raw []byte) (*secp256k1.PrivateKey, error) {
	if len(raw) != secp256k1.PrivKeyBytesLen {
		return nil, ErrInvalidKey
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, ErrInvalidKey
	}
	return priv, nil
}
