// Package secretbox cifra material sensible en reposo (privadas del vault) con
// AES-256-GCM y una clave maestra inyectada desde config.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nonceSizeGCM      = 12  // AES-GCM nonce size recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

var ErrFormat = errors.New("secretbox: formato inválido, esperado base64(nonce)|base64(ciphertext)")

// Box guarda la clave maestra ya decodificada. Es seguro para uso concurrente.
type Box struct {
	aead cipher.AEAD
}

// New acepta la clave en base64 (std o raw), hex de 64 chars o 32 bytes crudos.
func New(key string) (*Box, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: aead}, nil
}

// ParseKey decodifica la clave maestra.
func ParseKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("clave maestra vacía; genere una con: poolctl gen-master-key")
	}
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if len(key) == 64 {
		if h, err := hex.DecodeString(key); err == nil {
			return h, nil
		}
	}
	if len(key) == requiredKeyLength {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("clave inválida: %d bytes (requiere %d)", len(key), requiredKeyLength)
}

// GenerateKey devuelve una clave nueva en base64.
func GenerateKey() (string, error) {
	k := make([]byte, requiredKeyLength)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k), nil
}

// Seal cifra plain atando el resultado a aad (p.ej. la identidad dueña).
func (b *Box) Seal(plain, aad []byte) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := b.aead.Seal(nil, nonce, plain, aad)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open es la inversa de Seal; un aad distinto falla igual que un ciphertext alterado.
func (b *Box) Open(sealed string, aad []byte) ([]byte, error) {
	parts := strings.Split(sealed, sep)
	if len(parts) != 2 {
		return nil, ErrFormat
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return nil, fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))
	}
	pt, err := b.aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return pt, nil
}
