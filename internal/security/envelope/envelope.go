// Package envelope verifica el initData firmado que la plataforma entrega al
// mini-app (claims key=value + tag "hash").
//
// Formato: el initData es un query string. Se quita "hash", se ordenan las
// claves ascendente por byte, se unen como "key=value" con "\n" y se calcula
// HMAC-SHA256 con la clave HMAC-SHA256("WebAppData", platformSecret). El tag es
// el resultado en hex. Cualquier desviación rompe la interoperabilidad con la
// plataforma emisora.
package envelope

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
)

const (
	// HashKey es la claim que lleva el tag de integridad.
	HashKey = "hash"
	// UserKey es la claim con el descriptor JSON de la identidad.
	UserKey = "user"
	// AuthDateKey es el token de frescura (unix seconds).
	AuthDateKey = "auth_date"

	secretLabel = "WebAppData"
)

var (
	ErrMissingHash   = errs.New(errs.KindUnauthenticated, "ENVELOPE_MISSING_HASH")
	ErrMalformed     = errs.New(errs.KindUnauthenticated, "ENVELOPE_MALFORMED")
	ErrBadSignature  = errs.New(errs.KindUnauthenticated, "ENVELOPE_BAD_SIGNATURE")
	ErrMissingUser   = errs.New(errs.KindUnauthenticated, "ENVELOPE_MISSING_USER")
	ErrExpired       = errs.New(errs.KindUnauthenticated, "ENVELOPE_EXPIRED")
	ErrNoSecret      = errors.New("envelope: platform secret vacío")
	errDuplicateKeys = errors.New("duplicate claim")
)

// Identity es la identidad autenticada extraída del envelope.
type Identity struct {
	ID        string
	Username  string
	FirstName string
	AuthDate  time.Time
}

// Verifier valida envelopes contra el platform secret.
// Es seguro para uso concurrente: no tiene estado mutable.
type Verifier struct {
	key []byte
}

// NewVerifier deriva la clave de verificación del platform secret.
func NewVerifier(platformSecret string) (*Verifier, error) {
	if platformSecret == "" {
		return nil, ErrNoSecret
	}
	return &Verifier{key: deriveKey(platformSecret)}, nil
}

func deriveKey(platformSecret string) []byte {
	m := hmac.New(sha256.New, []byte(secretLabel))
	m.Write([]byte(platformSecret))
	return m.Sum(nil)
}

// Verify valida el envelope crudo y devuelve la identidad declarada.
// No aplica ventana de frescura (ver CheckFreshness).
func (v *Verifier) Verify(raw string) (Identity, error) {
	claims, tag, err := Parse(raw)
	if err != nil {
		return Identity{}, err
	}
	expected := v.tag(claims)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(tag)) != 1 {
		return Identity{}, ErrBadSignature
	}
	return identityFrom(claims)
}

// Sign construye un envelope válido (query string) para las claims dadas.
// La plataforma es quien firma en producción; esto sirve para tests y tooling.
func (v *Verifier) Sign(claims map[string]string) string {
	q := url.Values{}
	for k, val := range claims {
		if k == HashKey {
			continue
		}
		q.Set(k, val)
	}
	filtered := make(map[string]string, len(q))
	for k := range q {
		filtered[k] = q.Get(k)
	}
	q.Set(HashKey, v.tag(filtered))
	return q.Encode()
}

func (v *Verifier) tag(claims map[string]string) string {
	m := hmac.New(sha256.New, v.key)
	m.Write([]byte(Canonicalize(claims)))
	return hex.EncodeToString(m.Sum(nil))
}

// Parse decodifica el query string y separa el tag. Rechaza claves repetidas.
func Parse(raw string) (claims map[string]string, tag string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", ErrMalformed
	}
	values, perr := url.ParseQuery(raw)
	if perr != nil {
		return nil, "", ErrMalformed.WithCause(perr)
	}
	claims = make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) != 1 {
			return nil, "", ErrMalformed.WithCause(errDuplicateKeys)
		}
		if k == HashKey {
			tag = vs[0]
			continue
		}
		claims[k] = vs[0]
	}
	if tag == "" {
		return nil, "", ErrMissingHash
	}
	return claims, tag, nil
}

// Canonicalize arma el data-check-string: claves ordenadas por byte, "k=v", "\n".
// claims no debe contener "hash"; si lo contiene se ignora.
func Canonicalize(claims map[string]string) string {
	keys := make([]string, 0, len(claims))
	for k := range claims {
		if k == HashKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(claims[k])
	}
	return b.String()
}

type userDescriptor struct {
	ID        json.RawMessage `json:"id"`
	Username  string          `json:"username"`
	FirstName string          `json:"first_name"`
}

func identityFrom(claims map[string]string) (Identity, error) {
	rawUser, ok := claims[UserKey]
	if !ok || rawUser == "" {
		return Identity{}, ErrMissingUser
	}
	var u userDescriptor
	if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
		return Identity{}, ErrMalformed.WithCause(err)
	}
	id, err := parseID(u.ID)
	if err != nil {
		return Identity{}, ErrMissingUser.WithCause(err)
	}

	ident := Identity{ID: id, Username: u.Username, FirstName: u.FirstName}
	if ad, ok := claims[AuthDateKey]; ok {
		if secs, err := strconv.ParseInt(ad, 10, 64); err == nil {
			ident.AuthDate = time.Unix(secs, 0).UTC()
		}
	}
	return ident, nil
}

// parseID acepta ids numéricos (forma habitual de la plataforma) o strings.
func parseID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("id vacío")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
			return "", errors.New("id no entero")
		}
		return n.String(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
		return "", errors.New("id inválido")
	}
	return strings.TrimSpace(s), nil
}

// CheckFreshness rechaza envelopes con auth_date más viejo que maxAge.
// maxAge <= 0 deshabilita el chequeo.
func CheckFreshness(id Identity, maxAge time.Duration, now time.Time) error {
	if maxAge <= 0 {
		return nil
	}
	if id.AuthDate.IsZero() || now.Sub(id.AuthDate) > maxAge {
		return ErrExpired
	}
	return nil
}
