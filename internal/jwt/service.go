package jwt

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Roles de los tokens de servicio.
const (
	RoleBot   = "bot"
	RoleAdmin = "admin"
)

const issuer = "cipherpool"

var (
	ErrInvalidToken = errors.New("invalid_jwt")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrNoSecret     = errors.New("jwt: secret vacío")
)

// ServiceClaims son los claims de un token de servicio (bot / admin).
type ServiceClaims struct {
	Role string `json:"role"`
	jwtv5.RegisteredClaims
}

// ServiceIssuer firma y valida tokens HS256 para los callers de servicio.
type ServiceIssuer struct {
	secret []byte
	TTL    time.Duration
	now    func() time.Time
}

func NewServiceIssuer(secret string, ttl time.Duration) (*ServiceIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	return &ServiceIssuer{secret: []byte(secret), TTL: ttl, now: time.Now}, nil
}

// Issue emite un token para subject con el rol dado. TTL <= 0 = sin exp.
func (i *ServiceIssuer) Issue(subject, role string) (string, time.Time, error) {
	if role != RoleBot && role != RoleAdmin {
		return "", time.Time{}, ErrInvalidRole
	}
	now := i.now().UTC()
	claims := ServiceClaims{
		Role: role,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
		},
	}
	var exp time.Time
	if i.TTL > 0 {
		exp = now.Add(i.TTL)
		claims.ExpiresAt = jwtv5.NewNumericDate(exp)
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse valida firma, issuer y exp/nbf (30s de tolerancia) y devuelve los claims.
func (i *ServiceIssuer) Parse(token string) (*ServiceClaims, error) {
	var claims ServiceClaims
	tok, err := jwtv5.ParseWithClaims(token, &claims,
		func(*jwtv5.Token) (any, error) { return i.secret, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(issuer),
		jwtv5.WithLeeway(30*time.Second),
		jwtv5.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleBot && claims.Role != RoleAdmin {
		return nil, ErrInvalidRole
	}
	return &claims, nil
}
