package jwt

import (
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceIssuer_RoundTrip(t *testing.T) {
	iss, err := NewServiceIssuer("s3cret", time.Hour)
	require.NoError(t, err)

	tok, exp, err := iss.Issue("telegram-bot", RoleBot)
	require.NoError(t, err)
	assert.False(t, exp.IsZero())

	claims, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, RoleBot, claims.Role)
	assert.Equal(t, "telegram-bot", claims.Subject)
}

func TestServiceIssuer_Rejections(t *testing.T) {
	iss, err := NewServiceIssuer("s3cret", time.Hour)
	require.NoError(t, err)
	other, err := NewServiceIssuer("other", time.Hour)
	require.NoError(t, err)

	tok, _, err := other.Issue("x", RoleAdmin)
	require.NoError(t, err)
	_, err = iss.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = iss.Issue("x", "root")
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = iss.Parse("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	// "none" nunca pasa
	none := jwtv5.NewWithClaims(jwtv5.SigningMethodNone, ServiceClaims{Role: RoleAdmin})
	raw, err := none.SignedString(jwtv5.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Parse(raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewServiceIssuer(" ", time.Hour)
	require.ErrorIs(t, err, ErrNoSecret)
}

func TestServiceIssuer_Expiry(t *testing.T) {
	iss, err := NewServiceIssuer("s3cret", time.Minute)
	require.NoError(t, err)
	base := time.Now()
	iss.now = func() time.Time { return base }
	tok, _, err := iss.Issue("bot", RoleBot)
	require.NoError(t, err)

	iss.now = func() time.Time { return base.Add(5 * time.Minute) }
	_, err = iss.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}
