package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
)

func TestFromError_KindMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{errs.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{errs.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{errs.New(errs.KindNotFound, "MARKET_NOT_FOUND"), http.StatusNotFound, "MARKET_NOT_FOUND"},
		{errs.New(errs.KindCryptoFailure, "DECRYPT_FAILED"), http.StatusBadRequest, "CRYPTO_FAILURE"},
		{errs.ErrTransient, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{errs.New(errs.KindConflict, "MARKET_CLOSED"), http.StatusConflict, "MARKET_CLOSED"},
		{errs.ErrInvalid, http.StatusBadRequest, "INVALID_INPUT"},
		{errs.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{ErrInvalidJSON, http.StatusBadRequest, "INVALID_JSON"},
	}
	for _, tc := range cases {
		got := FromError(fmt.Errorf("wrapped: %w", tc.err))
		assert.Equal(t, tc.status, got.HTTPStatus, tc.err.Error())
		assert.Equal(t, tc.code, got.Code, tc.err.Error())
	}
}

func TestWriteError_HidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errs.ErrTransient.WithCause(fmt.Errorf("dial tcp 10.0.0.3:5432: refused")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 2)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body["code"])
}

func TestWriteError_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrRateLimitExceeded.WithRetryAfter(42))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
}
