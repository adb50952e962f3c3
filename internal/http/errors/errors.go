package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
)

// errorResponse es exactamente lo que ve el cliente: código y mensaje.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FromError convierte cualquier error en un AppError. Los errores del core se
// mapean por Kind conservando su Code estable; CryptoFailure siempre sale con
// el mismo código genérico.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	var coreErr *errs.Error
	if !stderrors.As(err, &coreErr) {
		return ErrInternalServerError.WithCause(err)
	}
	switch coreErr.Kind {
	case errs.KindUnauthenticated:
		return ErrUnauthorized.WithCause(err)
	case errs.KindRateLimited:
		return ErrRateLimitExceeded.WithCause(err)
	case errs.KindNotFound:
		return ErrNotFound.WithCode(coreErr.Code).WithCause(err)
	case errs.KindCryptoFailure:
		return ErrCrypto.WithCause(err)
	case errs.KindTransient:
		return ErrServiceUnavailable.WithCause(err)
	case errs.KindConflict:
		return ErrConflict.WithCode(coreErr.Code).WithCause(err)
	case errs.KindInvalid:
		return ErrBadRequest.WithCode(coreErr.Code).WithCause(err)
	case errs.KindForbidden:
		return ErrForbidden.WithCause(err)
	default:
		return ErrInternalServerError.WithCause(err)
	}
}

// WriteError escribe la respuesta {code, message}. La causa nunca se expone.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	if appErr.HTTPStatus == http.StatusTooManyRequests && appErr.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(appErr.RetryAfter))
	}
	if appErr.HTTPStatus == http.StatusUnauthorized {
		h.Set("WWW-Authenticate", `tma realm="cipherpool"`)
	}
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{Code: appErr.Code, Message: appErr.Message})
}
