package errors

import (
	"fmt"
	"net/http"
)

// AppError es el error ya traducido a HTTP. Sólo Code y Message llegan al cliente.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	RetryAfter int    `json:"-"` // segundos, para 429
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// New crea un AppError base.
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// Los With* devuelven copias; las variables del catálogo nunca se mutan.

func (e *AppError) WithCause(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

func (e *AppError) WithCode(code string) *AppError {
	c := *e
	c.Code = code
	return &c
}

func (e *AppError) WithRetryAfter(seconds int) *AppError {
	c := *e
	c.RetryAfter = seconds
	return &c
}

// Catálogo. Los mensajes son genéricos a propósito: el detalle va en Code.
var (
	ErrBadRequest    = New(http.StatusBadRequest, "BAD_REQUEST", "Solicitud inválida.")
	ErrInvalidJSON   = New(http.StatusBadRequest, "INVALID_JSON", "El cuerpo no es un JSON válido.")
	ErrMissingFields = New(http.StatusBadRequest, "MISSING_FIELDS", "Faltan campos requeridos.")
	ErrCrypto        = New(http.StatusBadRequest, "CRYPTO_FAILURE", "No se pudo procesar el material criptográfico.")
	ErrBodyTooLarge  = New(http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "El cuerpo excede el tamaño permitido.")

	ErrUnauthorized = New(http.StatusUnauthorized, "UNAUTHENTICATED", "Envelope o token ausente o inválido.")
	ErrForbidden    = New(http.StatusForbidden, "FORBIDDEN", "Operación no permitida para este rol.")

	ErrNotFound         = New(http.StatusNotFound, "NOT_FOUND", "Recurso inexistente.")
	ErrRouteNotFound    = New(http.StatusNotFound, "ROUTE_NOT_FOUND", "Ruta inexistente.")
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Método no permitido.")
	ErrConflict         = New(http.StatusConflict, "CONFLICT", "Conflicto con el estado actual.")

	ErrRateLimitExceeded   = New(http.StatusTooManyRequests, "RATE_LIMITED", "Límite de acciones excedido.")
	ErrInternalServerError = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Error interno.")
	ErrServiceUnavailable  = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Servicio no disponible temporalmente.")
)
