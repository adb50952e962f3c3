// Package errs define la taxonomía de errores del core.
//
// Cada error lleva un Kind (categoría, decide la propagación) y un Code estable
// y legible por máquina. Ningún detalle interno cruza las interfaces externas:
// la causa original queda en Err y sólo se usa para logs.
package errs

import (
	"errors"
	"fmt"
)

// Kind clasifica un error según cómo debe propagarse.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindRateLimited     Kind = "rate_limited"
	KindNotFound        Kind = "not_found"
	KindCryptoFailure   Kind = "crypto_failure"
	KindTransient       Kind = "transient"
	KindConflict        Kind = "conflict"
	KindInvalid         Kind = "invalid"
	KindForbidden       Kind = "forbidden"
	KindInternal        Kind = "internal"
)

// Error es el error estándar del core.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s [%s]", e.Kind, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara por Kind y Code, así errors.Is(err, errs.ErrRateLimited) funciona
// aunque el error haya sido envuelto con otra causa.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// New crea un error sin causa.
func New(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

// WithCause devuelve una COPIA con la causa dada.
func (e *Error) WithCause(err error) *Error {
	n := *e
	n.Err = err
	return &n
}

// KindOf devuelve el Kind del primer *Error de la cadena, o KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf devuelve el Code del primer *Error de la cadena, o "INTERNAL".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

// IsKind reporta si err pertenece a la categoría k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Errores base del core.
var (
	ErrUnauthenticated = New(KindUnauthenticated, "UNAUTHENTICATED")
	ErrRateLimited     = New(KindRateLimited, "RATE_LIMITED")
	ErrNotFound        = New(KindNotFound, "NOT_FOUND")
	ErrTransient       = New(KindTransient, "TRANSIENT")
	ErrInvalid         = New(KindInvalid, "INVALID_INPUT")
	ErrForbidden       = New(KindForbidden, "FORBIDDEN")
)
