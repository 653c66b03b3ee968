// Package rerr defines the typed error taxonomy shared by every pipeline
// component. Components return (or wrap) one of these sentinels so that
// callers can classify failures with errors.Is/errors.As without string
// matching, and so internal/httpapi can map them to HTTP status codes.
package rerr

import (
	"errors"
	"fmt"
)

// Kind classifies a taxonomy member for status-code mapping and logging.
type Kind string

const (
	KindConfigError         Kind = "config_error"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindContextOverflow     Kind = "context_overflow"
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindDownloadFailed      Kind = "download_failed"
	KindParseFailed         Kind = "parse_failed"
	KindPersistenceError    Kind = "persistence_error"
	KindCacheError          Kind = "cache_error"
)

// Error is the concrete type every taxonomy sentinel is built from. It
// wraps an optional cause and carries a Kind so errors.As can recover it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, rerr.ErrNotFound) etc. by comparing Kind.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

func newKind(k Kind) *Error { return &Error{Kind: k, Message: string(k)} }

// Sentinels for errors.Is comparisons: rerr.Wrap(err, rerr.ErrNotFound, "...").
var (
	ErrConfigError         = newKind(KindConfigError)
	ErrProviderUnavailable = newKind(KindProviderUnavailable)
	ErrContextOverflow     = newKind(KindContextOverflow)
	ErrInvalidInput        = newKind(KindInvalidInput)
	ErrNotFound            = newKind(KindNotFound)
	ErrDownloadFailed      = newKind(KindDownloadFailed)
	ErrParseFailed         = newKind(KindParseFailed)
	ErrPersistenceError    = newKind(KindPersistenceError)
	ErrCacheError          = newKind(KindCacheError)
)

// New builds a fresh error of the given kind with a message, no cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind carrying cause, classified by the
// sentinel's Kind field (pass one of the Err* vars, or any *Error).
func Wrap(cause error, sentinel *Error, format string, args ...any) *Error {
	return &Error{Kind: sentinel.Kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err, or "" if err is not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps a Kind to the status code the error-handling design names.
func HTTPStatus(k Kind) int {
	switch k {
	case KindInvalidInput:
		return 400
	case KindNotFound:
		return 404
	case KindContextOverflow, KindParseFailed, KindDownloadFailed, KindPersistenceError, KindConfigError:
		return 500
	case KindProviderUnavailable:
		return 503
	case KindCacheError:
		return 200 // cache failures degrade to a miss, never surfaced as an error
	default:
		return 500
	}
}
