// Package errors provides the shared error taxonomy for storage backends.
//
// Every failure a backend surfaces is classified into exactly one Kind,
// once, at the backend boundary. The original backend-native failure is
// kept as the cause and remains reachable through errors.Is / errors.As;
// the resource key involved is always attached.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a storage failure. The set is closed: backends map every
// native failure signal onto one of these values and nothing else.
type Kind string

const (
	// KindNotFound indicates the requested object does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindAccessDenied indicates the caller lacks permission for the operation.
	KindAccessDenied Kind = "ACCESS_DENIED"

	// KindAuthentication indicates the supplied credentials were rejected.
	KindAuthentication Kind = "AUTHENTICATION"

	// KindConfiguration indicates invalid or missing configuration. Raised
	// at construction or before any transport call, never mid-operation.
	KindConfiguration Kind = "CONFIGURATION"

	// KindUnavailable indicates the backend is temporarily unable to serve
	// the request (throttling, overload, maintenance).
	KindUnavailable Kind = "UNAVAILABLE"

	// KindTimeout indicates the operation exceeded its time limit.
	KindTimeout Kind = "TIMEOUT"

	// KindInternal indicates an unexpected backend failure that fits no
	// other kind.
	KindInternal Kind = "INTERNAL"
)

// Error is the single error type crossing the storage contract boundary.
// It carries the failed operation, the resource key involved, the taxonomy
// kind, and the originating failure as its cause.
type Error struct {
	// Op is the operation that failed ("get", "put", "copy", ...).
	Op string

	// Key is the object key involved, when one applies.
	Key string

	// Kind is the taxonomy classification.
	Kind Kind

	// Err is the underlying cause from the backend transport.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage.%s %s: %s: %v", e.Op, e.Key, e.Kind, e.Err)
	}
	return fmt.Sprintf("storage.%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause for error-chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error from an operation, resource key, kind, and cause.
func New(op, key string, kind Kind, err error) *Error {
	return &Error{Op: op, Key: key, Kind: kind, Err: err}
}

// Newf creates an Error whose cause is built from a format string. It is
// used where the failure originates in this library rather than a
// transport, such as configuration validation.
func Newf(op, key string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Key: key, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind carried by err, or KindInternal when err was not
// produced by a storage backend.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsNotFound reports whether err is a NotFound classification.
func IsNotFound(err error) bool { return Is(err, KindNotFound) }

// IsAccessDenied reports whether err is an AccessDenied classification.
func IsAccessDenied(err error) bool { return Is(err, KindAccessDenied) }

// IsAuthentication reports whether err is an Authentication classification.
func IsAuthentication(err error) bool { return Is(err, KindAuthentication) }

// IsConfiguration reports whether err is a Configuration classification.
func IsConfiguration(err error) bool { return Is(err, KindConfiguration) }

// IsUnavailable reports whether err is an Unavailable classification.
func IsUnavailable(err error) bool { return Is(err, KindUnavailable) }

// IsTimeout reports whether err is a Timeout classification.
func IsTimeout(err error) bool { return Is(err, KindTimeout) }
