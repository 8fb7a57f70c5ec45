// Package apperr defines the error kinds shared by the store services.
package apperr

import "errors"

// Error kinds. Package-level sentinels wrap one of these so callers can
// branch on the kind without knowing every concrete error.
var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrExpired               = errors.New("expired")
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalid               = errors.New("invalid argument")
)

// Error is a sentinel error bound to a kind.
type Error struct {
	kind error
	msg  string
}

// New returns a sentinel error of the given kind.
func New(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.msg
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.kind
}

// Kind returns the first known kind found in err's chain, or nil.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{
		ErrNotFound,
		ErrConflict,
		ErrInsufficientFunds,
		ErrInsufficientInventory,
		ErrExpired,
		ErrUpstreamUnavailable,
		ErrForbidden,
		ErrInvalid,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
