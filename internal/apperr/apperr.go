// Package apperr holds the error taxonomy shared by the services and the
// HTTP/WS edges. Rule-specific rejections live next to their rules
// (bidding.RejectionError, ratelimit.DeniedError).
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrStale        = errors.New("auction changed, please retry")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBanned       = &BannedError{}
)

// BannedError short-circuits every bid/watch entry point of a banned user.
type BannedError struct {
	Reason string
}

func (e *BannedError) Error() string {
	if e.Reason == "" {
		return "account suspended"
	}
	return "account suspended: " + e.Reason
}

func (e *BannedError) Is(target error) bool {
	_, ok := target.(*BannedError)
	return ok
}

// StoreError wraps a failure of an external store (network, permission,
// unavailable). It is recoverable and never retried automatically.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store wraps err as a StoreError unless it is nil or already classified.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStale) || errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// InputError reports a malformed request field.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return e.Field + ": " + e.Message
}

func Input(field, msg string) error {
	return &InputError{Field: field, Message: msg}
}
