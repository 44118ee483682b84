package types

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind is the stable category surfaced to users for a failed model call.
type Kind string

const (
	KindTimeout           Kind = "timeout"
	KindProviderError     Kind = "provider-error"
	KindAuthMissing       Kind = "auth-missing"
	KindMalformedResponse Kind = "malformed-response"
	KindInternal          Kind = "internal-error"
)

// Error represents a categorized provider failure.
type Error struct {
	Kind       Kind
	Detail     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return string(e.Kind)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Detail)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError creates a categorized provider error.
func NewError(kind Kind, detail string) error {
	return &Error{Kind: kind, Detail: detail}
}

// WrapError categorizes err while keeping it reachable through errors.Is/As.
func WrapError(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}

// StatusError builds a categorized error for a non-2xx provider response.
//
// A rejected credential is a provider error; auth-missing is reserved for
// keys that were never configured.
func StatusError(statusCode int, detail string) error {
	return &Error{Kind: KindProviderError, Detail: detail, StatusCode: statusCode}
}

// KindOf returns the stable category for an error.
//
// Uncategorized errors are provider errors unless they are deadline expiries
// or cancellations.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindProviderError
}
