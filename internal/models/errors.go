package models

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies remote failures. Every kind is recoverable.
type FetchErrorKind string

const (
	FetchErrorNetwork     FetchErrorKind = "network_failure"
	FetchErrorDecode      FetchErrorKind = "decode_failure"
	FetchErrorNotFound    FetchErrorKind = "not_found"
	FetchErrorRateLimited FetchErrorKind = "rate_limited"
)

// Sentinels usable with errors.Is against any *FetchError of the same kind.
var (
	ErrNetworkFailure = &FetchError{Kind: FetchErrorNetwork}
	ErrDecodeFailure  = &FetchError{Kind: FetchErrorDecode}
	ErrNotFound       = &FetchError{Kind: FetchErrorNotFound}
	ErrRateLimited    = &FetchError{Kind: FetchErrorRateLimited}
)

// FetchError is returned by platform bindings.
type FetchError struct {
	Kind FetchErrorKind
	Op   string
	Err  error
}

// NewFetchError wraps err with a kind and operation name.
func NewFetchError(kind FetchErrorKind, op string, err error) *FetchError {
	return &FetchError{Kind: kind, Op: op, Err: err}
}

func (e *FetchError) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can write errors.Is(err, models.ErrRateLimited).
func (e *FetchError) Is(target error) bool {
	var other *FetchError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// FetchErrorKindOf returns the kind of err, defaulting to network failure for
// errors that did not come from a platform binding.
func FetchErrorKindOf(err error) FetchErrorKind {
	if err == nil {
		return ""
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}
	return FetchErrorNetwork
}
