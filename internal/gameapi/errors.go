package gameapi

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed backend call.
type Kind string

const (
	KindRateLimited       Kind = "rate_limited"
	KindTransport         Kind = "transport"
	KindUnexpectedStatus  Kind = "unexpected_status"
	KindMalformedResponse Kind = "malformed_response"
)

// Error is the tagged outcome of a failed call. Callers branch on Kind
// instead of matching status codes or unwrapping transport errors.
type Error struct {
	Kind       Kind
	Op         string
	Status     int
	Body       string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Op, e.RetryAfter)
	case KindTransport:
		return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
	case KindUnexpectedStatus:
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
	case KindMalformedResponse:
		return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the outcome kind from an error, or "" for nil / foreign
// errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}
