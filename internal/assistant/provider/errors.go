package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrMalformed marks a response that arrived but could not be used.
	ErrMalformed = errors.New("malformed provider response")
	// ErrUnavailable marks a provider that is not configured.
	ErrUnavailable = errors.New("provider unavailable")
)

type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindTimeout     Kind = "timeout"
	KindStatus      Kind = "status"
	KindMalformed   Kind = "malformed"
	KindTransport   Kind = "transport"
	KindPanic       Kind = "panic"
)

// Error is the failure half of a Result. It never leaves the adapters; callers
// log it and use their fallback.
type Error struct {
	Provider string
	Op       string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Err == nil {
		return fmt.Sprintf("provider %s %s: %s", e.Provider, e.Op, e.Kind)
	}
	return fmt.Sprintf("provider %s %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "upstream http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("upstream http error: status=%d body=%s", e.StatusCode, e.Body)
}

// Malformed wraps err (or a description) with ErrMalformed.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Classify maps an error returned by a provider onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var he *HTTPError
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	var ne net.Error
	switch {
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &he):
		return KindStatus
	case errors.Is(err, ErrMalformed), errors.As(err, &syn), errors.As(err, &typ):
		return KindMalformed
	case errors.As(err, &ne) && ne.Timeout():
		return KindTimeout
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.DeadlineExceeded:
			return KindTimeout
		case codes.Unavailable, codes.Unauthenticated, codes.PermissionDenied, codes.ResourceExhausted:
			return KindUnavailable
		case codes.InvalidArgument, codes.FailedPrecondition, codes.NotFound:
			return KindStatus
		}
	}
	return KindTransport
}
