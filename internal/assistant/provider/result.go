package provider

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
)

// Result is what every provider call produces internally. Exactly one of
// Value (when Err is nil) or Err is meaningful.
type Result[T any] struct {
	Value T
	Err   *Error
}

func (r Result[T]) OK() bool { return r.Err == nil }

// Or returns Value on success and fallback otherwise.
func (r Result[T]) Or(fallback T) T {
	if r.Err != nil {
		return fallback
	}
	return r.Value
}

// Unavailable is the result for a provider that was never configured.
func Unavailable[T any](name, op string) Result[T] {
	return Result[T]{Err: &Error{Provider: name, Op: op, Kind: KindUnavailable, Err: ErrUnavailable}}
}

type outcome[T any] struct {
	value T
	err   error
	panic any
}

// Call runs fn under timeout (if > 0), recovers panics and classifies any
// error. It returns as soon as ctx is done even if fn is still running; a
// late fn result is discarded. It never panics and never returns a bare error.
func Call[T any](ctx context.Context, name, op string, timeout time.Duration, fn func(ctx context.Context) (T, error)) Result[T] {
	if fn == nil {
		return Unavailable[T](name, op)
	}
	ctx, span := otel.Tracer("restoration-assistant/provider").Start(ctx, "provider."+op)
	span.SetAttributes(attribute.String("provider.name", name), attribute.String("provider.op", op))
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{panic: r}
			}
		}()
		v, err := fn(ctx)
		done <- outcome[T]{value: v, err: err}
	}()

	var out outcome[T]
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome[T]{err: ctx.Err()}
	}

	if out.panic != nil {
		span.SetStatus(otelcodes.Error, "panic")
		span.SetAttributes(attribute.String("provider.error_kind", string(KindPanic)))
		return Result[T]{Err: &Error{Provider: name, Op: op, Kind: KindPanic, Err: fmt.Errorf("panic: %v", out.panic)}}
	}
	err := out.err
	if err == nil && ctx.Err() != nil {
		// Some clients swallow cancellation and return a zero value.
		err = ctx.Err()
	}
	if err != nil {
		kind := Classify(err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(kind))
		span.SetAttributes(attribute.String("provider.error_kind", string(kind)))
		return Result[T]{Err: &Error{Provider: name, Op: op, Kind: kind, Err: err}}
	}
	return Result[T]{Value: out.value}
}
