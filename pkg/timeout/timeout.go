package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DeadlineError reports which operation missed which deadline.
type DeadlineError struct {
	Label    string
	Deadline time.Duration
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("%s did not complete within %s", e.Label, e.Deadline)
}

// IsDeadline reports whether err is a guard deadline failure.
func IsDeadline(err error) bool {
	var de *DeadlineError
	return errors.As(err, &de)
}

type result[T any] struct {
	value T
	err   error
}

// Guard races op against the deadline. When the timer fires first the
// caller's wait is abandoned and a DeadlineError is returned; the underlying
// operation keeps running and is not cancelled. The parent ctx still applies
// to op, so callers retain whatever cancellation semantics they already had.
func Guard[T any](ctx context.Context, deadline time.Duration, label string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if deadline <= 0 {
		return op(ctx)
	}

	done := make(chan result[T], 1)
	go func() {
		value, err := op(ctx)
		done <- result[T]{value: value, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, &DeadlineError{Label: label, Deadline: deadline}
	}
}

// Do is the value-less variant of Guard.
func Do(ctx context.Context, deadline time.Duration, label string, op func(context.Context) error) error {
	_, err := Guard(ctx, deadline, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
