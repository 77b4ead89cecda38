package backoff

import (
	"context"
	"errors"
	"time"
)

// ErrAttemptsExhausted is returned when every retry attempt has failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// PermanentError wraps an error that must not be retried. Retry stops
// immediately and returns the wrapped error as LastErr.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Result carries the outcome of a retried operation.
type Result[T any] struct {
	// Value is the successful result, if any.
	Value T
	// Attempts is the number of attempts made (1-indexed).
	Attempts int
	// LastErr is the most recent error encountered.
	LastErr error
}

// Retry runs fn until it succeeds, the attempt budget is spent, or the
// context is cancelled. The sleep between attempts follows the policy
// returned by policyFor, which lets callers pick a longer schedule for
// rate-limit errors than for ordinary transient failures.
//
// fn receives the 1-indexed attempt number. A nil policyFor uses Default
// for every error.
func Retry[T any](
	ctx context.Context,
	maxAttempts int,
	policyFor func(err error) Policy,
	fn func(attempt int) (T, error),
) (Result[T], error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var res Result[T]
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt

		if err := ctx.Err(); err != nil {
			return res, err
		}

		value, err := fn(attempt)
		if err == nil {
			res.Value = value
			return res, nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			res.LastErr = perm.Err
			return res, ErrAttemptsExhausted
		}
		res.LastErr = err

		if attempt == maxAttempts {
			break
		}

		policy := Default()
		if policyFor != nil {
			policy = policyFor(err)
		}
		if err := Sleep(ctx, policy.Delay(attempt)); err != nil {
			return res, err
		}
	}

	return res, ErrAttemptsExhausted
}

// Sleep waits for d, returning early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
