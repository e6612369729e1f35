package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports that Op did not finish within Limit. It unwraps to
// context.DeadlineExceeded.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Op, e.Limit)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// IsTimeout reports whether err came from an operation exceeding its own
// WithTimeout limit, as opposed to the caller's context ending.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// WithTimeout runs op with a context limited to timeout and returns as soon
// as either op finishes or the limit passes; op is not waited for after
// that. A non-positive timeout runs op directly. If the parent context ends
// first, its error is returned wrapped with op's name.
func WithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(opCtx) }()

	select {
	case err := <-done:
		if err != nil && opCtx.Err() != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return &TimeoutError{Op: op, Limit: timeout}
		}
		return err
	case <-opCtx.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return &TimeoutError{Op: op, Limit: timeout}
	}
}
