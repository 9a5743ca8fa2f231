// Package retry re-runs failing operations with exponential backoff. It is
// used for storage writes, where a transient backend error (a busy sqlite
// file, a dropped redis connection) should not lose the user's edit.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/Kaelzs/ThreeW/internal/logger"
	"github.com/Kaelzs/ThreeW/pkg/models"
)

// Default retry constants
const (
	DefaultMaxRetries    = 3
	DefaultDelaySeconds  = 0.2
	DefaultBackoffFactor = 2.0
	// MaxDelay caps a single wait between attempts.
	MaxDelay = 5 * time.Second
)

// DefaultRetryPolicy is used for every field a configured policy leaves unset.
var DefaultRetryPolicy = models.RetryPolicy{
	MaxRetries:    intPtr(DefaultMaxRetries),
	Delay:         float64Ptr(DefaultDelaySeconds),
	BackoffFactor: float64Ptr(DefaultBackoffFactor),
}

// Operation is a function that performs an action and returns an error if it fails.
type Operation func(ctx context.Context) error

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error
// unchanged on the first attempt that produces it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do executes op, retrying according to policy while it fails. Unset policy
// fields fall back to DefaultRetryPolicy. The error of the last attempt is
// returned; a cancelled ctx ends the loop with ctx.Err().
func Do(ctx context.Context, operationName string, policy *models.RetryPolicy, op Operation) error {
	if err := ctx.Err(); err != nil {
		logger.L().Warn("Operation cancelled before first attempt", "operation", operationName, "error", err)
		return err
	}

	effective := MergePolicies(policy, &DefaultRetryPolicy)
	l := logger.L().With("operation", operationName)

	maxRetries := *effective.MaxRetries
	currentDelay := time.Duration(*effective.Delay * float64(time.Second))
	backoffFactor := *effective.BackoffFactor

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 0 {
				l.Info("Operation succeeded after retry", "attempt", attempt+1)
			}
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			l.Warn("Operation failed permanently", "attempt", attempt+1, "error", perm.err)
			return perm.err
		}

		l.Warn("Operation failed", "attempt", attempt+1, "max_attempts", maxRetries+1, "error", lastErr)
		if attempt == maxRetries {
			l.Error("Operation failed after exhausting all retries", "error", lastErr)
			break
		}

		timer := time.NewTimer(currentDelay)
		select {
		case <-timer.C:
			currentDelay = time.Duration(float64(currentDelay) * backoffFactor)
			if currentDelay > MaxDelay {
				currentDelay = MaxDelay
			}
		case <-ctx.Done():
			timer.Stop()
			l.Warn("Retry cancelled", "error", ctx.Err())
			return ctx.Err()
		}
	}

	return lastErr
}

// MergePolicies combines a specific policy with a default policy. Specific
// values override defaults; fields unset in both fall back to the package
// constants. The result never has nil fields.
func MergePolicies(specific, defaultP *models.RetryPolicy) *models.RetryPolicy {
	if defaultP == nil {
		defaultP = &DefaultRetryPolicy
	}
	if specific == nil {
		specific = &models.RetryPolicy{}
	}

	return &models.RetryPolicy{
		MaxRetries:    pick(specific.MaxRetries, defaultP.MaxRetries, DefaultMaxRetries),
		Delay:         pick(specific.Delay, defaultP.Delay, DefaultDelaySeconds),
		BackoffFactor: pick(specific.BackoffFactor, defaultP.BackoffFactor, DefaultBackoffFactor),
	}
}

// pick returns a fresh pointer so callers can't reach into either input.
func pick[T any](specific, fallback *T, constant T) *T {
	v := constant
	switch {
	case specific != nil:
		v = *specific
	case fallback != nil:
		v = *fallback
	}
	return &v
}

func intPtr(i int) *int             { return &i }
func float64Ptr(f float64) *float64 { return &f }
