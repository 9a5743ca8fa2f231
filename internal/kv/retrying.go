package kv

import (
	"context"
	"errors"

	"github.com/Kaelzs/ThreeW/internal/retry"
	"github.com/Kaelzs/ThreeW/pkg/models"
)

// Retrying retries failed reads and writes of the wrapped backend according
// to a retry policy. Invalid keys and cancelled contexts are not retried.
type Retrying struct {
	inner  Backend
	policy *models.RetryPolicy
}

// NewRetrying wraps b. A nil policy means retry.DefaultRetryPolicy.
func NewRetrying(b Backend, policy *models.RetryPolicy) *Retrying {
	return &Retrying{inner: b, policy: policy}
}

// Unwrap returns the wrapped backend.
func (r *Retrying) Unwrap() Backend { return r.inner }

// Get implements Store.
func (r *Retrying) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		ok    bool
	)
	err := retry.Do(ctx, "kv.get", r.policy, func(ctx context.Context) error {
		var err error
		value, ok, err = r.inner.Get(ctx, key)
		return classify(ctx, err)
	})
	return value, ok, err
}

// Set implements Store.
func (r *Retrying) Set(ctx context.Context, key string, value []byte) error {
	return retry.Do(ctx, "kv.set", r.policy, func(ctx context.Context) error {
		return classify(ctx, r.inner.Set(ctx, key, value))
	})
}

// Close implements io.Closer.
func (r *Retrying) Close() error { return r.inner.Close() }

func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidKey) || ctx.Err() != nil {
		return retry.Permanent(err)
	}
	return err
}
