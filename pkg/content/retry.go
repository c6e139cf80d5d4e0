package content

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryStore wraps a Store with bounded exponential backoff for transient
// failures. Only idempotent operations are retried: Get, Put (same key),
// Delete and Walk. ErrNotFound and context cancellation are never retried.
type RetryStore struct {
	inner       Store
	maxRetries  uint64
	maxInterval time.Duration
}

// NewRetryStore wraps inner with up to maxRetries retries per operation.
func NewRetryStore(inner Store, maxRetries uint64) *RetryStore {
	return &RetryStore{
		inner:       inner,
		maxRetries:  maxRetries,
		maxInterval: 2 * time.Second,
	}
}

func (s *RetryStore) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = s.maxInterval
	return backoff.WithContext(backoff.WithMaxRetries(b, s.maxRetries), ctx)
}

// permanent marks errors that must not be retried.
func permanent(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	return err
}

func (s *RetryStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	var location string
	err := backoff.Retry(func() error {
		var err error
		location, err = s.inner.Put(ctx, key, data)
		return permanent(err)
	}, s.backoff(ctx))
	return location, err
}

func (s *RetryStore) Get(ctx context.Context, location string) ([]byte, error) {
	var data []byte
	err := backoff.Retry(func() error {
		var err error
		data, err = s.inner.Get(ctx, location)
		return permanent(err)
	}, s.backoff(ctx))
	return data, err
}

func (s *RetryStore) Delete(ctx context.Context, location string) error {
	return backoff.Retry(func() error {
		return permanent(s.inner.Delete(ctx, location))
	}, s.backoff(ctx))
}

func (s *RetryStore) Walk(ctx context.Context, fn func(key string, modified time.Time) error) error {
	return s.inner.Walk(ctx, fn)
}

func (s *RetryStore) URI(location string) string {
	return s.inner.URI(location)
}

var _ Store = (*RetryStore)(nil)
