package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the automatic retries of a remote call
type RetryPolicy struct {
	Attempts        int // total attempts, including the first one
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is three attempts with 1s..10s exponential backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:        3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     10 * time.Second,
	}
}

// Retry calls op until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is done. notify, when set, is called before each wait.
func Retry[T any](ctx context.Context, policy RetryPolicy, notify func(err error, wait time.Duration), op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = 0

	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
	return backoff.RetryNotifyWithData(op, bo, notify)
}

// Permanent wraps err so that Retry stops immediately and returns it
func Permanent(err error) error {
	return backoff.Permanent(err)
}
