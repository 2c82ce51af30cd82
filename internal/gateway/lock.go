package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/nerrad567/hashpipe-gateway/internal/status"
)

const (
	// DefaultLockTimeout bounds one attempt to lock a status buffer.
	DefaultLockTimeout = 250 * time.Millisecond

	// lockRetryBudget is the total time spent retrying one entity.
	lockRetryBudget = time.Second
)

// locker runs callbacks under entity locks, retrying lock timeouts with
// exponential backoff.
type locker struct {
	timeout time.Duration
	budget  time.Duration
	metrics Metrics
}

func (l locker) do(ctx context.Context, e *status.Entity, fn func(*status.Buffer) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = l.budget
	bo.Reset()

	// fn runs at most once; only failures to take the lock are retried.
	var fnErr error
	attempt := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		return e.Do(attemptCtx, func(b *status.Buffer) error {
			fnErr = fn(b)
			return nil
		})
	}

	if err := backoff.Retry(attempt, backoff.WithContext(bo, ctx)); err != nil {
		l.metrics.LockTimeout()
		return err
	}
	return fnErr
}
