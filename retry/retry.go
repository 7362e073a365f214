// Package retry reruns failed fetch attempts with exponential backoff.
// Only errors marked retryable are retried; the delay before retry k+1 is
// exactly 2^(k-1) seconds.
package retry

import (
	"context"
	"time"

	iris "github.com/irislabs/iris"
	"github.com/irislabs/iris/logger"
)

// Func runs a single fetch attempt. attempt is 1-based. A nil return is
// success; a fetch error drives the retry decision.
type Func func(ctx context.Context, attempt int) *iris.FetchError

// Retrier runs attempts under a retry budget.
type Retrier struct {
	maxRetries int
	log        logger.Logger

	// Sleep performs the backoff wait. Swappable in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New creates a retrier allowing maxRetries retries after the first attempt.
func New(maxRetries int, log logger.Logger) *Retrier {
	if log == nil {
		log = logger.Noop()
	}
	return &Retrier{
		maxRetries: maxRetries,
		log:        log,
		Sleep:      sleepCtx,
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// budget of maxRetries+1 attempts is spent. It returns nil on success or the
// last attempt's error.
func (r *Retrier) Do(ctx context.Context, fn Func) *iris.FetchError {
	var last *iris.FetchError

	for attempt := 1; attempt <= r.maxRetries+1; attempt++ {
		last = fn(ctx, attempt)
		if last == nil {
			return nil
		}
		if !last.Retryable {
			return last
		}
		if attempt > r.maxRetries {
			break
		}

		delay := backoff(attempt)
		r.log.Info("retrying after failure",
			"attempt", attempt,
			"error_type", string(last.Type),
			"backoff", delay.String(),
		)
		if err := r.Sleep(ctx, delay); err != nil {
			return last
		}
	}

	return last
}

// backoff returns the delay after the k-th failed attempt: 1s, 2s, 4s, ...
func backoff(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
