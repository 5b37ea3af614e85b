package agent

import (
	"context"
	"math"
	"time"
)

// RetryPolicy controls how RemoteClient retries transient failures.
type RetryPolicy struct {
	// MaxRetries is the total number of attempts, not the number of retries
	// after the first.
	MaxRetries int
	// BackoffFactor in seconds; the wait before attempt n+1 is
	// BackoffFactor * 2^n.
	BackoffFactor float64
}

const (
	DefaultMaxRetries    = 3
	DefaultBackoffFactor = 1.0
	DefaultTimeout       = 30 * time.Second
)

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, BackoffFactor: DefaultBackoffFactor}
}

// Delay returns the wait after the zero-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	seconds := p.BackoffFactor * math.Pow(2, float64(attempt))
	return time.Duration(seconds * float64(time.Second))
}

// sleep waits d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
