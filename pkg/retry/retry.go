package retry

import (
	"context"
	"time"
)

// Policy controls how vendor calls are retried. It is passed explicitly into
// anything that talks to Google so tests can inject a zero-wait policy.
type Policy struct {
	MaxAttempts int
	InitialWait time.Duration
	Multiplier  float64
}

// Default is a conservative policy for vendor API calls.
var Default = Policy{
	MaxAttempts: 3,
	InitialWait: time.Second,
	Multiplier:  2,
}

// None performs a single attempt with no waiting.
var None = Policy{MaxAttempts: 1}

// Do runs fn until it succeeds, the policy is exhausted, or shouldRetry
// reports the error as permanent. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func() error, shouldRetry func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	wait := p.InitialWait
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			wait = time.Duration(float64(wait) * p.Multiplier)
		}
	}
	return err
}
