package myretry

import (
	"context"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Policy is the one retry/backoff rule in this codebase: base * 2^attempt,
// bounded by MaxRetries. The transport layer and the recovery boundary both
// consume it so the formula cannot drift between call sites.
type Policy struct {
	// MaxRetries counts retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	// IsRetryable decides per error; nil means retry everything.
	IsRetryable func(error) bool

	// sleep is swapped out in tests
	sleep func(c context.Context, d time.Duration) error
}

func NewPolicy(maxRetries int, baseDelay time.Duration, isRetryable func(error) bool) Policy {
	return Policy{
		MaxRetries:  maxRetries,
		BaseDelay:   baseDelay,
		IsRetryable: isRetryable,
		sleep:       contextSleep,
	}
}

// Delay returns the wait before replaying attempt n (0-based):
// base, 2*base, 4*base, ...
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay << attempt
}

// Do runs f, replaying it after Delay(n) for every retryable failure until
// MaxRetries is exhausted. The last error is returned unchanged.
func (p Policy) Do(c context.Context, f func(c context.Context) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = contextSleep
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = f(c)
		if err == nil {
			return nil
		}

		if p.IsRetryable != nil && !p.IsRetryable(err) {
			return err
		}
		if attempt >= p.MaxRetries {
			return err
		}

		sleepErr := sleep(c, p.Delay(attempt))
		if sleepErr != nil {
			return err
		}
	}
}

func contextSleep(c context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.Done():
		return c.Err()
	case <-timer.C:
		return nil
	}
}
