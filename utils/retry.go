package utils

import (
	"context"
	"time"
)

// RetryPolicy is the single retry abstraction shared by the validator probe
// and the stats refresh. Backoff of zero means immediate retry. Stop, when
// set, short-circuits retrying for errors that can never succeed.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Stop        func(error) bool
}

// Do runs op up to MaxAttempts times, returning nil on the first success or
// the last error otherwise. Context cancellation aborts between attempts.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if p.Stop != nil && p.Stop(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if p.Backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff):
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
