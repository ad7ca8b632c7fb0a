package fetcher

import (
	"context"
	"time"
)

// RetryPolicy is a bounded retry with exponential backoff: attempt n sleeps
// BaseDelay * 2^n before retrying. MaxRetries is the number of retries after
// the first attempt, so MaxRetries=2 means at most three attempts.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Do runs fn until it succeeds, the retry budget is exhausted, or the context
// is cancelled. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.BaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
