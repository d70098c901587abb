package ledger

import (
	"context"
	"time"

	"github.com/SUOKE2024/suoke-life-sub003/pkg/config"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

// RetryPolicy retries an operation with exponential backoff. Only errors the
// taxonomy marks retryable are retried; everything else surfaces immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration

	// Sleep is overridable so tests can run the schedule with a fake clock.
	Sleep func(d time.Duration)
}

// PolicyFromConfig builds a retry policy from configuration
func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.BaseDelayMS) * time.Millisecond,
		Multiplier:  cfg.Multiplier,
		MaxDelay:    time.Duration(cfg.MaxDelayMS) * time.Millisecond,
	}
}

// Do runs fn up to MaxAttempts times. Backoff for attempt n (zero-based) is
// BaseDelay * Multiplier^n, capped at MaxDelay. Context expiry between
// attempts surfaces as TIMEOUT.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return types.NewTimeoutError("context expired during retry backoff", ctxErr)
			}
			sleep(p.delay(attempt - 1))
		}

		if err = fn(); err == nil {
			return nil
		}
		if !types.IsRetryable(err) {
			return err
		}
	}
	return err
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
	}
	delay := time.Duration(d)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
