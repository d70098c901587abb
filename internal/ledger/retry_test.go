package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SUOKE2024/suoke-life-sub003/pkg/config"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

func testPolicy(delays *[]time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    10 * time.Second,
		Sleep: func(d time.Duration) {
			*delays = append(*delays, d)
		},
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	t.Run("retries transient failures with exponential backoff", func(t *testing.T) {
		var delays []time.Duration
		policy := testPolicy(&delays)

		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return types.NewNetworkError("connection refused", nil)
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
	})

	t.Run("does not retry ledger-side rejections", func(t *testing.T) {
		var delays []time.Duration
		policy := testPolicy(&delays)

		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			return types.NewBlockchainError("transaction rejected", nil)
		})

		assert.Equal(t, types.ErrCodeBlockchainError, types.CodeOf(err))
		assert.Equal(t, 1, calls)
		assert.Empty(t, delays)
	})

	t.Run("does not retry timeouts", func(t *testing.T) {
		var delays []time.Duration
		policy := testPolicy(&delays)

		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			return types.NewTimeoutError("deadline exceeded", nil)
		})

		assert.Equal(t, types.ErrCodeTimeout, types.CodeOf(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("returns last error when attempts are exhausted", func(t *testing.T) {
		var delays []time.Duration
		policy := testPolicy(&delays)

		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			return types.NewNetworkError("connection refused", nil)
		})

		assert.Equal(t, types.ErrCodeNetworkError, types.CodeOf(err))
		assert.Equal(t, 3, calls)
		assert.Len(t, delays, 2)
	})

	t.Run("caps backoff at max delay", func(t *testing.T) {
		var delays []time.Duration
		policy := RetryPolicy{
			MaxAttempts: 4,
			BaseDelay:   time.Second,
			Multiplier:  10.0,
			MaxDelay:    3 * time.Second,
			Sleep: func(d time.Duration) {
				delays = append(delays, d)
			},
		}

		_ = policy.Do(context.Background(), func() error {
			return types.NewNetworkError("connection refused", nil)
		})

		assert.Equal(t, []time.Duration{time.Second, 3 * time.Second, 3 * time.Second}, delays)
	})

	t.Run("canceled context surfaces as timeout between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		policy := RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			Multiplier:  2.0,
			Sleep:       func(time.Duration) {},
		}

		calls := 0
		err := policy.Do(ctx, func() error {
			calls++
			cancel()
			return types.NewNetworkError("connection refused", nil)
		})

		assert.Equal(t, types.ErrCodeTimeout, types.CodeOf(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("treats non-positive max attempts as a single attempt", func(t *testing.T) {
		policy := RetryPolicy{MaxAttempts: 0, Sleep: func(time.Duration) {}}

		calls := 0
		_ = policy.Do(context.Background(), func() error {
			calls++
			return types.NewNetworkError("connection refused", nil)
		})

		assert.Equal(t, 1, calls)
	})
}

func TestPolicyFromConfig(t *testing.T) {
	policy := PolicyFromConfig(config.RetryConfig{
		MaxAttempts: 5,
		BaseDelayMS: 250,
		Multiplier:  1.5,
		MaxDelayMS:  4000,
	})

	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, policy.BaseDelay)
	assert.Equal(t, 1.5, policy.Multiplier)
	assert.Equal(t, 4*time.Second, policy.MaxDelay)
}
