package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(5, 0), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(5, 0), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	var attempts []int

	cfg := Fixed(4, 0)
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}

	err := Do(context.Background(), cfg, func() error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3, 4}, attempts)
}

func TestDo_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, Fixed(10, time.Hour), func() error {
		calls++
		cancel()
		return errors.New("flaky")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_BackoffGrowsAndCaps(t *testing.T) {
	cfg := Config{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		Multiplier:  10,
		MaxDelay:    5 * time.Millisecond,
	}

	start := time.Now()
	err := Do(context.Background(), cfg, func() error {
		return errors.New("flaky")
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	// 1ms + 5ms (capped from 10ms) between three attempts.
	assert.GreaterOrEqual(t, elapsed, 6*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}
