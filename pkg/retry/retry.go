// Package retry provides bounded retry with optional rate limiting for
// network-facing calls.
//
// Example usage:
//
//	err := retry.Do(ctx, retry.Fixed(5, 2*time.Second), func() error {
//	    return doSomeWork()
//	})
package retry

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Config configures retry behavior.
type Config struct {
	MaxAttempts int                          // maximum number of attempts (minimum 1)
	Delay       time.Duration                // initial delay between attempts
	Multiplier  float64                      // delay multiplier (1.0 = fixed delay)
	MaxDelay    time.Duration                // cap for the growing delay (0 = no cap)
	Jitter      bool                         // add random jitter to spread retries
	Limiter     *rate.Limiter                // optional pacing across callers
	OnRetry     func(attempt int, err error) // optional callback on each failure
}

// Fixed returns a config that retries with a constant delay.
func Fixed(attempts int, delay time.Duration) Config {
	return Config{
		MaxAttempts: attempts,
		Delay:       delay,
		Multiplier:  1.0,
	}
}

// Do executes fn until it succeeds, the attempt budget is exhausted, or the
// context is cancelled. The returned error wraps the last failure.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 1.0
	}

	delay := cfg.Delay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return err
			}
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				log.Printf("[Retry] Succeeded after %d attempts", attempt)
			}
			return nil
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		next := delay
		if cfg.Jitter && next > 0 {
			next += time.Duration(rand.Int63n(int64(next/4) + 1))
		}

		log.Printf("[Retry] Attempt %d failed: %v. Sleeping %v", attempt, lastErr, next)

		if next > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(next):
			}
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}
