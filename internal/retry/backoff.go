// Package retry implements exponential backoff for platform API calls.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Config configures retry behavior with exponential backoff.
type Config struct {
	MaxAttempts int           // Total attempts including the first (default: 3)
	BaseDelay   time.Duration // Delay before the first retry (default: 5s)
	MaxDelay    time.Duration // Ceiling for the doubling delay (default: 10m)
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		MaxDelay:    10 * time.Minute,
	}
}

// DelayFunc inspects an error and reports whether it is retryable. A
// positive duration overrides the computed backoff delay (e.g. a
// server-provided Retry-After interval).
type DelayFunc func(err error) (time.Duration, bool)

// Do executes op until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The wait doubles after each retry up to
// cfg.MaxDelay; a server-provided interval from delayFor takes precedence
// for the attempt it accompanies.
func Do(ctx context.Context, cfg Config, op func() error, delayFor DelayFunc) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	wait := cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		hint, retryable := delayFor(err)
		if !retryable {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := wait
		if hint > 0 {
			delay = hint
		}
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxAttempts", cfg.MaxAttempts).
			Dur("delay", delay).
			Msg("Retryable error, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		wait = delay * 2
		if wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}
	}

	return lastErr
}
