// Package retry implements bounded fixed-interval retry for transient
// provider failures.
package retry

import (
	"context"
	"time"
)

// Config controls retry behavior for a single operation.
type Config struct {
	Attempts int           // total attempts, including the first (min 1)
	Interval time.Duration // fixed wait between attempts
}

// DefaultConfig returns the detail-resolution defaults: 3 attempts, 1s apart.
func DefaultConfig() Config {
	return Config{
		Attempts: 3,
		Interval: time.Second,
	}
}

// Do runs fn until it succeeds or the attempt bound is exhausted, waiting
// cfg.Interval between attempts. Returns the number of attempts made and
// the last error (nil on success). The wait is context-aware: a cancelled
// ctx aborts with ctx.Err().
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) (attempts int, err error) {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return attempt, nil
		}

		if attempt == cfg.Attempts {
			return attempt, err
		}

		if cfg.Interval > 0 {
			timer := time.NewTimer(cfg.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
	}
	return cfg.Attempts, err
}
