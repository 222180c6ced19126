package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/c360/virtualsensor/errors"
)

// Config provides retry configuration
type Config struct {
	MaxAttempts  int           // Total attempts, values below 1 mean one
	InitialDelay time.Duration // Delay before the second attempt
	MaxDelay     time.Duration // Upper bound for any delay
	Multiplier   float64       // Growth factor between delays
	Jitter       bool          // Add up to 25% random delay
}

// DefaultConfig returns defaults for ordinary operations
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Quick returns a config for fast retries during startup
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   1.5,
		Jitter:       true,
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	switch {
	case c.InitialDelay < 0, c.MaxDelay < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Validate", "delays cannot be negative")
	case c.Multiplier < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Validate", "multiplier cannot be negative")
	case c.MaxDelay > 0 && c.MaxDelay < c.InitialDelay:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Validate", "max delay below initial delay")
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = max(def.MaxDelay, c.InitialDelay)
	}
	if c.Multiplier == 0 {
		c.Multiplier = def.Multiplier
	}
	return c
}

// next returns the delay following d.
func (c Config) next(d time.Duration) time.Duration {
	n := float64(d) * c.Multiplier
	if n > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(n)
}

func (c Config) sleepFor(d time.Duration) time.Duration {
	if !c.Jitter || d < 4 {
		return d
	}
	return d + rand.N(d/4)
}

// Do calls fn until it returns nil or a non-transient error, the attempts
// are used up, or ctx is done.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return errors.WrapTransient(lastErr, "retry", "Do", fmt.Sprintf("cancelled before attempt %d", attempt))
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Classify(lastErr) != errors.ErrorTransient {
			return lastErr
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("retry failed after %d attempts: %w", attempt, lastErr)
		}

		timer := time.NewTimer(cfg.sleepFor(delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.WrapTransient(lastErr, "retry", "Do", fmt.Sprintf("cancelled during backoff after attempt %d", attempt))
		case <-timer.C:
		}
		delay = cfg.next(delay)
	}
}

// DoWithResult is Do for functions returning a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}
