// Package retry provides exponential backoff with jitter for driftlock's
// object-store operations: base delay doubling per attempt, capped, with
// a bounded attempt budget.
package retry

import (
	"context"
	stderr "errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/driftlock/driftlock/pkg/errors"
)

// Config defines retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff base (default: 2.0).
	Multiplier float64

	// Jitter adds +/-20% randomness to the computed delay.
	Jitter bool

	// RetryableCodes lists error codes to retry beyond what the error's
	// own Retryable flag already marks.
	RetryableCodes []errors.Code

	// OnRetry, if set, is called before each wait between attempts.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns driftlock's default retry policy: five attempts,
// 100ms initial delay doubling up to 30s, jittered.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		RetryableCodes: []errors.Code{
			errors.CodeObjectStoreTransient,
		},
	}
}

// Retryer executes functions with exponential backoff.
type Retryer struct {
	config Config
}

// New builds a Retryer, filling unset MaxAttempts, InitialDelay, MaxDelay
// and Multiplier with DefaultConfig's values; Jitter and RetryableCodes
// are used as given.
func New(config Config) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	return &Retryer{config: config}
}

// Do executes fn with retry, ignoring cancellation.
func (r *Retryer) Do(fn func() error) error {
	return r.DoWithContext(context.Background(), func(ctx context.Context) error {
		return fn()
	})
}

// DoWithContext executes fn, retrying on retryable errors until
// MaxAttempts is exhausted or ctx is canceled.
func (r *Retryer) DoWithContext(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled: %w", ctx.Err())
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.shouldRetry(err) {
			return err
		}

		if attempt < r.config.MaxAttempts {
			delay := r.calculateDelay(attempt)

			if r.config.OnRetry != nil {
				r.config.OnRetry(attempt, err, delay)
			}

			select {
			case <-ctx.Done():
				return fmt.Errorf("operation canceled after %d attempts: %w", attempt, ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, lastErr)
}

func (r *Retryer) shouldRetry(err error) bool {
	var de *errors.DriftlockError
	if stderr.As(err, &de) {
		if de.Retryable {
			return true
		}
		for _, code := range r.config.RetryableCodes {
			if de.Code == code {
				return true
			}
		}
	}
	return false
}

func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	if r.config.Jitter {
		jitter := delay * 0.2 * (rand.Float64()*2 - 1)
		delay += jitter
	}

	return time.Duration(delay)
}

// WithMaxAttempts returns a copy of r with a different attempt budget.
func (r *Retryer) WithMaxAttempts(attempts int) *Retryer {
	cfg := r.config
	cfg.MaxAttempts = attempts
	return New(cfg)
}

// WithOnRetry returns a copy of r with a retry callback attached.
func (r *Retryer) WithOnRetry(callback func(attempt int, err error, delay time.Duration)) *Retryer {
	cfg := r.config
	cfg.OnRetry = callback
	return New(cfg)
}
