package retry

import (
	"context"
	"time"

	"hermes/pkg/errors"
)

// Config contains retry configuration. Every attempt that fails is retried
// after a fixed Delay until Attempts is exhausted; the exchanges give no
// reliable way to distinguish transient from permanent rejections, so all
// errors are treated as retryable.
type Config struct {
	Attempts int
	Delay    time.Duration
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Attempts: 3,
		Delay:    2 * time.Second,
	}
}

// Middleware provides bounded fixed-delay retry
type Middleware struct {
	config Config
}

// New creates a new retry middleware
func New(config Config) *Middleware {
	if config.Attempts <= 0 {
		config.Attempts = 3
	}
	if config.Delay <= 0 {
		config.Delay = 2 * time.Second
	}

	return &Middleware{config: config}
}

// Attempts returns the configured attempt budget
func (m *Middleware) Attempts() int {
	return m.config.Attempts
}

// Do executes the function, retrying on any error up to the attempt budget
func (m *Middleware) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= m.config.Attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		// Don't sleep after last attempt
		if attempt == m.config.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "retry cancelled")
		case <-time.After(m.config.Delay):
		}
	}

	return errors.Wrapf(lastErr, "all %d attempts failed", m.config.Attempts)
}

// DoWithResult executes fn with the middleware's retry policy and returns
// its result once an attempt succeeds.
func DoWithResult[T any](ctx context.Context, m *Middleware, fn func() (T, error)) (T, error) {
	var result T

	err := m.Do(ctx, func() error {
		var err error
		result, err = fn()
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}
