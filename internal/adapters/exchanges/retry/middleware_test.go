package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/pkg/errors"
)

func testMiddleware(attempts int) *Middleware {
	return New(Config{Attempts: attempts, Delay: time.Millisecond})
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := testMiddleware(3).Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := testMiddleware(5).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := testMiddleware(10).Do(context.Background(), func() error {
		calls++
		return errors.New("always fails")
	})

	require.Error(t, err)
	assert.Equal(t, 10, calls)
	assert.Contains(t, err.Error(), "all 10 attempts failed")
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := New(Config{Attempts: 100, Delay: time.Minute}).Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("fail")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), testMiddleware(3), func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "order-1", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "order-1", got)

	_, err = DoWithResult(context.Background(), testMiddleware(2), func() (string, error) {
		return "", errors.New("fatal")
	})
	require.Error(t, err)
}
