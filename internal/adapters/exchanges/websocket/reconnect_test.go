package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/pkg/errors"
)

// fakeFeed scripts Connect outcomes and tracks connection state.
type fakeFeed struct {
	mu           sync.Mutex
	connected    bool
	connectCalls int
	failures     int // Connect errors before one succeeds
	pingErr      error
}

func (f *fakeFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectCalls <= f.failures {
		return errors.New("dial refused")
	}
	f.connected = true
	return nil
}

func (f *fakeFeed) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeFeed) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeFeed) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errors.ErrWSNotConnected
	}
	return f.pingErr
}

func (f *fakeFeed) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

func testReconnectConfig(maxRetries int) ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:      maxRetries,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2.0,
		ReconnectOnPing: true,
	}
}

func TestHandleDisconnectRecoversAfterFailures(t *testing.T) {
	feed := &fakeFeed{failures: 2}
	rh := NewReconnectHandler("bybit", feed, testReconnectConfig(5))

	err := rh.HandleDisconnect(context.Background())

	require.NoError(t, err)
	assert.True(t, feed.IsConnected())
	assert.Equal(t, 3, feed.calls())
}

func TestHandleDisconnectExhaustsRetries(t *testing.T) {
	feed := &fakeFeed{failures: 100}
	rh := NewReconnectHandler("bybit", feed, testReconnectConfig(3))

	err := rh.HandleDisconnect(context.Background())

	require.ErrorIs(t, err, errors.ErrWSMaxReconnectAttempts)
	assert.Equal(t, 3, feed.calls())
}

func TestHandleDisconnectStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feed := &fakeFeed{failures: 100}
	rh := NewReconnectHandler("bybit", feed, testReconnectConfig(3))

	err := rh.HandleDisconnect(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, feed.calls())
}

func TestMonitorConnectionRevivesDroppedFeed(t *testing.T) {
	feed := &fakeFeed{}
	rh := NewReconnectHandler("bybit", feed, testReconnectConfig(5))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		rh.MonitorConnection(ctx, time.Millisecond)
	}()

	require.Eventually(t, feed.IsConnected, time.Second, time.Millisecond,
		"monitor never reconnected the dropped feed")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop on context cancel")
	}
}
