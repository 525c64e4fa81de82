package websocket

import (
	"context"
	"time"

	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Feed is a connectable market data stream.
type Feed interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	Ping() error
}

// ReconnectConfig configures auto-reconnection behavior
type ReconnectConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	ReconnectOnPing bool // Reconnect if ping fails
}

// DefaultReconnectConfig returns sensible defaults
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:      10,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		BackoffFactor:   2.0,
		ReconnectOnPing: true,
	}
}

// ReconnectHandler manages automatic reconnection for a feed
type ReconnectHandler struct {
	exchange string
	feed     Feed
	config   ReconnectConfig
	log      *logger.Logger
}

// NewReconnectHandler creates a new reconnect handler
func NewReconnectHandler(exchange string, feed Feed, config ReconnectConfig) *ReconnectHandler {
	return &ReconnectHandler{
		exchange: exchange,
		feed:     feed,
		config:   config,
		log:      logger.Get().With("component", "ws_reconnect", "exchange", exchange),
	}
}

// HandleDisconnect handles disconnection and attempts reconnection
func (rh *ReconnectHandler) HandleDisconnect(ctx context.Context) error {
	rh.log.Warn("WebSocket disconnected, starting reconnection attempts")

	delay := rh.config.InitialDelay

	for attempt := 1; attempt <= rh.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			rh.log.Infof("Reconnection attempt %d/%d", attempt, rh.config.MaxRetries)

			if err := rh.feed.Connect(ctx); err != nil {
				rh.log.Errorf("Reconnection attempt %d failed: %v", attempt, err)

				delay = min(time.Duration(float64(delay)*rh.config.BackoffFactor), rh.config.MaxDelay)

				continue
			}

			metrics.RecordWebSocketReconnect(rh.exchange)
			rh.log.Info("Successfully reconnected WebSocket")
			return nil
		}
	}

	rh.log.Error("Max reconnection attempts reached, giving up")
	return errors.ErrWSMaxReconnectAttempts
}

// MonitorConnection monitors connection health via periodic pings
func (rh *ReconnectHandler) MonitorConnection(ctx context.Context, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !rh.feed.IsConnected() {
				rh.log.Warn("Connection lost, attempting reconnect")
				if err := rh.HandleDisconnect(ctx); err != nil {
					rh.log.Errorf("Failed to reconnect: %v", err)
				}
				continue
			}

			if rh.config.ReconnectOnPing {
				if err := rh.feed.Ping(); err != nil {
					rh.log.Warnf("Ping failed: %v, reconnecting", err)
					if err := rh.HandleDisconnect(ctx); err != nil {
						rh.log.Errorf("Failed to reconnect after ping failure: %v", err)
					}
				}
			}
		}
	}
}
