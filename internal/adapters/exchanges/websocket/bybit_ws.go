package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"hermes/internal/adapters/exchanges/quote"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

const (
	bybitLinearWSURL  = "wss://stream.bybit.com/v5/public/linear"
	bybitTestnetWSURL = "wss://stream-testnet.bybit.com/v5/public/linear"
	bybitPingInterval = 20 * time.Second
	bybitReadTimeout  = 30 * time.Second
	bybitWriteTimeout = 5 * time.Second
)

// BybitBookFeed streams the level-1 order book for one symbol and writes
// every update into the quote cache.
type BybitBookFeed struct {
	symbol  string
	cache   *quote.Cache
	testnet bool

	conn      *websocket.Conn
	connected bool
	mu        sync.RWMutex
	wg        sync.WaitGroup
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBybitBookFeed creates a feed for the given symbol.
func NewBybitBookFeed(symbol string, cache *quote.Cache, testnet bool) *BybitBookFeed {
	return &BybitBookFeed{
		symbol:  symbol,
		cache:   cache,
		testnet: testnet,
		log:     logger.Get().With("component", "bybit_ws", "symbol", symbol),
		done:    make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and subscribes to the
// orderbook.1 topic for the feed's symbol.
func (c *BybitBookFeed) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	url := c.baseURL()
	c.log.Infof("Connecting to Bybit WebSocket: %s", url)

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to connect to Bybit WebSocket")
	}

	c.conn = conn
	c.connected = true
	c.done = make(chan struct{})

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.subscribe(); err != nil {
		conn.Close()
		c.conn = nil
		c.connected = false
		return err
	}

	c.wg.Add(1)
	go c.readMessages()

	c.wg.Add(1)
	go c.pingLoop()

	c.log.Info("Bybit WebSocket connected")
	return nil
}

// Disconnect closes the connection and waits for the feed goroutines.
func (c *BybitBookFeed) Disconnect() error {
	c.mu.Lock()

	if !c.connected {
		c.mu.Unlock()
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	select {
	case <-c.done:
	default:
		close(c.done)
	}

	if c.conn != nil {
		err := c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(1*time.Second),
		)
		if err != nil {
			c.log.Warnf("Error sending close message: %v", err)
		}

		c.conn.Close()
		c.conn = nil
	}

	c.connected = false
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		c.log.Warn("WebSocket shutdown timed out after 10s")
		return errors.Wrap(errors.ErrTimeout, "websocket shutdown timeout")
	}

	c.log.Info("Bybit WebSocket disconnected")
	return nil
}

// IsConnected returns connection status
func (c *BybitBookFeed) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Ping sends the Bybit application-level ping
func (c *BybitBookFeed) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return errors.ErrWSNotConnected
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(bybitWriteTimeout)); err != nil {
		return err
	}

	return c.conn.WriteJSON(map[string]interface{}{"op": "ping"})
}

func (c *BybitBookFeed) subscribe() error {
	msg := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"orderbook.1." + c.symbol},
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(bybitWriteTimeout)); err != nil {
		return err
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return errors.Wrap(err, "failed to send subscription")
	}

	return nil
}

func (c *BybitBookFeed) readMessages() {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.done:
			return
		default:
			if err := c.conn.SetReadDeadline(time.Now().Add(bybitReadTimeout)); err != nil {
				c.log.Errorf("Failed to set read deadline: %v", err)
				return
			}

			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.log.Info("WebSocket closed normally")
					return
				}

				if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
					continue
				}

				c.log.Errorf("Error reading message: %v", err)
				return
			}

			c.processMessage(message)
		}
	}
}

func (c *BybitBookFeed) processMessage(message []byte) {
	var msg struct {
		Topic string `json:"topic"`
		Type  string `json:"type"`
		Ts    int64  `json:"ts"`
		Data  struct {
			Bids [][]string `json:"b"`
			Asks [][]string `json:"a"`
		} `json:"data"`
	}

	if err := json.Unmarshal(message, &msg); err != nil {
		c.log.Errorf("Failed to unmarshal message: %v", err)
		return
	}
	if msg.Topic == "" {
		// Subscription acks and pong frames carry no topic.
		return
	}

	// At depth 1 each message carries at most one level per side. An empty
	// side in a delta means that side is unchanged.
	bestBid := topLevel(msg.Data.Bids)
	bestAsk := topLevel(msg.Data.Asks)
	if bestBid.IsZero() && bestAsk.IsZero() {
		return
	}

	c.cache.Update(bestBid, bestAsk, time.UnixMilli(msg.Ts))
}

func topLevel(levels [][]string) decimal.Decimal {
	if len(levels) == 0 || len(levels[0]) < 2 {
		return decimal.Decimal{}
	}
	// Size zero means the level was removed.
	if size, err := decimal.NewFromString(levels[0][1]); err != nil || size.IsZero() {
		return decimal.Decimal{}
	}
	price, err := decimal.NewFromString(levels[0][0])
	if err != nil {
		return decimal.Decimal{}
	}
	return price
}

func (c *BybitBookFeed) pingLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(bybitPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				c.log.Errorf("Ping failed: %v", err)
			}
		}
	}
}

func (c *BybitBookFeed) baseURL() string {
	if c.testnet {
		return bybitTestnetWSURL
	}
	return bybitLinearWSURL
}
