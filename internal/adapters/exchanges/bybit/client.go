package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hermes/internal/adapters/exchanges"
	"hermes/internal/adapters/exchanges/quote"
	"hermes/internal/adapters/exchanges/ratelimit"
	"hermes/internal/adapters/exchanges/websocket"
)

const (
	baseURL        = "https://api.bybit.com"
	testnetURL     = "https://api-testnet.bybit.com"
	defaultTimeout = 10 * time.Second
	defaultRecvWin = 5 * time.Second

	// How often the book feed is health-checked for reconnection.
	feedMonitorInterval = 5 * time.Second

	category = "linear"
)

// Config configures the Bybit client.
type Config struct {
	APIKey    string
	SecretKey string
	Testnet   bool

	HTTPClient     *http.Client
	RecvWindow     time.Duration
	Limiter        *ratelimit.MultiLimiter
	QuoteFreshness time.Duration
}

// NewClient creates a new Bybit adapter instance.
func NewClient(cfg Config) (exchanges.Exchange, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("bybit api key and secret required")
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = defaultRecvWin
	}
	if cfg.QuoteFreshness == 0 {
		cfg.QuoteFreshness = 5 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}

	return &client{
		cfg:    cfg,
		quotes: make(map[string]*quote.Cache),
	}, nil
}

type client struct {
	cfg         Config
	quotes      map[string]*quote.Cache
	feed        *websocket.BybitBookFeed
	monitorStop context.CancelFunc
}

func (c *client) Name() string {
	return "bybit"
}

func (c *client) FormatSymbol(base, quoteAsset string) string {
	return normalizeSymbol(base + quoteAsset)
}

// InstrumentInfo resolves the price tick for the symbol.
func (c *client) InstrumentInfo(ctx context.Context, symbol string) (*exchanges.InstrumentInfo, error) {
	var res struct {
		List []struct {
			Symbol      string `json:"symbol"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
		} `json:"list"`
	}

	params := url.Values{
		"category": []string{category},
		"symbol":   []string{normalizeSymbol(symbol)},
	}

	if err := c.wait(ctx, "global"); err != nil {
		return nil, err
	}
	if err := c.publicGet(ctx, "/v5/market/instruments-info", params, &res); err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return nil, fmt.Errorf("%w: %s", exchanges.ErrInstrumentNotFound, symbol)
	}

	tick := dec(res.List[0].PriceFilter.TickSize)
	if tick.IsZero() {
		return nil, fmt.Errorf("bybit instrument %s has no tick size", symbol)
	}

	return &exchanges.InstrumentInfo{
		Symbol:        res.List[0].Symbol,
		TickSize:      tick,
		ContractValue: decimal.NewFromInt(1),
	}, nil
}

// Warmup connects the level-1 book feed for the symbol so order pricing can
// run off the push cache. The feed is watched for the lifetime of the client
// and reconnected with backoff if the stream drops.
func (c *client) Warmup(ctx context.Context, symbol string) error {
	cache := c.quoteCache(symbol)

	feed := websocket.NewBybitBookFeed(normalizeSymbol(symbol), cache, c.cfg.Testnet)
	if err := feed.Connect(ctx); err != nil {
		return err
	}

	c.feed = feed

	monitorCtx, cancel := context.WithCancel(context.Background())
	c.monitorStop = cancel

	handler := websocket.NewReconnectHandler(c.Name(), feed, websocket.DefaultReconnectConfig())
	go handler.MonitorConnection(monitorCtx, feedMonitorInterval)

	return nil
}

func (c *client) Close() error {
	if c.monitorStop != nil {
		c.monitorStop()
		c.monitorStop = nil
	}
	if c.feed != nil {
		return c.feed.Disconnect()
	}
	return nil
}

// PlaceOrder submits a post-only limit order at the top of our side of the
// book, snapped to the instrument tick.
func (c *client) PlaceOrder(ctx context.Context, symbol string, side exchanges.OrderSide, quantity decimal.Decimal, inst *exchanges.InstrumentInfo) (string, error) {
	if quantity.IsZero() || inst == nil {
		return "", exchanges.ErrInvalidRequest
	}

	top, err := c.quoteCache(symbol).Best(ctx)
	if err != nil {
		return "", err
	}

	ref := top.BestBid
	if side == exchanges.OrderSideSell {
		ref = top.BestAsk
	}
	if ref.IsZero() {
		return "", exchanges.ErrNoQuote
	}

	price := exchanges.RoundToTick(ref, inst.TickSize)

	payload := map[string]interface{}{
		"category":    category,
		"symbol":      normalizeSymbol(symbol),
		"side":        sideToString(side),
		"orderType":   "Limit",
		"qty":         quantity.String(),
		"price":       price.String(),
		"timeInForce": "PostOnly",
	}

	var res struct {
		OrderID string `json:"orderId"`
	}

	if err := c.wait(ctx, "trading"); err != nil {
		return "", err
	}
	if err := c.privateRequest(ctx, http.MethodPost, "/v5/order/create", nil, payload, &res); err != nil {
		return "", err
	}
	if res.OrderID == "" {
		return "", fmt.Errorf("bybit order response missing orderId")
	}

	return res.OrderID, nil
}

func (c *client) OrderStatus(ctx context.Context, orderID, symbol string) (exchanges.OrderStatus, error) {
	status, found, err := c.queryOrder(ctx, "/v5/order/realtime", orderID, symbol)
	if err != nil {
		return exchanges.OrderStatusUnknown, err
	}
	if found {
		return status, nil
	}

	// Terminal orders age out of the realtime endpoint.
	status, found, err = c.queryOrder(ctx, "/v5/order/history", orderID, symbol)
	if err != nil {
		return exchanges.OrderStatusUnknown, err
	}
	if !found {
		return exchanges.OrderStatusUnknown, nil
	}
	return status, nil
}

func (c *client) queryOrder(ctx context.Context, path, orderID, symbol string) (exchanges.OrderStatus, bool, error) {
	params := url.Values{
		"category": []string{category},
		"symbol":   []string{normalizeSymbol(symbol)},
		"orderId":  []string{orderID},
	}

	var res struct {
		List []struct {
			OrderID string `json:"orderId"`
			Status  string `json:"orderStatus"`
		} `json:"list"`
	}

	if err := c.wait(ctx, "global"); err != nil {
		return exchanges.OrderStatusUnknown, false, err
	}
	if err := c.privateRequest(ctx, http.MethodGet, path, params, nil, &res); err != nil {
		return exchanges.OrderStatusUnknown, false, err
	}
	if len(res.List) == 0 {
		return exchanges.OrderStatusUnknown, false, nil
	}

	return orderStatusFromString(res.List[0].Status), true, nil
}

func (c *client) CancelOrder(ctx context.Context, orderID, symbol string) (*exchanges.CancelAck, error) {
	payload := map[string]interface{}{
		"category": category,
		"symbol":   normalizeSymbol(symbol),
		"orderId":  orderID,
	}

	var res struct {
		OrderID string `json:"orderId"`
	}

	if err := c.wait(ctx, "trading"); err != nil {
		return nil, err
	}
	if err := c.privateRequest(ctx, http.MethodPost, "/v5/order/cancel", nil, payload, &res); err != nil {
		return nil, err
	}

	return &exchanges.CancelAck{OrderID: res.OrderID}, nil
}

// IsOrderCanceled: Bybit echoes the order id in a successful cancel result.
func (c *client) IsOrderCanceled(ack *exchanges.CancelAck) bool {
	return ack != nil && ack.OrderID != ""
}

func (c *client) quoteCache(symbol string) *quote.Cache {
	key := normalizeSymbol(symbol)
	if cache, ok := c.quotes[key]; ok {
		return cache
	}

	cache := quote.NewCache(c.cfg.QuoteFreshness, func(ctx context.Context) (*exchanges.Quote, error) {
		return c.fetchTopOfBook(ctx, key)
	})
	c.quotes[key] = cache
	return cache
}

func (c *client) fetchTopOfBook(ctx context.Context, symbol string) (*exchanges.Quote, error) {
	var res struct {
		Bids [][]string `json:"b"`
		Asks [][]string `json:"a"`
		Ts   string     `json:"ts"`
	}

	params := url.Values{
		"category": []string{category},
		"symbol":   []string{symbol},
		"limit":    []string{"1"},
	}

	if err := c.wait(ctx, "global"); err != nil {
		return nil, err
	}
	if err := c.publicGet(ctx, "/v5/market/orderbook", params, &res); err != nil {
		return nil, err
	}
	if len(res.Bids) == 0 || len(res.Asks) == 0 {
		return nil, exchanges.ErrNoQuote
	}

	return &exchanges.Quote{
		BestBid:    decIdx(res.Bids[0], 0),
		BestAsk:    decIdx(res.Asks[0], 0),
		ObservedAt: time.UnixMilli(parseInt64(res.Ts)),
	}, nil
}

func (c *client) wait(ctx context.Context, keys ...string) error {
	if c.cfg.Limiter == nil {
		return nil
	}
	return c.cfg.Limiter.Wait(ctx, keys...)
}

func (c *client) publicGet(ctx context.Context, path string, params url.Values, target interface{}) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, params, nil, false)
	if err != nil {
		return err
	}
	return decodeResponse(body, target)
}

func (c *client) privateRequest(ctx context.Context, method, path string, params url.Values, payload map[string]interface{}, target interface{}) error {
	body, err := c.doRequest(ctx, method, path, params, payload, true)
	if err != nil {
		return err
	}
	return decodeResponse(body, target)
}

func (c *client) doRequest(ctx context.Context, method, path string, params url.Values, payload map[string]interface{}, signed bool) ([]byte, error) {
	var body io.Reader
	var bodyString string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		bodyString = string(raw)
		body = strings.NewReader(bodyString)
	}

	query := ""
	if params != nil && len(params) > 0 {
		query = params.Encode()
	}

	reqURL := c.baseURL() + path
	if query != "" {
		reqURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
		recv := strconv.FormatInt(c.cfg.RecvWindow.Milliseconds(), 10)

		// GET requests sign the query string, POST requests the body.
		signPayload := bodyString
		if method == http.MethodGet {
			signPayload = query
		}
		signature := c.sign(ts, recv, signPayload)

		req.Header.Set("X-BAPI-API-KEY", c.cfg.APIKey)
		req.Header.Set("X-BAPI-SIGN", signature)
		req.Header.Set("X-BAPI-TIMESTAMP", ts)
		req.Header.Set("X-BAPI-RECV-WINDOW", recv)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: bybit http 429", exchanges.ErrRateLimited)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("bybit http %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func (c *client) sign(timestamp, recvWindow, payload string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	_, _ = mac.Write([]byte(timestamp + c.cfg.APIKey + recvWindow + payload))
	return fmt.Sprintf("%x", mac.Sum(nil))
}

func (c *client) baseURL() string {
	if c.cfg.Testnet {
		return testnetURL
	}
	return baseURL
}

type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

func decodeResponse(body []byte, target interface{}) error {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	if resp.RetCode != 0 {
		return fmt.Errorf("bybit error %d: %s", resp.RetCode, resp.RetMsg)
	}
	if target == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, target)
}

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decIdx(values []string, idx int) decimal.Decimal {
	if idx >= len(values) {
		return decimal.Zero
	}
	return dec(values[idx])
}

func parseInt64(value string) int64 {
	i, _ := strconv.ParseInt(value, 10, 64)
	return i
}

func sideToString(side exchanges.OrderSide) string {
	if side == exchanges.OrderSideSell {
		return "Sell"
	}
	return "Buy"
}

func orderStatusFromString(value string) exchanges.OrderStatus {
	switch strings.ToUpper(value) {
	case "NEW", "UNTRIGGERED", "TRIGGERED":
		return exchanges.OrderStatusNew
	case "PARTIALLYFILLED", "PARTIALLY_FILLED":
		return exchanges.OrderStatusPartial
	case "FILLED":
		return exchanges.OrderStatusFilled
	case "CANCELLED", "CANCELED", "PARTIALLYFILLEDCANCELED":
		return exchanges.OrderStatusCanceled
	case "REJECTED":
		return exchanges.OrderStatusRejected
	case "DEACTIVATED", "EXPIRED":
		return exchanges.OrderStatusExpired
	default:
		return exchanges.OrderStatusUnknown
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}
