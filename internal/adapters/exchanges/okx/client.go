package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
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
	"hermes/pkg/errors"
)

const (
	productionBaseURL = "https://www.okx.com"
	defaultTimeout    = 10 * time.Second

	instTypeSwap = "SWAP"

	// 51603: order does not exist.
	codeOrderNotFound = "51603"
)

// Config configures the OKX client.
type Config struct {
	APIKey     string
	SecretKey  string
	Passphrase string
	Testnet    bool

	HTTPClient     *http.Client
	Limiter        *ratelimit.MultiLimiter
	QuoteFreshness time.Duration
}

// NewClient constructs a new OKX adapter.
func NewClient(cfg Config) (exchanges.Exchange, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" || cfg.Passphrase == "" {
		return nil, fmt.Errorf("okx api key, secret and passphrase required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.QuoteFreshness == 0 {
		cfg.QuoteFreshness = 5 * time.Second
	}
	return &client{
		cfg:    cfg,
		quotes: make(map[string]*quote.Cache),
	}, nil
}

type client struct {
	cfg    Config
	quotes map[string]*quote.Cache
}

func (c *client) Name() string {
	return "okx"
}

// FormatSymbol builds the OKX perpetual instrument id, e.g. BTC-USDT-SWAP.
func (c *client) FormatSymbol(base, quoteAsset string) string {
	return strings.ToUpper(base) + "-" + strings.ToUpper(quoteAsset) + "-" + instTypeSwap
}

// InstrumentInfo resolves tick size and contract value. OKX sizes swap
// orders in contracts, so quantities are divided by ctVal at placement.
func (c *client) InstrumentInfo(ctx context.Context, symbol string) (*exchanges.InstrumentInfo, error) {
	params := url.Values{
		"instType": []string{instTypeSwap},
		"instId":   []string{normalizeSymbol(symbol)},
	}

	var res []struct {
		InstID string `json:"instId"`
		TickSz string `json:"tickSz"`
		CtVal  string `json:"ctVal"`
	}

	if err := c.wait(ctx, "global"); err != nil {
		return nil, err
	}
	if err := c.get(ctx, "/api/v5/public/instruments", params, &res); err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: %s", exchanges.ErrInstrumentNotFound, symbol)
	}

	tick := dec(res[0].TickSz)
	ctVal := dec(res[0].CtVal)
	if tick.IsZero() || ctVal.IsZero() {
		return nil, fmt.Errorf("okx instrument %s missing tickSz or ctVal", symbol)
	}

	return &exchanges.InstrumentInfo{
		Symbol:        res[0].InstID,
		TickSize:      tick,
		ContractValue: ctVal,
	}, nil
}

// Warmup is a no-op: OKX pricing runs off the REST book cache.
func (c *client) Warmup(ctx context.Context, symbol string) error {
	return nil
}

func (c *client) Close() error {
	return nil
}

// PlaceOrder submits a post-only order priced at our side of the book and
// sized in contracts.
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
	size := quantity.Div(inst.ContractValue)

	payload := map[string]interface{}{
		"instId":  normalizeSymbol(symbol),
		"tdMode":  "cross",
		"side":    string(side),
		"ordType": "post_only",
		"px":      price.String(),
		"sz":      size.String(),
	}

	var res []struct {
		OrdID string `json:"ordId"`
		SCode string `json:"sCode"`
		SMsg  string `json:"sMsg"`
	}

	if err := c.wait(ctx, "trading"); err != nil {
		return "", err
	}
	if err := c.request(ctx, http.MethodPost, "/api/v5/trade/order", nil, payload, &res); err != nil {
		return "", err
	}
	if len(res) == 0 {
		return "", fmt.Errorf("okx order response empty")
	}
	if res[0].SCode != "0" {
		return "", fmt.Errorf("okx order rejected %s: %s", res[0].SCode, res[0].SMsg)
	}

	return res[0].OrdID, nil
}

func (c *client) OrderStatus(ctx context.Context, orderID, symbol string) (exchanges.OrderStatus, error) {
	params := url.Values{
		"instId": []string{normalizeSymbol(symbol)},
		"ordId":  []string{orderID},
	}

	var res []struct {
		State string `json:"state"`
	}

	if err := c.wait(ctx, "global"); err != nil {
		return exchanges.OrderStatusUnknown, err
	}
	if err := c.request(ctx, http.MethodGet, "/api/v5/trade/order", params, nil, &res); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Code == codeOrderNotFound {
			return exchanges.OrderStatusUnknown, nil
		}
		return exchanges.OrderStatusUnknown, err
	}
	if len(res) == 0 {
		return exchanges.OrderStatusUnknown, nil
	}

	return stateToOrderStatus(res[0].State), nil
}

// CancelOrder returns the raw envelope codes so IsOrderCanceled can apply
// the venue's success rule even when the cancel was a no-op.
func (c *client) CancelOrder(ctx context.Context, orderID, symbol string) (*exchanges.CancelAck, error) {
	payload := map[string]interface{}{
		"instId": normalizeSymbol(symbol),
		"ordId":  orderID,
	}

	if err := c.wait(ctx, "trading"); err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v5/trade/cancel-order", nil, payload, true)
	if err != nil {
		return nil, err
	}

	var env struct {
		Code string `json:"code"`
		Data []struct {
			OrdID string `json:"ordId"`
			SCode string `json:"sCode"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	ack := &exchanges.CancelAck{OrderID: orderID, Code: env.Code}
	for _, d := range env.Data {
		ack.Codes = append(ack.Codes, d.SCode)
	}
	return ack, nil
}

// IsOrderCanceled: the envelope code must be 0 and at least one per-order
// sCode must be 0.
func (c *client) IsOrderCanceled(ack *exchanges.CancelAck) bool {
	if ack == nil || ack.Code != "0" {
		return false
	}
	for _, code := range ack.Codes {
		if code == "0" {
			return true
		}
	}
	return false
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
	params := url.Values{
		"instId": []string{symbol},
		"sz":     []string{"1"},
	}

	var res []struct {
		Asks [][]string `json:"asks"`
		Bids [][]string `json:"bids"`
		Ts   string     `json:"ts"`
	}

	if err := c.wait(ctx, "global"); err != nil {
		return nil, err
	}
	if err := c.get(ctx, "/api/v5/market/books", params, &res); err != nil {
		return nil, err
	}
	if len(res) == 0 || len(res[0].Bids) == 0 || len(res[0].Asks) == 0 {
		return nil, exchanges.ErrNoQuote
	}

	return &exchanges.Quote{
		BestBid:    decIdx(res[0].Bids[0], 0),
		BestAsk:    decIdx(res[0].Asks[0], 0),
		ObservedAt: time.UnixMilli(parseInt64(res[0].Ts)),
	}, nil
}

func (c *client) wait(ctx context.Context, keys ...string) error {
	if c.cfg.Limiter == nil {
		return nil
	}
	return c.cfg.Limiter.Wait(ctx, keys...)
}

func (c *client) get(ctx context.Context, path string, params url.Values, target interface{}) error {
	body, err := c.do(ctx, http.MethodGet, path, params, nil, false)
	if err != nil {
		return err
	}
	return decodeEnvelope(body, target)
}

func (c *client) request(ctx context.Context, method, path string, params url.Values, payload interface{}, target interface{}) error {
	body, err := c.do(ctx, method, path, params, payload, true)
	if err != nil {
		return err
	}
	return decodeEnvelope(body, target)
}

func (c *client) do(ctx context.Context, method, path string, params url.Values, payload interface{}, signed bool) ([]byte, error) {
	var body io.Reader
	var bodyStr string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		bodyStr = string(raw)
		body = strings.NewReader(bodyStr)
	}

	requestPath := path
	if len(params) > 0 {
		requestPath += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+requestPath, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if signed {
		timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
		prehash := timestamp + strings.ToUpper(method) + requestPath + bodyStr

		req.Header.Set("OK-ACCESS-KEY", c.cfg.APIKey)
		req.Header.Set("OK-ACCESS-SIGN", sign(prehash, c.cfg.SecretKey))
		req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
		req.Header.Set("OK-ACCESS-PASSPHRASE", c.cfg.Passphrase)
		if c.cfg.Testnet {
			req.Header.Set("x-simulated-trading", "1")
		}
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
		return nil, fmt.Errorf("%w: okx http 429", exchanges.ErrRateLimited)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("okx http %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// apiError keeps the venue code so callers can tell a missing order apart
// from a transport failure.
type apiError struct {
	Code string
	Msg  string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("okx error %s: %s", e.Code, e.Msg)
}

func decodeEnvelope(body []byte, target interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return err
	}
	if env.Code != "0" {
		return &apiError{Code: env.Code, Msg: env.Msg}
	}
	if target == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, target)
}

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *client) baseURL() string {
	return productionBaseURL
}

func stateToOrderStatus(state string) exchanges.OrderStatus {
	switch state {
	case "live":
		return exchanges.OrderStatusOpen
	case "partially_filled":
		return exchanges.OrderStatusPartial
	case "filled":
		return exchanges.OrderStatusFilled
	case "canceled":
		return exchanges.OrderStatusCanceled
	default:
		return exchanges.OrderStatusUnknown
	}
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

func parseInt64(v string) int64 {
	i, _ := strconv.ParseInt(v, 10, 64)
	return i
}

func normalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.ReplaceAll(s, "/", "-")
	return s
}
