package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/internal/adapters/exchanges"
	"hermes/internal/adapters/exchanges/ratelimit"
)

const (
	futuresBaseURL      = "https://fapi.binance.com"
	futuresTestnetURL   = "https://testnet.binancefuture.com"
	defaultRecvWindowMs = 5000
	defaultHTTPTimeout  = 10 * time.Second
)

// Config configures the Binance USD-M futures client.
type Config struct {
	APIKey    string
	SecretKey string
	Testnet   bool

	HTTPClient *http.Client
	RecvWindow time.Duration
	Limiter    *ratelimit.MultiLimiter
}

// NewClient creates a new Binance adapter.
func NewClient(cfg Config) (exchanges.Exchange, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("binance api key and secret required")
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = defaultRecvWindowMs * time.Millisecond
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &client{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

type client struct {
	cfg        Config
	httpClient *http.Client
}

func (c *client) Name() string {
	return "binance"
}

func (c *client) FormatSymbol(base, quote string) string {
	return normalizeSymbol(base + quote)
}

// InstrumentInfo is static for Binance: quantities are in base units and the
// venue prices queue orders server side, so no tick size is needed.
func (c *client) InstrumentInfo(ctx context.Context, symbol string) (*exchanges.InstrumentInfo, error) {
	return &exchanges.InstrumentInfo{
		Symbol:        normalizeSymbol(symbol),
		TickSize:      decimal.Zero,
		ContractValue: decimal.NewFromInt(1),
	}, nil
}

func (c *client) Warmup(ctx context.Context, symbol string) error {
	return nil
}

func (c *client) Close() error {
	return nil
}

// PlaceOrder submits a GTC limit order with priceMatch=QUEUE, letting the
// venue pin the order to the top of the book on our side.
func (c *client) PlaceOrder(ctx context.Context, symbol string, side exchanges.OrderSide, quantity decimal.Decimal, inst *exchanges.InstrumentInfo) (string, error) {
	if quantity.IsZero() {
		return "", exchanges.ErrInvalidRequest
	}

	clientOrderID := "x-" + uuid.NewString()

	params := url.Values{
		"symbol":           []string{normalizeSymbol(symbol)},
		"side":             []string{strings.ToUpper(string(side))},
		"type":             []string{"LIMIT"},
		"timeInForce":      []string{"GTC"},
		"priceMatch":       []string{"QUEUE"},
		"quantity":         []string{quantity.String()},
		"newClientOrderId": []string{clientOrderID},
	}

	if err := c.wait(ctx, "order"); err != nil {
		return "", err
	}

	data, err := c.signed(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return "", err
	}

	var res struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Status        string `json:"status"`
	}

	if err := json.Unmarshal(data, &res); err != nil {
		return "", err
	}
	if res.OrderID == 0 {
		return "", fmt.Errorf("binance order response missing orderId")
	}

	// Orders are addressed by client order id in later status and
	// cancel calls.
	return res.ClientOrderID, nil
}

func (c *client) OrderStatus(ctx context.Context, orderID, symbol string) (exchanges.OrderStatus, error) {
	params := url.Values{
		"symbol":            []string{normalizeSymbol(symbol)},
		"origClientOrderId": []string{orderID},
	}

	if err := c.wait(ctx, "global"); err != nil {
		return exchanges.OrderStatusUnknown, err
	}

	data, err := c.signed(ctx, http.MethodGet, "/fapi/v1/order", params)
	if err != nil {
		if isOrderNotFound(err) {
			return exchanges.OrderStatusUnknown, nil
		}
		return exchanges.OrderStatusUnknown, err
	}

	var res struct {
		Status string `json:"status"`
	}

	if err := json.Unmarshal(data, &res); err != nil {
		return exchanges.OrderStatusUnknown, err
	}

	return orderStatusFromString(res.Status), nil
}

func (c *client) CancelOrder(ctx context.Context, orderID, symbol string) (*exchanges.CancelAck, error) {
	params := url.Values{
		"symbol":            []string{normalizeSymbol(symbol)},
		"origClientOrderId": []string{orderID},
	}

	if err := c.wait(ctx, "order"); err != nil {
		return nil, err
	}

	data, err := c.signed(ctx, http.MethodDelete, "/fapi/v1/order", params)
	if err != nil {
		return nil, err
	}

	var res struct {
		ClientOrderID string `json:"clientOrderId"`
		Status        string `json:"status"`
	}

	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}

	return &exchanges.CancelAck{
		OrderID: res.ClientOrderID,
		Status:  orderStatusFromString(res.Status),
	}, nil
}

// IsOrderCanceled: Binance echoes the final order status in the cancel
// acknowledgement.
func (c *client) IsOrderCanceled(ack *exchanges.CancelAck) bool {
	return ack != nil && ack.Status == exchanges.OrderStatusCanceled
}

func (c *client) wait(ctx context.Context, keys ...string) error {
	if c.cfg.Limiter == nil {
		return nil
	}
	return c.cfg.Limiter.Wait(ctx, keys...)
}

func (c *client) signed(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	return c.doRequest(ctx, method, path, params, true)
}

func (c *client) doRequest(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}

	var body io.Reader
	query := params.Encode()

	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow.Milliseconds(), 10))
		signature := c.sign(params.Encode())
		params.Set("signature", signature)
		query = params.Encode()
	}

	reqURL := c.baseURL() + path

	switch method {
	case http.MethodGet, http.MethodDelete:
		if query != "" {
			reqURL = reqURL + "?" + query
		}
	default:
		body = strings.NewReader(query)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}

	if signed {
		req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, payload)
	}

	return payload, nil
}

func (c *client) baseURL() string {
	if c.cfg.Testnet {
		return futuresTestnetURL
	}
	return futuresBaseURL
}

func (c *client) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	_, _ = mac.Write([]byte(payload))
	return fmt.Sprintf("%x", mac.Sum(nil))
}

// apiError preserves the venue error code for callers that need to tell a
// missing order apart from a transport failure.
type apiError struct {
	HTTPStatus int
	Code       int
	Msg        string
}

func (e *apiError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("binance error %d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("binance http %d: %s", e.HTTPStatus, e.Msg)
}

func parseAPIError(status int, payload []byte) error {
	var apiErr struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Code != 0 {
		if apiErr.Code == -1003 {
			return fmt.Errorf("%w: %s", exchanges.ErrRateLimited, apiErr.Msg)
		}
		return &apiError{HTTPStatus: status, Code: apiErr.Code, Msg: apiErr.Msg}
	}
	return &apiError{HTTPStatus: status, Msg: string(payload)}
}

// -2013 is Binance "Order does not exist".
func isOrderNotFound(err error) bool {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.Code == -2013
	}
	return false
}

func orderStatusFromString(s string) exchanges.OrderStatus {
	switch strings.ToUpper(s) {
	case "NEW":
		return exchanges.OrderStatusNew
	case "PARTIALLY_FILLED":
		return exchanges.OrderStatusPartial
	case "FILLED":
		return exchanges.OrderStatusFilled
	case "CANCELED":
		return exchanges.OrderStatusCanceled
	case "REJECTED":
		return exchanges.OrderStatusRejected
	case "EXPIRED":
		return exchanges.OrderStatusExpired
	default:
		return exchanges.OrderStatusUnknown
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}
