package exchanges

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide defines buy or sell direction.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// String returns string representation
func (s OrderSide) String() string {
	return string(s)
}

// OrderStatus enumerates exchange level order lifecycle.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "new"
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusPartial  OrderStatus = "partial"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusExpired  OrderStatus = "expired"
	OrderStatusUnknown  OrderStatus = "unknown"
)

// String returns string representation
func (s OrderStatus) String() string {
	return string(s)
}

// IsActive reports whether the order is resting on the book and can still fill.
func (s OrderStatus) IsActive() bool {
	return s == OrderStatusNew || s == OrderStatusOpen
}

// IsCanceled reports whether the order left the book without filling completely.
func (s OrderStatus) IsCanceled() bool {
	return s == OrderStatusCanceled || s == OrderStatusExpired
}

// InstrumentInfo holds the per-symbol metadata an adapter needs to quote
// and size orders. ContractValue is 1 for venues that quote in base units.
type InstrumentInfo struct {
	Symbol        string
	TickSize      decimal.Decimal
	ContractValue decimal.Decimal
}

// CancelAck carries a venue's raw cancel acknowledgement. Each adapter reads
// back its own fields via IsOrderCanceled.
type CancelAck struct {
	OrderID string
	Status  OrderStatus
	Code    string
	Codes   []string
}

// Credentials holds API authentication material for one venue account.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// Quote is a top-of-book snapshot.
type Quote struct {
	BestBid    decimal.Decimal
	BestAsk    decimal.Decimal
	ObservedAt time.Time
}

// RoundToTick snaps a price to the nearest multiple of the venue tick size.
// A zero tick returns the price unchanged.
func RoundToTick(price, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return price
	}
	return price.DivRound(tick, 0).Mul(tick)
}
