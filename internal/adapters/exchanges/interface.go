package exchanges

import (
	"context"

	"github.com/shopspring/decimal"
)

// Exchange defines the unified contract each exchange adapter must satisfy.
// The execution loop dispatches through this interface only and never
// branches on venue identity.
type Exchange interface {
	Name() string

	// FormatSymbol builds the venue symbol from base and quote assets.
	FormatSymbol(base, quote string) string

	// InstrumentInfo resolves tick size and contract value for a symbol.
	// Called once per job before the first order is placed.
	InstrumentInfo(ctx context.Context, symbol string) (*InstrumentInfo, error)

	// Warmup readies venue market data for the symbol (e.g. connects a
	// book feed). Venues without a push feed return nil.
	Warmup(ctx context.Context, symbol string) error

	// PlaceOrder submits a maker (post-only) order and returns the venue
	// order handle. Any error means the order was not placed.
	PlaceOrder(ctx context.Context, symbol string, side OrderSide, quantity decimal.Decimal, inst *InstrumentInfo) (string, error)

	// OrderStatus fetches the normalized order state. A venue "not found"
	// yields (OrderStatusUnknown, nil).
	OrderStatus(ctx context.Context, orderID, symbol string) (OrderStatus, error)

	// CancelOrder requests cancellation and returns the venue acknowledgement.
	CancelOrder(ctx context.Context, orderID, symbol string) (*CancelAck, error)

	// IsOrderCanceled interprets a cancel acknowledgement per venue rules.
	IsOrderCanceled(ack *CancelAck) bool

	// Close releases any live market data connections.
	Close() error
}
