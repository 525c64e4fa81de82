package exchanges

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		price string
		tick  string
		want  string
	}{
		{"100.123", "0.01", "100.12"},
		{"100.125", "0.01", "100.13"},
		{"100.123", "0.5", "100"},
		{"100.26", "0.5", "100.5"},
		{"42000.7", "1", "42001"},
		{"0.000123456", "0.0000001", "0.0001235"},
	}

	for _, tt := range tests {
		got := RoundToTick(decimal.RequireFromString(tt.price), decimal.RequireFromString(tt.tick))
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
			"RoundToTick(%s, %s) = %s, want %s", tt.price, tt.tick, got, tt.want)
	}
}

func TestRoundToTickIdempotent(t *testing.T) {
	for _, tick := range []string{"0.01", "0.5", "1", "0.0000001"} {
		tickDec := decimal.RequireFromString(tick)
		once := RoundToTick(decimal.RequireFromString("1234.56789"), tickDec)
		twice := RoundToTick(once, tickDec)
		assert.True(t, once.Equal(twice), "tick %s: %s != %s", tick, once, twice)
	}
}

func TestRoundToTickZeroTick(t *testing.T) {
	price := decimal.RequireFromString("100.123")
	assert.True(t, RoundToTick(price, decimal.Zero).Equal(price))
}

func TestOrderSideString(t *testing.T) {
	assert.Equal(t, "buy", OrderSideBuy.String())
	assert.Equal(t, "sell", OrderSideSell.String())
	assert.Equal(t, "canceled", OrderStatusCanceled.String())
}

func TestOrderStatusClassification(t *testing.T) {
	assert.True(t, OrderStatusNew.IsActive())
	assert.True(t, OrderStatusOpen.IsActive())
	assert.False(t, OrderStatusFilled.IsActive())
	assert.False(t, OrderStatusPartial.IsActive())

	assert.True(t, OrderStatusCanceled.IsCanceled())
	assert.True(t, OrderStatusExpired.IsCanceled())
	assert.False(t, OrderStatusOpen.IsCanceled())
	assert.False(t, OrderStatusUnknown.IsCanceled())
}
