package quote

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/adapters/exchanges"
)

func TestCacheServesFreshSnapshotWithoutFetch(t *testing.T) {
	fetches := 0
	cache := NewCache(5*time.Second, func(ctx context.Context) (*exchanges.Quote, error) {
		fetches++
		return &exchanges.Quote{
			BestBid: decimal.NewFromFloat(100.1),
			BestAsk: decimal.NewFromFloat(100.2),
		}, nil
	})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	cache.Update(decimal.NewFromFloat(99.9), decimal.NewFromFloat(100.0), base)

	// 4999ms old snapshot is still within the window
	cache.now = func() time.Time { return base.Add(4999 * time.Millisecond) }

	q, err := cache.Best(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fetches)
	assert.True(t, q.BestBid.Equal(decimal.NewFromFloat(99.9)))
	assert.True(t, q.BestAsk.Equal(decimal.NewFromFloat(100.0)))
}

func TestCacheRefreshesStaleSnapshot(t *testing.T) {
	fetches := 0
	cache := NewCache(5*time.Second, func(ctx context.Context) (*exchanges.Quote, error) {
		fetches++
		return &exchanges.Quote{
			BestBid: decimal.NewFromFloat(100.1),
			BestAsk: decimal.NewFromFloat(100.2),
		}, nil
	})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	cache.Update(decimal.NewFromFloat(99.9), decimal.NewFromFloat(100.0), base)

	// 5001ms old snapshot must trigger a refresh
	cache.now = func() time.Time { return base.Add(5001 * time.Millisecond) }

	q, err := cache.Best(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
	assert.True(t, q.BestBid.Equal(decimal.NewFromFloat(100.1)))
	assert.True(t, q.BestAsk.Equal(decimal.NewFromFloat(100.2)))

	// Refreshed snapshot is stored and served on the next read
	q, err = cache.Best(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
	assert.True(t, q.BestAsk.Equal(decimal.NewFromFloat(100.2)))
}

func TestCacheEmptyWithoutFetcher(t *testing.T) {
	cache := NewCache(5*time.Second, nil)

	_, err := cache.Best(context.Background())
	assert.ErrorIs(t, err, exchanges.ErrNoQuote)

	_, ok := cache.Peek()
	assert.False(t, ok)
}

func TestCacheUpdateMergesDeltas(t *testing.T) {
	cache := NewCache(5*time.Second, nil)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.Update(decimal.NewFromFloat(99.9), decimal.NewFromFloat(100.0), base)

	// Delta with only a bid keeps the previous ask
	cache.Update(decimal.NewFromFloat(99.95), decimal.Decimal{}, base.Add(time.Second))

	q, ok := cache.Peek()
	require.True(t, ok)
	assert.True(t, q.BestBid.Equal(decimal.NewFromFloat(99.95)))
	assert.True(t, q.BestAsk.Equal(decimal.NewFromFloat(100.0)))
	assert.Equal(t, base.Add(time.Second), q.ObservedAt)
}
