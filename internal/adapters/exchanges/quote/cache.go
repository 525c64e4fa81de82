package quote

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"hermes/internal/adapters/exchanges"
	"hermes/pkg/errors"
)

// FetchFunc loads a fresh top-of-book snapshot over REST.
type FetchFunc func(ctx context.Context) (*exchanges.Quote, error)

// Cache holds the latest top-of-book snapshot for one symbol. Reads within
// the freshness window are served from memory; stale reads fall through to
// the fetch func. Writers replace the snapshot atomically, last write wins.
type Cache struct {
	maxAge   time.Duration
	fetch    FetchFunc
	snapshot atomic.Pointer[exchanges.Quote]

	now func() time.Time
}

// NewCache creates a cache with the given freshness window.
func NewCache(maxAge time.Duration, fetch FetchFunc) *Cache {
	return &Cache{
		maxAge: maxAge,
		fetch:  fetch,
		now:    time.Now,
	}
}

// Best returns the current top of book, refreshing over REST when the cached
// snapshot is older than the freshness window.
func (c *Cache) Best(ctx context.Context) (exchanges.Quote, error) {
	if q := c.snapshot.Load(); q != nil && c.now().Sub(q.ObservedAt) <= c.maxAge {
		return *q, nil
	}

	if c.fetch == nil {
		return exchanges.Quote{}, exchanges.ErrNoQuote
	}

	q, err := c.fetch(ctx)
	if err != nil {
		return exchanges.Quote{}, errors.Wrap(err, "refresh top of book")
	}
	if q.ObservedAt.IsZero() {
		q.ObservedAt = c.now()
	}

	c.snapshot.Store(q)
	return *q, nil
}

// Update merges a push delta into the snapshot. A zero side keeps the
// previous value; the merged snapshot replaces the old one in a single
// atomic store.
func (c *Cache) Update(bestBid, bestAsk decimal.Decimal, at time.Time) {
	next := exchanges.Quote{
		BestBid:    bestBid,
		BestAsk:    bestAsk,
		ObservedAt: at,
	}
	if at.IsZero() {
		next.ObservedAt = c.now()
	}

	if prev := c.snapshot.Load(); prev != nil {
		if next.BestBid.IsZero() {
			next.BestBid = prev.BestBid
		}
		if next.BestAsk.IsZero() {
			next.BestAsk = prev.BestAsk
		}
	}

	c.snapshot.Store(&next)
}

// Peek returns the cached snapshot without freshness checks or refresh,
// or false when nothing has been observed yet.
func (c *Cache) Peek() (exchanges.Quote, bool) {
	q := c.snapshot.Load()
	if q == nil {
		return exchanges.Quote{}, false
	}
	return *q, true
}
