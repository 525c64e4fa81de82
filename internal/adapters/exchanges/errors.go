package exchanges

import "errors"

var (
	// ErrInvalidRequest indicates validation failures before hitting exchange API.
	ErrInvalidRequest = errors.New("invalid exchange request")

	// ErrRateLimited indicates HTTP 429 or throttling.
	ErrRateLimited = errors.New("exchange rate limited the request")

	// ErrInstrumentNotFound indicates the venue does not list the symbol.
	ErrInstrumentNotFound = errors.New("instrument not found")

	// ErrNoQuote indicates no usable top-of-book snapshot is available.
	ErrNoQuote = errors.New("no top-of-book quote available")
)
