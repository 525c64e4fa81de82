package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobSubmittedEvent is the payload consumed from the jobs topic.
type JobSubmittedEvent struct {
	JobID            string          `json:"job_id"`
	Symbol           string          `json:"symbol"`
	LongExchange     string          `json:"long_exchange"`
	ShortExchange    string          `json:"short_exchange"`
	MarketAssetLong  string          `json:"market_asset_long"`
	MarketAssetShort string          `json:"market_asset_short"`
	LongSubAccount   string          `json:"long_sub_account"`
	ShortSubAccount  string          `json:"short_sub_account"`
	LongEntity       string          `json:"long_entity,omitempty"`
	ShortEntity      string          `json:"short_entity,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	TickQuantity     decimal.Decimal `json:"tick_quantity"`
}

// JobCompletedEvent is published when a job reaches a terminal status.
type JobCompletedEvent struct {
	JobID             string          `json:"job_id"`
	Symbol            string          `json:"symbol"`
	LongExchange      string          `json:"long_exchange"`
	ShortExchange     string          `json:"short_exchange"`
	Status            string          `json:"status"`
	ProcessedQuantity decimal.Decimal `json:"processed_quantity"`
	Error             string          `json:"error,omitempty"`
	Duration          time.Duration   `json:"duration"`
	FinishedAt        time.Time       `json:"finished_at"`
}
