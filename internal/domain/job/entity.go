package job

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/pkg/errors"
)

// Job describes a dual-leg arbitrage execution request: a long leg on one
// venue and a short leg on another, worked in fixed-size slots until the
// target quantity is reached.
type Job struct {
	ID    uuid.UUID `db:"id" json:"id"`
	JobID string    `db:"job_id" json:"job_id"`

	Symbol string `db:"symbol" json:"symbol"`

	LongExchange  string `db:"long_exchange" json:"long_exchange"`
	ShortExchange string `db:"short_exchange" json:"short_exchange"`

	// Per-leg quote assets. A leg may trade against USDT on one venue and
	// USDC on another for the same base asset.
	MarketAssetLong  string `db:"market_asset_long" json:"market_asset_long"`
	MarketAssetShort string `db:"market_asset_short" json:"market_asset_short"`

	LongSubAccount  string `db:"long_sub_account" json:"long_sub_account"`
	ShortSubAccount string `db:"short_sub_account" json:"short_sub_account"`

	LongEntity  string `db:"long_entity" json:"long_entity"`
	ShortEntity string `db:"short_entity" json:"short_entity"`

	// Quantity is the total base quantity to accumulate across both legs.
	// TickQuantity is the per-leg size of a single slot.
	Quantity     decimal.Decimal `db:"quantity" json:"quantity"`
	TickQuantity decimal.Decimal `db:"tick_quantity" json:"tick_quantity"`

	Status Status `db:"status" json:"status"`

	// ProcessedQuantity is the quantity credited by finished slots.
	ProcessedQuantity decimal.Decimal `db:"processed_quantity" json:"processed_quantity"`

	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// Validate checks that the job is executable.
func (j *Job) Validate() error {
	if j.JobID == "" {
		return errors.NewValidationError("job_id", "is required", j.JobID)
	}
	if j.Symbol == "" {
		return errors.NewValidationError("symbol", "is required", j.Symbol)
	}
	if j.LongExchange == "" {
		return errors.NewValidationError("long_exchange", "is required", j.LongExchange)
	}
	if j.ShortExchange == "" {
		return errors.NewValidationError("short_exchange", "is required", j.ShortExchange)
	}
	if j.LongExchange == j.ShortExchange {
		return errors.NewValidationError("short_exchange", "must differ from long_exchange", j.ShortExchange)
	}
	if !j.Quantity.IsPositive() {
		return errors.NewValidationError("quantity", "must be positive", j.Quantity)
	}
	if !j.TickQuantity.IsPositive() {
		return errors.NewValidationError("tick_quantity", "must be positive", j.TickQuantity)
	}
	if j.TickQuantity.Mul(decimal.NewFromInt(2)).GreaterThan(j.Quantity) {
		return errors.NewValidationError("tick_quantity", "too large for quantity", j.TickQuantity)
	}
	return nil
}

// Slots returns how many dual-leg slots the job breaks into.
func (j *Job) Slots() int64 {
	return j.Quantity.Div(j.TickQuantity.Mul(decimal.NewFromInt(2))).IntPart()
}

// Status defines the job lifecycle status
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusStopped   Status = "STOPPED"
	StatusFailed    Status = "FAILED"
)

// Valid checks if job status is valid
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusStopped, StatusFailed:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the job is in a terminal state
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusStopped, StatusFailed:
		return true
	}
	return false
}

// Result is the outcome of a job run.
type Result struct {
	Status            Status          `json:"status"`
	ProcessedQuantity decimal.Decimal `json:"processed_quantity"`
}
