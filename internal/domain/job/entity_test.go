package job

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/pkg/errors"
)

func validJob() *Job {
	return &Job{
		JobID:            "job-1",
		Symbol:           "ARB",
		LongExchange:     "binance",
		ShortExchange:    "bybit",
		MarketAssetLong:  "USDT",
		MarketAssetShort: "USDT",
		Quantity:         decimal.RequireFromString("0.02"),
		TickQuantity:     decimal.RequireFromString("0.01"),
	}
}

func TestJobValidate(t *testing.T) {
	require.NoError(t, validJob().Validate())

	tests := []struct {
		name   string
		mutate func(*Job)
		field  string
	}{
		{"missing job id", func(j *Job) { j.JobID = "" }, "job_id"},
		{"missing symbol", func(j *Job) { j.Symbol = "" }, "symbol"},
		{"missing long exchange", func(j *Job) { j.LongExchange = "" }, "long_exchange"},
		{"missing short exchange", func(j *Job) { j.ShortExchange = "" }, "short_exchange"},
		{"same exchange both legs", func(j *Job) { j.ShortExchange = "binance" }, "short_exchange"},
		{"zero quantity", func(j *Job) { j.Quantity = decimal.Zero }, "quantity"},
		{"zero tick quantity", func(j *Job) { j.TickQuantity = decimal.Zero }, "tick_quantity"},
		{"tick too large", func(j *Job) { j.TickQuantity = decimal.RequireFromString("0.02") }, "tick_quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := validJob()
			tt.mutate(j)

			err := j.Validate()
			require.Error(t, err)

			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestJobSlots(t *testing.T) {
	j := validJob()
	assert.Equal(t, int64(1), j.Slots())

	j.Quantity = decimal.RequireFromString("0.1")
	assert.Equal(t, int64(5), j.Slots())

	// Division is plain decimal division; a quantity that is not a whole
	// multiple of a slot truncates down.
	j.Quantity = decimal.RequireFromString("0.05")
	assert.Equal(t, int64(2), j.Slots())
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusActive.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusStopped.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}
