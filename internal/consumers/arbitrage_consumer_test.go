package consumers

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/adapters/config"
	"hermes/internal/events"
	"hermes/internal/executor"
	"hermes/pkg/logger"
)

func testArbitrageConfig() config.ArbitrageConfig {
	return config.ArbitrageConfig{
		ParallelJobs:      2,
		PollInterval:      time.Millisecond,
		RetryDelay:        time.Millisecond,
		PlacementAttempts: 3,
		ResolveAttempts:   2,
	}
}

func init() {
	if err := logger.Init("error", "test"); err != nil {
		panic(err)
	}
}

func TestDecodeJob(t *testing.T) {
	ac := NewArbitrageConsumer(nil, nil, executor.StopSignal(nil), nil, nil,
		testArbitrageConfig(), logger.Get())

	msg := kafkago.Message{Value: []byte(`{
		"job_id": "job-42",
		"symbol": "BTC",
		"long_exchange": "binance",
		"short_exchange": "okx",
		"market_asset_long": "USDT",
		"market_asset_short": "USDT",
		"long_sub_account": "sub-a",
		"short_sub_account": "sub-b",
		"quantity": "0.1",
		"tick_quantity": "0.01"
	}`)}

	j, err := ac.decodeJob(msg)
	require.NoError(t, err)

	assert.Equal(t, "job-42", j.JobID)
	assert.Equal(t, "binance", j.LongExchange)
	assert.Equal(t, "okx", j.ShortExchange)
	assert.True(t, j.Quantity.Equal(decimal.RequireFromString("0.1")))
	assert.NotEqual(t, "", j.ID.String())
}

func TestDecodeJobRejectsInvalid(t *testing.T) {
	ac := NewArbitrageConsumer(nil, nil, executor.StopSignal(nil), nil, nil,
		testArbitrageConfig(), logger.Get())

	_, err := ac.decodeJob(kafkago.Message{Value: []byte(`not json`)})
	require.Error(t, err)

	// Same venue on both legs is not an arbitrage job.
	_, err = ac.decodeJob(kafkago.Message{Value: []byte(`{
		"job_id": "job-43",
		"symbol": "BTC",
		"long_exchange": "binance",
		"short_exchange": "binance",
		"quantity": "0.1",
		"tick_quantity": "0.01"
	}`)})
	require.Error(t, err)
}

func TestFormatJobCompleted(t *testing.T) {
	text := formatJobCompleted(&events.JobCompletedEvent{
		JobID:             "job-42",
		Symbol:            "BTC",
		LongExchange:      "binance",
		ShortExchange:     "okx",
		Status:            "FAILED",
		ProcessedQuantity: decimal.RequireFromString("0.04"),
		Error:             "all 10 attempts failed",
		Duration:          91 * time.Second,
	})

	assert.Contains(t, text, "job-42")
	assert.Contains(t, text, "FAILED")
	assert.Contains(t, text, "0.04")
	assert.Contains(t, text, "all 10 attempts failed")
}
