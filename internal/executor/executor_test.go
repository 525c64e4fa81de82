package executor

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/adapters/exchanges"
	"hermes/internal/domain/job"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

func init() {
	if err := logger.Init("error", "test"); err != nil {
		panic(err)
	}
}

// statusStep is one scripted response from the fake's status endpoint.
type statusStep struct {
	status exchanges.OrderStatus
	err    error
}

// fakeExchange scripts venue behavior for the executor. Status polls consume
// the script in order; the last step repeats once the script runs out.
type fakeExchange struct {
	name string

	statusScript []statusStep
	statusIdx    int

	placeErr     error
	cancelErr    error
	denyCancel   bool

	placeCalls  int
	cancelCalls int
	nextOrderID int
}

func (f *fakeExchange) Name() string { return f.name }

func (f *fakeExchange) FormatSymbol(base, quote string) string { return base + quote }

func (f *fakeExchange) InstrumentInfo(ctx context.Context, symbol string) (*exchanges.InstrumentInfo, error) {
	return &exchanges.InstrumentInfo{
		Symbol:        symbol,
		TickSize:      decimal.RequireFromString("0.1"),
		ContractValue: decimal.NewFromInt(1),
	}, nil
}

func (f *fakeExchange) Warmup(ctx context.Context, symbol string) error { return nil }

func (f *fakeExchange) PlaceOrder(ctx context.Context, symbol string, side exchanges.OrderSide, quantity decimal.Decimal, inst *exchanges.InstrumentInfo) (string, error) {
	f.placeCalls++
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.nextOrderID++
	return f.name + "-" + string(rune('0'+f.nextOrderID)), nil
}

func (f *fakeExchange) OrderStatus(ctx context.Context, orderID, symbol string) (exchanges.OrderStatus, error) {
	step := f.statusScript[f.statusIdx]
	if f.statusIdx < len(f.statusScript)-1 {
		f.statusIdx++
	}
	return step.status, step.err
}

func (f *fakeExchange) CancelOrder(ctx context.Context, orderID, symbol string) (*exchanges.CancelAck, error) {
	f.cancelCalls++
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &exchanges.CancelAck{OrderID: orderID, Status: exchanges.OrderStatusCanceled}, nil
}

func (f *fakeExchange) IsOrderCanceled(ack *exchanges.CancelAck) bool { return !f.denyCancel }

func (f *fakeExchange) Close() error { return nil }

type fakeStop struct {
	stopped bool
	cleared bool
}

func (s *fakeStop) IsStopRequested(ctx context.Context, jobID string) (bool, error) {
	return s.stopped, nil
}

func (s *fakeStop) ClearStop(ctx context.Context, jobID string) error {
	s.cleared = true
	s.stopped = false
	return nil
}

func testJob(quantity, tick string) *job.Job {
	return &job.Job{
		JobID:            "job-1",
		Symbol:           "BTC",
		LongExchange:     "binance",
		ShortExchange:    "bybit",
		MarketAssetLong:  "USDT",
		MarketAssetShort: "USDT",
		Quantity:         decimal.RequireFromString(quantity),
		TickQuantity:     decimal.RequireFromString(tick),
	}
}

func testConfig() Config {
	return Config{
		PollInterval:      time.Millisecond,
		RetryDelay:        time.Millisecond,
		PlacementAttempts: 10,
		ResolveAttempts:   2,
	}
}

func filled() statusStep { return statusStep{status: exchanges.OrderStatusFilled} }

func run(t *testing.T, j *job.Job, long, short *fakeExchange, stop StopSignal) (*job.Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return New(j, long, short, stop, testConfig()).Run(ctx)
}

func TestSingleSlotBothFilled(t *testing.T) {
	long := &fakeExchange{name: "binance", statusScript: []statusStep{filled()}}
	short := &fakeExchange{name: "bybit", statusScript: []statusStep{filled()}}

	res, err := run(t, testJob("0.02", "0.01"), long, short, &fakeStop{})
	require.NoError(t, err)

	assert.Equal(t, job.StatusCompleted, res.Status)
	assert.True(t, res.ProcessedQuantity.Equal(decimal.RequireFromString("0.02")),
		"processed %s", res.ProcessedQuantity)

	// Clean fills must not trigger any cancel traffic.
	assert.Equal(t, 1, long.placeCalls)
	assert.Equal(t, 1, short.placeCalls)
	assert.Equal(t, 0, long.cancelCalls)
	assert.Equal(t, 0, short.cancelCalls)
}

func TestPartialThresholdCancelsBothLegs(t *testing.T) {
	long := &fakeExchange{name: "binance", statusScript: []statusStep{
		{status: exchanges.OrderStatusPartial},
		{status: exchanges.OrderStatusPartial},
	}}
	short := &fakeExchange{name: "bybit", statusScript: []statusStep{
		{status: exchanges.OrderStatusOpen},
	}}

	res, err := run(t, testJob("0.02", "0.01"), long, short, &fakeStop{})
	require.NoError(t, err)

	// The slot is still credited after a forced cancel.
	assert.Equal(t, job.StatusCompleted, res.Status)
	assert.True(t, res.ProcessedQuantity.Equal(decimal.RequireFromString("0.02")))
	assert.Equal(t, 1, long.cancelCalls)
	assert.Equal(t, 1, short.cancelCalls)
}

func TestCanceledLegReplacedWhenOtherFilled(t *testing.T) {
	long := &fakeExchange{name: "binance", statusScript: []statusStep{
		{status: exchanges.OrderStatusCanceled},
		filled(),
	}}
	short := &fakeExchange{name: "bybit", statusScript: []statusStep{filled()}}

	res, err := run(t, testJob("0.02", "0.01"), long, short, &fakeStop{})
	require.NoError(t, err)

	assert.Equal(t, job.StatusCompleted, res.Status)
	// Initial order plus exactly one replacement.
	assert.Equal(t, 2, long.placeCalls)
	assert.Equal(t, 1, short.placeCalls)
	assert.Equal(t, 0, long.cancelCalls)
}

func TestActiveLegCanceledAndReplacedWhenOtherFilled(t *testing.T) {
	long := &fakeExchange{name: "binance", statusScript: []statusStep{
		{status: exchanges.OrderStatusOpen},
		filled(),
	}}
	short := &fakeExchange{name: "bybit", statusScript: []statusStep{filled()}}

	res, err := run(t, testJob("0.02", "0.01"), long, short, &fakeStop{})
	require.NoError(t, err)

	assert.Equal(t, job.StatusCompleted, res.Status)
	assert.Equal(t, 1, long.cancelCalls)
	assert.Equal(t, 2, long.placeCalls)
}

func TestUnconfirmedCancelIsNotReplaced(t *testing.T) {
	// The cancel ack never confirms, then the leg turns out filled: the
	// executor must not have double-placed in between.
	long := &fakeExchange{name: "binance", denyCancel: true, statusScript: []statusStep{
		{status: exchanges.OrderStatusOpen},
		filled(),
	}}
	short := &fakeExchange{name: "bybit", statusScript: []statusStep{filled()}}

	res, err := run(t, testJob("0.02", "0.01"), long, short, &fakeStop{})
	require.NoError(t, err)

	assert.Equal(t, job.StatusCompleted, res.Status)
	assert.Equal(t, 1, long.placeCalls)
}

func TestAbandonedSlotIsRetriedUntilCredited(t *testing.T) {
	// First slot dies with both legs canceled and nothing credited; the
	// same slot must run again so COMPLETED carries the full target.
	long := &fakeExchange{name: "binance", statusScript: []statusStep{
		{status: exchanges.OrderStatusOpen},
		{status: exchanges.OrderStatusCanceled},
		filled(),
	}}
	short := &fakeExchange{name: "bybit", statusScript: []statusStep{
		{status: exchanges.OrderStatusNew},
		{status: exchanges.OrderStatusCanceled},
		filled(),
	}}

	res, err := run(t, testJob("0.02", "0.01"), long, short, &fakeStop{})
	require.NoError(t, err)

	assert.Equal(t, job.StatusCompleted, res.Status)
	assert.True(t, res.ProcessedQuantity.Equal(decimal.RequireFromString("0.02")),
		"processed %s", res.ProcessedQuantity)
	assert.Equal(t, 2, long.placeCalls)
	assert.Equal(t, 2, short.placeCalls)
	assert.Equal(t, 1, long.cancelCalls)
	assert.Equal(t, 1, short.cancelCalls)
}

func TestFailedCancelNotCounted(t *testing.T) {
	// A cancel request that errors out never reached the venue, so it must
	// not show up in the cancel counter.
	long := &fakeExchange{name: "binance", cancelErr: errors.New("venue down"),
		statusScript: []statusStep{
			{status: exchanges.OrderStatusOpen},
			filled(),
		}}
	short := &fakeExchange{name: "bybit", statusScript: []statusStep{
		{status: exchanges.OrderStatusOpen},
		filled(),
	}}

	longBefore := testutil.ToFloat64(metrics.OrdersCanceled.WithLabelValues("binance"))
	shortBefore := testutil.ToFloat64(metrics.OrdersCanceled.WithLabelValues("bybit"))

	res, err := run(t, testJob("0.02", "0.01"), long, short, &fakeStop{})
	require.NoError(t, err)

	assert.Equal(t, job.StatusCompleted, res.Status)
	assert.Equal(t, 1, long.cancelCalls)
	assert.Equal(t, 1, short.cancelCalls)

	assert.Equal(t, float64(0),
		testutil.ToFloat64(metrics.OrdersCanceled.WithLabelValues("binance"))-longBefore)
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.OrdersCanceled.WithLabelValues("bybit"))-shortBefore)
}

func TestPollErrorKeepsLastStatus(t *testing.T) {
	long := &fakeExchange{name: "binance", statusScript: []statusStep{
		{err: errors.New("venue down")},
		filled(),
	}}
	short := &fakeExchange{name: "bybit", statusScript: []statusStep{filled()}}

	res, err := run(t, testJob("0.02", "0.01"), long, short, &fakeStop{})
	require.NoError(t, err)

	assert.Equal(t, job.StatusCompleted, res.Status)
	assert.Equal(t, 1, long.placeCalls)
	assert.Equal(t, 0, long.cancelCalls)
}

func TestPlacementRetriesExhausted(t *testing.T) {
	long := &fakeExchange{name: "binance", placeErr: errors.New("rejected"),
		statusScript: []statusStep{filled()}}
	short := &fakeExchange{name: "bybit", statusScript: []statusStep{filled()}}

	res, err := run(t, testJob("0.02", "0.01"), long, short, &fakeStop{})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrPlacementExhausted))

	assert.Equal(t, job.StatusFailed, res.Status)
	assert.Equal(t, 10, long.placeCalls)
	assert.Equal(t, 0, short.placeCalls)
}

func TestStopSignalBeforeFirstSlot(t *testing.T) {
	long := &fakeExchange{name: "binance", statusScript: []statusStep{filled()}}
	short := &fakeExchange{name: "bybit", statusScript: []statusStep{filled()}}
	stop := &fakeStop{stopped: true}

	res, err := run(t, testJob("0.02", "0.01"), long, short, stop)
	require.NoError(t, err)

	assert.Equal(t, job.StatusStopped, res.Status)
	assert.True(t, res.ProcessedQuantity.IsZero())
	assert.True(t, stop.cleared)
	assert.Equal(t, 0, long.placeCalls)
	assert.Equal(t, 0, short.placeCalls)
}

func TestMultipleSlotsAccumulateQuantity(t *testing.T) {
	long := &fakeExchange{name: "binance", statusScript: []statusStep{filled()}}
	short := &fakeExchange{name: "bybit", statusScript: []statusStep{filled()}}

	res, err := run(t, testJob("0.1", "0.01"), long, short, &fakeStop{})
	require.NoError(t, err)

	assert.Equal(t, job.StatusCompleted, res.Status)
	assert.True(t, res.ProcessedQuantity.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, 5, long.placeCalls)
	assert.Equal(t, 5, short.placeCalls)
}
