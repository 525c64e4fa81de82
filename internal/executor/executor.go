package executor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"hermes/internal/adapters/exchanges"
	"hermes/internal/adapters/exchanges/retry"
	"hermes/internal/domain/job"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// StopSignal is the external kill switch checked between slots.
type StopSignal interface {
	IsStopRequested(ctx context.Context, jobID string) (bool, error)
	ClearStop(ctx context.Context, jobID string) error
}

// Config holds execution timing and retry budgets.
type Config struct {
	PollInterval      time.Duration
	RetryDelay        time.Duration
	PlacementAttempts int
	ResolveAttempts   int
}

// DefaultConfig returns production execution settings
func DefaultConfig() Config {
	return Config{
		PollInterval:      2 * time.Second,
		RetryDelay:        2 * time.Second,
		PlacementAttempts: 10,
		ResolveAttempts:   5,
	}
}

type slotOutcome int

const (
	slotFilled slotOutcome = iota
	slotForcedCancel
	slotAbandoned
)

// partialThreshold is the number of consecutive PARTIAL polls on a single
// leg that forces both legs to be canceled and the slot counted.
const partialThreshold = 2

// leg tracks one side of a slot on one venue.
type leg struct {
	exchange exchanges.Exchange
	symbol   string
	side     exchanges.OrderSide
	inst     *exchanges.InstrumentInfo

	orderID  string
	status   exchanges.OrderStatus
	partials int
}

func (l *leg) filled() bool {
	return l.status == exchanges.OrderStatusFilled
}

func (l *leg) active() bool {
	return l.status.IsActive()
}

func (l *leg) canceled() bool {
	return l.status.IsCanceled() || l.status == exchanges.OrderStatusRejected
}

// OrderExecutor works a job as a sequence of dual-leg slots: each slot
// places a maker buy on the long venue and a maker sell on the short venue
// for the tick quantity, then polls both until the pair reaches a terminal
// joint state.
type OrderExecutor struct {
	job  *job.Job
	long exchanges.Exchange
	shrt exchanges.Exchange
	stop StopSignal
	cfg  Config
	log  *logger.Logger
}

// New creates an executor for a single job run. The two exchange adapters
// are owned by the caller and must not be shared with other jobs.
func New(j *job.Job, long, short exchanges.Exchange, stop StopSignal, cfg Config) *OrderExecutor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultConfig().RetryDelay
	}
	if cfg.PlacementAttempts <= 0 {
		cfg.PlacementAttempts = DefaultConfig().PlacementAttempts
	}
	if cfg.ResolveAttempts <= 0 {
		cfg.ResolveAttempts = DefaultConfig().ResolveAttempts
	}

	return &OrderExecutor{
		job:  j,
		long: long,
		shrt: short,
		stop: stop,
		cfg:  cfg,
		log:  logger.Get().With("job_id", j.JobID, "symbol", j.Symbol),
	}
}

// Run executes the job to completion. A fatal error (exhausted placement or
// instrument-resolution retries) returns the error alongside a FAILED result
// carrying whatever quantity was processed before the failure.
func (e *OrderExecutor) Run(ctx context.Context) (*job.Result, error) {
	buy := &leg{
		exchange: e.long,
		symbol:   e.long.FormatSymbol(e.job.Symbol, e.job.MarketAssetLong),
		side:     exchanges.OrderSideBuy,
	}
	sell := &leg{
		exchange: e.shrt,
		symbol:   e.shrt.FormatSymbol(e.job.Symbol, e.job.MarketAssetShort),
		side:     exchanges.OrderSideSell,
	}

	processed := decimal.Zero
	slotQuantity := e.job.TickQuantity.Mul(decimal.NewFromInt(2))

	if err := e.prepare(ctx, buy, sell); err != nil {
		return &job.Result{Status: job.StatusFailed, ProcessedQuantity: processed}, err
	}

	slots := e.job.Slots()
	for completed := int64(0); completed < slots; {
		stopped, err := e.stopRequested(ctx)
		if err != nil {
			e.log.Warnf("stop signal check failed: %v", err)
		}
		if stopped {
			e.log.Infow("stop requested, halting job",
				"slots_done", completed, "processed", processed.String())
			return &job.Result{Status: job.StatusStopped, ProcessedQuantity: processed}, nil
		}

		outcome, err := e.runSlot(ctx, buy, sell)
		if err != nil {
			return &job.Result{Status: job.StatusFailed, ProcessedQuantity: processed}, err
		}

		switch outcome {
		case slotFilled:
			metrics.RecordSlot("filled")
			processed = processed.Add(slotQuantity)
			completed++
		case slotForcedCancel:
			// A forced-cancel slot still counts toward the target so the
			// job cannot spin forever on a leg that keeps part-filling.
			metrics.RecordSlot("forced_cancel")
			processed = processed.Add(slotQuantity)
			completed++
		case slotAbandoned:
			// Nothing was credited, so the slot runs again; COMPLETED
			// always carries the full target quantity.
			metrics.RecordSlot("abandoned")
			e.log.Infow("slot abandoned, retrying", "slots_done", completed)
		}
	}

	return &job.Result{Status: job.StatusCompleted, ProcessedQuantity: processed}, nil
}

// prepare resolves instrument parameters for both legs and warms up market
// data feeds. Both legs need tick size (and contract value where the venue
// quotes in contracts) before any order can be priced.
func (e *OrderExecutor) prepare(ctx context.Context, buy, sell *leg) error {
	resolver := retry.New(retry.Config{Attempts: e.cfg.ResolveAttempts, Delay: e.cfg.RetryDelay})

	for _, l := range []*leg{buy, sell} {
		l := l
		inst, err := retry.DoWithResult(ctx, resolver, func() (*exchanges.InstrumentInfo, error) {
			return l.exchange.InstrumentInfo(ctx, l.symbol)
		})
		if err != nil {
			return errors.Wrapf(err, "resolve instrument %s on %s", l.symbol, l.exchange.Name())
		}
		l.inst = inst

		if err := l.exchange.Warmup(ctx, l.symbol); err != nil {
			// REST top-of-book fallback covers a failed push feed.
			e.log.Warnf("warmup failed on %s: %v", l.exchange.Name(), err)
		}
	}

	return nil
}

// runSlot places both legs and polls them to a terminal joint state.
func (e *OrderExecutor) runSlot(ctx context.Context, buy, sell *leg) (slotOutcome, error) {
	for _, l := range []*leg{buy, sell} {
		if err := e.placeWithRetry(ctx, l); err != nil {
			// One leg may already be resting. Accepted: the job fails and
			// the open order is left for manual reconciliation.
			return slotAbandoned, err
		}
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return slotAbandoned, ctx.Err()
		case <-ticker.C:
		}

		e.poll(ctx, buy)
		e.poll(ctx, sell)

		outcome, terminal := e.resolve(ctx, buy, sell)
		if terminal {
			return outcome, nil
		}
	}
}

// resolve classifies the joint leg state and applies the matching action.
// Branches are evaluated in strict precedence order.
func (e *OrderExecutor) resolve(ctx context.Context, buy, sell *leg) (slotOutcome, bool) {
	// A leg stuck part-filling forces both legs out.
	if buy.partials >= partialThreshold || sell.partials >= partialThreshold {
		e.log.Infow("partial fill threshold reached, canceling both legs",
			"buy_status", buy.status, "sell_status", sell.status)
		e.cancelBestEffort(ctx, buy)
		e.cancelBestEffort(ctx, sell)
		return slotForcedCancel, true
	}

	if buy.filled() && sell.filled() {
		return slotFilled, true
	}

	if buy.canceled() && sell.canceled() {
		return slotAbandoned, true
	}

	// Both legs still resting after a full tick: the price likely moved.
	// Cancel both and let the next tick sort out what actually happened.
	if buy.active() && sell.active() {
		e.cancelBestEffort(ctx, buy)
		e.cancelBestEffort(ctx, sell)
		return 0, false
	}

	for _, pair := range [][2]*leg{{buy, sell}, {sell, buy}} {
		l, other := pair[0], pair[1]

		if l.active() && other.filled() {
			e.cancelAndReplace(ctx, l)
			return 0, false
		}
		if l.active() && other.canceled() {
			e.cancelBestEffort(ctx, l)
			return 0, false
		}
		if l.canceled() && other.filled() {
			e.replace(ctx, l)
			return 0, false
		}
	}

	return 0, false
}

// poll refreshes a leg's status. Errors and not-found responses leave the
// tracker at its last known status. The partial counter only moves on a
// definite status.
func (e *OrderExecutor) poll(ctx context.Context, l *leg) {
	status, err := l.exchange.OrderStatus(ctx, l.orderID, l.symbol)
	if err != nil {
		e.log.Warnf("poll failed on %s: %v", l.exchange.Name(), err)
		return
	}
	if status == exchanges.OrderStatusUnknown {
		return
	}

	l.status = status
	if status == exchanges.OrderStatusPartial {
		l.partials++
	} else {
		l.partials = 0
	}
}

// placeWithRetry places a fresh maker order for the leg, retrying with a
// fixed delay. Exhausting the budget is fatal for the job.
func (e *OrderExecutor) placeWithRetry(ctx context.Context, l *leg) error {
	placer := retry.New(retry.Config{Attempts: e.cfg.PlacementAttempts, Delay: e.cfg.RetryDelay})

	orderID, err := retry.DoWithResult(ctx, placer, func() (string, error) {
		return l.exchange.PlaceOrder(ctx, l.symbol, l.side, e.job.TickQuantity, l.inst)
	})
	if err != nil {
		return errors.Wrapf(errors.ErrPlacementExhausted, "%s %s on %s: %v",
			l.side, l.symbol, l.exchange.Name(), err)
	}

	metrics.RecordOrderPlaced(l.exchange.Name(), l.side.String())
	l.orderID = orderID
	l.status = exchanges.OrderStatusUnknown
	l.partials = 0

	e.log.Infow("order placed",
		"exchange", l.exchange.Name(), "side", l.side, "order_id", orderID)
	return nil
}

// cancelBestEffort cancels a leg's order; failures are logged, never retried
// inline. The poll loop observes the real outcome on the next tick.
func (e *OrderExecutor) cancelBestEffort(ctx context.Context, l *leg) *exchanges.CancelAck {
	ack, err := l.exchange.CancelOrder(ctx, l.orderID, l.symbol)
	if err != nil {
		e.log.Warnf("cancel failed on %s: %v", l.exchange.Name(), err)
		return nil
	}

	metrics.RecordOrderCanceled(l.exchange.Name())
	return ack
}

// cancelAndReplace cancels an active leg whose counterpart already filled.
// Only a confirmed cancellation is replaced: the cancel may have raced a
// fill, in which case the next poll will see FILLED.
func (e *OrderExecutor) cancelAndReplace(ctx context.Context, l *leg) {
	ack := e.cancelBestEffort(ctx, l)
	if ack == nil || !l.exchange.IsOrderCanceled(ack) {
		return
	}

	l.status = exchanges.OrderStatusCanceled
	l.partials = 0
	e.replace(ctx, l)
}

// replace puts a freshly priced order on a canceled leg. A failed placement
// leaves the leg canceled; the branch condition still holds next tick, so
// the action retries itself.
func (e *OrderExecutor) replace(ctx context.Context, l *leg) {
	orderID, err := l.exchange.PlaceOrder(ctx, l.symbol, l.side, e.job.TickQuantity, l.inst)
	if err != nil {
		e.log.Warnf("replacement failed on %s: %v", l.exchange.Name(), err)
		return
	}

	metrics.RecordOrderPlaced(l.exchange.Name(), l.side.String())
	l.orderID = orderID
	l.status = exchanges.OrderStatusUnknown
	l.partials = 0

	e.log.Infow("replacement order placed",
		"exchange", l.exchange.Name(), "side", l.side, "order_id", orderID)
}

// stopRequested checks and consumes the external stop flag.
func (e *OrderExecutor) stopRequested(ctx context.Context) (bool, error) {
	if e.stop == nil {
		return false, nil
	}

	stopped, err := e.stop.IsStopRequested(ctx, e.job.JobID)
	if err != nil || !stopped {
		return false, err
	}

	if err := e.stop.ClearStop(ctx, e.job.JobID); err != nil {
		e.log.Warnf("failed to clear stop signal: %v", err)
	}
	return true, nil
}
