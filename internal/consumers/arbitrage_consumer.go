package consumers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"hermes/internal/adapters/config"
	"hermes/internal/adapters/exchangefactory"
	"hermes/internal/adapters/kafka"
	"hermes/internal/domain/job"
	"hermes/internal/events"
	"hermes/internal/executor"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// ArbitrageConsumer reads arbitrage jobs from Kafka and runs them through
// the order executor, bounded by a concurrent-job limit.
type ArbitrageConsumer struct {
	consumer  *kafka.Consumer
	jobRepo   job.Repository
	stop      executor.StopSignal
	factory   *exchangefactory.Factory
	publisher *events.Publisher
	cfg       config.ArbitrageConfig
	log       *logger.Logger
}

// NewArbitrageConsumer creates a new arbitrage job consumer
func NewArbitrageConsumer(
	consumer *kafka.Consumer,
	jobRepo job.Repository,
	stop executor.StopSignal,
	factory *exchangefactory.Factory,
	publisher *events.Publisher,
	cfg config.ArbitrageConfig,
	log *logger.Logger,
) *ArbitrageConsumer {
	if cfg.ParallelJobs <= 0 {
		cfg.ParallelJobs = 5
	}

	return &ArbitrageConsumer{
		consumer:  consumer,
		jobRepo:   jobRepo,
		stop:      stop,
		factory:   factory,
		publisher: publisher,
		cfg:       cfg,
		log:       log.With("component", "arbitrage_consumer"),
	}
}

// Start begins consuming job messages. Blocks until ctx is cancelled, then
// waits for in-flight jobs to finish.
func (ac *ArbitrageConsumer) Start(ctx context.Context) error {
	ac.log.Infof("Starting arbitrage consumer (parallel_jobs=%d)...", ac.cfg.ParallelJobs)

	defer func() {
		if err := ac.consumer.Close(); err != nil {
			ac.log.Errorw("Failed to close consumer", "error", err)
		}
	}()

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, ac.cfg.ParallelJobs)

	for {
		msg, err := ac.consumer.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				ac.log.Info("Arbitrage consumer stopping, waiting for running jobs...")
				wg.Wait()
				return nil
			}
			ac.log.Errorw("Failed to read job message", "error", err)
			continue
		}

		metrics.RecordKafkaMessage(kafka.TopicArbitrageJobs, "consumed", nil)

		j, err := ac.decodeJob(msg)
		if err != nil {
			ac.log.Errorw("Rejecting malformed job message", "error", err)
			continue
		}

		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return nil
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()
			ac.runJob(ctx, j)
		}()
	}
}

// decodeJob parses and validates an incoming job message
func (ac *ArbitrageConsumer) decodeJob(msg kafkago.Message) (*job.Job, error) {
	var event events.JobSubmittedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, errors.Wrap(err, "unmarshal job message")
	}

	j := &job.Job{
		ID:               uuid.New(),
		JobID:            event.JobID,
		Symbol:           event.Symbol,
		LongExchange:     event.LongExchange,
		ShortExchange:    event.ShortExchange,
		MarketAssetLong:  event.MarketAssetLong,
		MarketAssetShort: event.MarketAssetShort,
		LongSubAccount:   event.LongSubAccount,
		ShortSubAccount:  event.ShortSubAccount,
		LongEntity:       event.LongEntity,
		ShortEntity:      event.ShortEntity,
		Quantity:         event.Quantity,
		TickQuantity:     event.TickQuantity,
		Status:           job.StatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// runJob resolves both venue adapters, executes the job and records the
// outcome. Adapters are closed on every path.
func (ac *ArbitrageConsumer) runJob(ctx context.Context, j *job.Job) {
	log := ac.log.With("job_id", j.JobID, "symbol", j.Symbol)
	started := time.Now()

	metrics.JobsRunning.Inc()
	defer metrics.JobsRunning.Dec()

	if err := ac.jobRepo.Create(ctx, j); err != nil {
		log.Errorw("Failed to persist job", "error", err)
	}

	long, err := ac.factory.CreateClient(ctx, j.LongExchange, j.LongSubAccount, j.LongEntity)
	if err != nil {
		ac.finishJob(ctx, j, &job.Result{Status: job.StatusFailed}, started, err)
		return
	}
	defer long.Close()

	short, err := ac.factory.CreateClient(ctx, j.ShortExchange, j.ShortSubAccount, j.ShortEntity)
	if err != nil {
		ac.finishJob(ctx, j, &job.Result{Status: job.StatusFailed}, started, err)
		return
	}
	defer short.Close()

	if err := ac.jobRepo.MarkActive(ctx, j.JobID); err != nil {
		log.Errorw("Failed to mark job active", "error", err)
	}

	exec := executor.New(j, long, short, ac.stop, executor.Config{
		PollInterval:      ac.cfg.PollInterval,
		RetryDelay:        ac.cfg.RetryDelay,
		PlacementAttempts: ac.cfg.PlacementAttempts,
		ResolveAttempts:   ac.cfg.ResolveAttempts,
	})

	result, err := exec.Run(ctx)
	ac.finishJob(ctx, j, result, started, err)
}

// finishJob records the result and publishes the completion event
func (ac *ArbitrageConsumer) finishJob(ctx context.Context, j *job.Job, result *job.Result, started time.Time, runErr error) {
	log := ac.log.With("job_id", j.JobID)
	duration := time.Since(started)

	if runErr != nil {
		log.Errorw("Job failed", "error", runErr, "duration", duration)
	} else {
		log.Infow("Job finished",
			"status", result.Status,
			"processed", result.ProcessedQuantity.String(),
			"duration", duration)
	}

	metrics.RecordJob(result.Status.String(), duration)

	// Record even when the consumer context is gone: the result must not
	// be lost because shutdown raced the final slot.
	recordCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ac.jobRepo.RecordResult(recordCtx, j.JobID, result); err != nil {
		log.Errorw("Failed to record job result", "error", err)
	}

	event := &events.JobCompletedEvent{
		JobID:             j.JobID,
		Symbol:            j.Symbol,
		LongExchange:      j.LongExchange,
		ShortExchange:     j.ShortExchange,
		Status:            result.Status.String(),
		ProcessedQuantity: result.ProcessedQuantity,
		Duration:          duration,
		FinishedAt:        time.Now(),
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}

	if err := ac.publisher.PublishJobCompleted(recordCtx, event); err != nil {
		log.Errorw("Failed to publish job completed event", "error", err)
	}
}
