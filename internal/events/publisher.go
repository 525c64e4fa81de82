package events

import (
	"context"

	"hermes/internal/adapters/kafka"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Publisher publishes arbitrage events to Kafka
type Publisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer *kafka.Producer, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		log:      log,
	}
}

// PublishJobCompleted publishes a job completion event keyed by job ID
func (p *Publisher) PublishJobCompleted(ctx context.Context, event *JobCompletedEvent) error {
	err := p.producer.Publish(ctx, kafka.TopicArbitrageJobCompleted, event.JobID, event)
	metrics.RecordKafkaMessage(kafka.TopicArbitrageJobCompleted, "produced", err)
	if err != nil {
		return errors.Wrapf(err, "publish job completed: job_id=%s", event.JobID)
	}

	p.log.Infow("published job completed event",
		"job_id", event.JobID, "status", event.Status)
	return nil
}

// PublishJob publishes a job submission, used by producers and tooling
func (p *Publisher) PublishJob(ctx context.Context, event *JobSubmittedEvent) error {
	err := p.producer.Publish(ctx, kafka.TopicArbitrageJobs, event.JobID, event)
	metrics.RecordKafkaMessage(kafka.TopicArbitrageJobs, "produced", err)
	if err != nil {
		return errors.Wrapf(err, "publish job: job_id=%s", event.JobID)
	}
	return nil
}
