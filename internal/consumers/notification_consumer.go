package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"hermes/internal/adapters/kafka"
	"hermes/internal/adapters/telegram"
	"hermes/internal/events"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// NotificationConsumer relays job completion events to operators via Telegram
type NotificationConsumer struct {
	consumer *kafka.Consumer
	notifier *telegram.Notifier
	log      *logger.Logger
}

// NewNotificationConsumer creates a new notification consumer
func NewNotificationConsumer(
	consumer *kafka.Consumer,
	notifier *telegram.Notifier,
	log *logger.Logger,
) *NotificationConsumer {
	return &NotificationConsumer{
		consumer: consumer,
		notifier: notifier,
		log:      log.With("component", "notification_consumer"),
	}
}

// Start begins consuming job completion events
func (nc *NotificationConsumer) Start(ctx context.Context) error {
	nc.log.Info("Starting notification consumer...")

	defer func() {
		if err := nc.consumer.Close(); err != nil {
			nc.log.Errorw("Failed to close consumer", "error", err)
		}
	}()

	for {
		msg, err := nc.consumer.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				nc.log.Info("Notification consumer stopping (context cancelled)")
				return nil
			}
			nc.log.Debugw("Failed to read completion event", "error", err)
			continue
		}

		metrics.RecordKafkaMessage(kafka.TopicArbitrageJobCompleted, "consumed", nil)

		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := nc.handleMessage(sendCtx, msg); err != nil {
			nc.log.Errorw("Failed to handle completion event", "error", err)
		}
		cancel()
	}
}

func (nc *NotificationConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var event events.JobCompletedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal job completed event")
	}

	return nc.notifier.Send(ctx, formatJobCompleted(&event))
}

func formatJobCompleted(e *events.JobCompletedEvent) string {
	icon := "✅"
	switch e.Status {
	case "STOPPED":
		icon = "⏹"
	case "FAILED":
		icon = "❌"
	}

	text := fmt.Sprintf("%s *Job %s*\n\n"+
		"*Job:* `%s`\n"+
		"*Symbol:* %s\n"+
		"*Legs:* long %s / short %s\n"+
		"*Processed:* %s\n"+
		"*Duration:* %s",
		icon, e.Status,
		e.JobID, e.Symbol,
		e.LongExchange, e.ShortExchange,
		e.ProcessedQuantity.String(),
		e.Duration.Round(time.Second),
	)

	if e.Error != "" {
		text += fmt.Sprintf("\n*Error:* `%s`", e.Error)
	}
	return text
}
