package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Notifier sends operator notifications to a fixed set of chats.
type Notifier struct {
	api     *tgbotapi.BotAPI
	chatIDs []int64
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewNotifier creates a Telegram notifier. Telegram allows ~30 msg/s; we
// stay conservative since notifications are not latency-sensitive.
func NewNotifier(token string, chatIDs []int64, log *logger.Logger) (*Notifier, error) {
	if token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	return &Notifier{
		api:     api,
		chatIDs: chatIDs,
		limiter: rate.NewLimiter(rate.Limit(20), 30),
		log:     log,
	}, nil
}

// Send delivers a Markdown-formatted message to every configured chat.
// Per-chat failures are logged and do not block the remaining chats.
func (n *Notifier) Send(ctx context.Context, text string) error {
	var lastErr error

	for _, chatID := range n.chatIDs {
		if err := n.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter wait")
		}

		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown

		if _, err := n.api.Send(msg); err != nil {
			n.log.Errorf("failed to send telegram message to chat %d: %v", chatID, err)
			lastErr = err
		}
	}

	if lastErr != nil {
		return errors.Wrap(lastErr, "telegram send")
	}
	return nil
}
