package notify

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"video-content-factory/internal/domain/ports/adapter"
)

var (
	_ adapter.AlertNotifier = (*TelegramNotifier)(nil)
	_ adapter.AlertNotifier = (*NoopNotifier)(nil)
)

// TelegramNotifier pushes operator alerts to a Telegram chat. Delivery
// is best-effort; failures are logged and swallowed.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram token and chat id required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	notifyLog := logger.With().Str("component", "TelegramNotifier").Logger()
	return &TelegramNotifier{bot: bot, chatID: chatID, log: &notifyLog}, nil
}

func (n *TelegramNotifier) Alert(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, message)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Msg("alert delivery failed")
	}
	return nil
}

// NoopNotifier drops alerts, for dev mode and tests.
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (NoopNotifier) Alert(ctx context.Context, message string) error { return nil }
