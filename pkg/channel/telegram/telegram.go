package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"specdebate/pkg/config"
)

const (
	channelName         = "telegram"
	messagePreviewLimit = 240
	// Telegram rejects text messages longer than this many characters.
	maxMessageLength = 4096
	truncationMarker = "\n…"
)

type sendFunc func(ctx context.Context, chatID int64, text string) error

// Notifier posts round summaries to one Telegram chat.
type Notifier struct {
	chatID int64
	send   sendFunc
	log    *slog.Logger
}

// NewNotifier validates Telegram configuration and constructs a bot client.
func NewNotifier(cfg config.TelegramConfig, log *slog.Logger) (*Notifier, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("notify.telegram.token is required (or set TELEGRAM_BOT_TOKEN)")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("notify.telegram.chat_id is required (or set TELEGRAM_CHAT_ID)")
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}

	return &Notifier{
		chatID: cfg.ChatID,
		send: func(ctx context.Context, chatID int64, text string) error {
			_, err := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
			return err
		},
		log: log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in logs.
func (n *Notifier) Name() string {
	return channelName
}

// Notify sends text, truncated to Telegram's message limit.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	message := truncateMessage(strings.TrimSpace(text))
	if message == "" {
		return nil
	}

	n.log.Info("Sending message", "chat_id", n.chatID, "content", previewText(message))
	if err := n.send(ctx, n.chatID, message); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func truncateMessage(text string) string {
	if utf8.RuneCountInString(text) <= maxMessageLength {
		return text
	}

	keep := maxMessageLength - utf8.RuneCountInString(truncationMarker)
	return string([]rune(text)[:keep]) + truncationMarker
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return string([]rune(trimmed)[:messagePreviewLimit]) + "..."
}
