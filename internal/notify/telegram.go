package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"applicant-interview/internal/shared/telemetry"
)

// telegramLimit is the maximum message length accepted by the Bot API.
const telegramLimit = 4096

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts transcripts to a fixed chat. The recipient argument is ignored.
type Telegram struct {
	bot    botSender
	chatID int64
}

// NewTelegram authenticates the bot token and returns a notifier for chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Send posts subject and body, split into as many messages as the length limit requires.
func (t *Telegram) Send(ctx context.Context, subject, body, _ string) bool {
	for i, chunk := range splitMessage(subject+"\n\n"+body, telegramLimit) {
		if err := ctx.Err(); err != nil {
			telemetry.Error("notify.telegram_failed", map[string]any{"part": i, "error": err})
			return false
		}
		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, chunk)); err != nil {
			telemetry.Error("notify.telegram_failed", map[string]any{"part": i, "error": err})
			return false
		}
	}
	return true
}

// splitMessage cuts text into pieces of at most limit runes, preferring line breaks.
func splitMessage(text string, limit int) []string {
	var parts []string
	for utf8.RuneCountInString(text) > limit {
		cut := byteIndexOfRune(text, limit)
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" || len(parts) == 0 {
		parts = append(parts, text)
	}
	return parts
}

func byteIndexOfRune(s string, n int) int {
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}
