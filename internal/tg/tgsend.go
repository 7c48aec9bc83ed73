package tg

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/tutorbook/internal/observability"
)

// Sender — то, что умеет *tgbotapi.BotAPI; в тестах подменяется.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Считаем системными: 5xx, 429, timeout. 400-ки и "бот заблокирован" в Sentry не шлём.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	if strings.Contains(s, "Bad Request") ||
		strings.Contains(s, "Forbidden") ||
		strings.Contains(s, "message is not modified") ||
		strings.Contains(s, "chat not found") {
		return false
	}
	for _, mark := range []string{"429", "Too Many Requests", "500", "502", "503", "timeout"} {
		if strings.Contains(s, mark) {
			return true
		}
	}
	return false
}

func Send(ctx context.Context, bot Sender, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	m, err := bot.Send(msg)
	if isSystemErr(err) {
		observability.CaptureErrCtx(ctx, err)
	}
	return m, err
}
