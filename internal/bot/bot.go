// Package bot — родительский портал в Telegram и доставка сообщений родителям.
package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/metrics"
	"github.com/Spok95/tutorbook/internal/models"
	"github.com/Spok95/tutorbook/internal/observability"
	"github.com/Spok95/tutorbook/internal/tg"
)

type Bot struct {
	api     tg.Sender
	db      *sql.DB
	log     *zap.Logger
	limiter *ChatLimiter
}

func New(api tg.Sender, database *sql.DB, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{api: api, db: database, log: log, limiter: NewChatLimiter()}
}

// Run обрабатывает обновления до отмены ctx и ждёт завершения начатых обработчиков.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.HandleUpdate(ctx, upd)
			}()
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	metrics.BotUpdates.Inc()
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	unlock := b.limiter.lock(chatID)
	defer unlock()

	ctx = ctxutil.WithChatID(ctx, chatID)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in bot handler: %v", r)
			b.log.Error("bot handler panic", zap.Int64("chat_id", chatID), zap.Error(err))
			observability.CaptureErrCtx(ctx, err)
		}
	}()
	b.handleMessage(ctx, msg)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.Contact != nil {
		ctx = ctxutil.WithOp(ctx, "bot.contact")
		// только собственный контакт: Telegram подтверждает, что номер принадлежит отправителю
		if msg.From == nil || msg.Contact.UserID != msg.From.ID {
			b.reply(ctx, chatID, textForeign)
			return
		}
		b.link(ctx, chatID, msg.Contact.PhoneNumber)
		return
	}

	if msg.IsCommand() {
		ctx = ctxutil.WithOp(ctx, "bot."+msg.Command())
		switch msg.Command() {
		case "start":
			b.start(ctx, chatID)
		case "balance":
			b.balance(ctx, chatID)
		case "logout":
			b.logout(ctx, chatID)
		default:
			b.reply(ctx, chatID, textHelp)
		}
		return
	}

	if _, ok := parsePhone(msg.Text); ok {
		b.askContact(ctx, chatID, textContactOnly)
		return
	}
	b.reply(ctx, chatID, textHelp)
}

func (b *Bot) start(ctx context.Context, chatID int64) {
	_, err := db.GetParentLink(ctx, b.db, chatID)
	if err == nil {
		b.balance(ctx, chatID)
		return
	}
	if !errors.Is(err, db.ErrNotFound) {
		b.fail(ctx, chatID, err)
		return
	}
	b.askContact(ctx, chatID, textAskPhone)
}

// askContact — сообщение с кнопкой отправки собственного номера.
func (b *Bot) askContact(ctx context.Context, chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButtonContact("📱 Отправить номер"),
	))
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	m.ReplyMarkup = kb
	b.send(ctx, m)
}

func (b *Bot) link(ctx context.Context, chatID int64, phone string) {
	l, err := db.LinkParent(ctx, b.db, chatID, phone)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			b.reply(ctx, chatID, textBadPhone)
			return
		}
		b.fail(ctx, chatID, err)
		return
	}
	b.log.Info("parent linked", zap.Int64("chat_id", chatID))

	rows, err := db.FindStudentsByPhone(ctx, b.db, l.Phone)
	if err != nil {
		b.fail(ctx, chatID, err)
		return
	}
	m := tgbotapi.NewMessage(chatID, balanceText(rows))
	m.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.send(ctx, m)
}

func (b *Bot) balance(ctx context.Context, chatID int64) {
	l, err := db.GetParentLink(ctx, b.db, chatID)
	if errors.Is(err, db.ErrNotFound) {
		b.reply(ctx, chatID, textNotLinked)
		return
	}
	if err != nil {
		b.fail(ctx, chatID, err)
		return
	}
	rows, err := db.FindStudentsByPhone(ctx, b.db, l.Phone)
	if err != nil {
		b.fail(ctx, chatID, err)
		return
	}
	b.reply(ctx, chatID, balanceText(rows))
}

func (b *Bot) logout(ctx context.Context, chatID int64) {
	err := db.UnlinkParent(ctx, b.db, chatID)
	if errors.Is(err, db.ErrNotFound) {
		b.reply(ctx, chatID, textNotLinked)
		return
	}
	if err != nil {
		b.fail(ctx, chatID, err)
		return
	}
	b.log.Info("parent unlinked", zap.Int64("chat_id", chatID))
	b.reply(ctx, chatID, textUnlinked)
}

func (b *Bot) fail(ctx context.Context, chatID int64, err error) {
	b.log.Error("bot request failed", zap.Int64("chat_id", chatID), zap.Error(err))
	observability.CaptureErrCtx(ctx, err)
	b.reply(ctx, chatID, textFailed)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(ctx context.Context, m tgbotapi.Chattable) {
	if _, err := tg.Send(ctx, b.api, m); err != nil {
		b.log.Warn("telegram send", zap.Error(err))
	}
}

// Notify — сообщение родителю от фоновых задач.
func (b *Bot) Notify(ctx context.Context, chatID int64, text string) error {
	_, err := tg.Send(ctxutil.WithChatID(ctx, chatID), b.api, tgbotapi.NewMessage(chatID, text))
	return err
}
