package jobs

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/tutorbook/internal/bot"
	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/models"
)

// Notifier доставляет текст в чат родителя (реализует *bot.Bot).
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// DeliverBroadcasts рассылает неотправленные родительские объявления всем привязанным чатам.
// Объявление помечается доставленным после одной попытки, ошибки отдельных чатов только считаются.
func DeliverBroadcasts(database *sql.DB, n Notifier, log *zap.Logger) Job {
	return func(ctx context.Context) error {
		pending, err := db.PendingParentBroadcasts(ctx, database)
		if err != nil || len(pending) == 0 {
			return err
		}
		chats, err := db.ParentChats(ctx, database)
		if err != nil {
			return err
		}
		// каждую рассылку помечаем сразу после отправки: сбой на следующей не повторит уже разосланные
		for _, b := range pending {
			text := bot.BroadcastText(b)
			sent := 0
			for _, c := range chats {
				if notify(ctx, n, log, "broadcasts", c.ChatID, text) {
					sent++
				}
			}
			log.Info("broadcast delivered", zap.String("broadcast_id", b.ID.String()),
				zap.Int("chats", len(chats)), zap.Int("sent", sent))
			if err := db.MarkBroadcastsDelivered(ctx, database, []uuid.UUID{b.ID}); err != nil {
				return err
			}
		}
		return nil
	}
}

// LessonReminders отправляет родителям расписание детей на завтра.
func LessonReminders(database *sql.DB, n Notifier, loc *time.Location, now func() time.Time, log *zap.Logger) Job {
	return func(ctx context.Context) error {
		tomorrow := now().In(loc).AddDate(0, 0, 1)
		rem, err := db.RemindersForDay(ctx, database, int(tomorrow.Weekday()))
		if err != nil || len(rem) == 0 {
			return err
		}
		chats, err := db.ParentChats(ctx, database)
		if err != nil {
			return err
		}
		for chatID, lines := range groupReminders(rem, chats) {
			notify(ctx, n, log, "reminders", chatID, bot.ReminderText(lines))
		}
		return nil
	}
}

// groupReminders раскладывает занятия по чатам, чей телефон записан у ученика. Порядок занятий сохраняется.
func groupReminders(rem []db.Reminder, chats []models.ParentLink) map[int64][]bot.ReminderLine {
	byPhone := make(map[string][]int64, len(chats))
	for _, c := range chats {
		byPhone[c.Phone] = append(byPhone[c.Phone], c.ChatID)
	}
	out := make(map[int64][]bot.ReminderLine)
	seen := make(map[int64]map[uuid.UUID]bool)
	for _, r := range rem {
		for _, phone := range r.PhoneDigits {
			for _, chatID := range byPhone[phone] {
				if seen[chatID] == nil {
					seen[chatID] = make(map[uuid.UUID]bool)
				}
				if seen[chatID][r.Entry.ID] {
					continue
				}
				seen[chatID][r.Entry.ID] = true
				out[chatID] = append(out[chatID], bot.ReminderLine{StudentName: r.StudentName, Entry: r.Entry})
			}
		}
	}
	return out
}

func notify(ctx context.Context, n Notifier, log *zap.Logger, job string, chatID int64, text string) bool {
	if err := n.Notify(ctx, chatID, text); err != nil {
		messagesSent.WithLabelValues(job, "error").Inc()
		log.Warn("notify parent", zap.String("job", job), zap.Int64("chat_id", chatID), zap.Error(err))
		return false
	}
	messagesSent.WithLabelValues(job, "ok").Inc()
	return true
}
