package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Spok95/tutorbook/internal/billing"
	"github.com/Spok95/tutorbook/internal/models"
)

const (
	textAskPhone    = "Здравствуйте! Чтобы видеть занятия и оплаты ребёнка, отправьте свой номер телефона кнопкой ниже."
	textContactOnly = "Номер принимается только кнопкой «📱 Отправить номер»: так Telegram подтверждает, что он ваш."
	textNotLinked   = "Номер не привязан. Нажмите /start."
	textUnlinked    = "Номер отвязан. Чтобы снова получать сведения, нажмите /start."
	textNoStudents  = "По этому номеру учеников не найдено. Проверьте номер у преподавателя и отправьте его ещё раз."
	textBadPhone    = "В контакте нет номера телефона."
	textForeign     = "Отправьте, пожалуйста, свой контакт."
	textFailed      = "Не удалось получить данные, попробуйте позже."
	textHelp        = "/start — привязать номер\n/balance — занятия и оплаты\n/logout — отвязать номер"
)

// parsePhone — похож ли текст на номер телефона (цифры, пробелы, + ( ) -); такие сообщения
// не привязываются, а получают просьбу отправить контакт.
func parsePhone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && !strings.ContainsRune("+()- ", r) {
			return "", false
		}
	}
	digits := models.NormalizePhone(s)
	if len(digits) < 10 || len(digits) > 15 {
		return "", false
	}
	return digits, true
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " ₽"
}

// studentText — карточка ученика для родителя.
func studentText(s models.StudentSummary) string {
	var b strings.Builder
	b.WriteString(s.Name)
	if s.Grade != "" {
		fmt.Fprintf(&b, " (%s)", s.Grade)
	}
	fmt.Fprintf(&b, "\n%s, %s", s.AcademicYear, s.Semester.Label())
	if s.IsCompleted {
		b.WriteString(", занятия завершены")
	}
	fmt.Fprintf(&b, "\nЗанятий: %d, часов: %s", s.TotalLessons, strconv.FormatFloat(s.TotalHours, 'f', -1, 64))
	fmt.Fprintf(&b, "\nК оплате: %s, оплачено: %s", money(s.ExpectedIncome), money(s.TotalPaid))
	switch {
	case s.RemainingBalance > 0:
		fmt.Fprintf(&b, "\nОстаток к оплате: %s", money(billing.DisplayDebt(s.RemainingBalance)))
	case s.RemainingBalance < 0:
		fmt.Fprintf(&b, "\nПереплата: %s", money(-s.RemainingBalance))
	default:
		b.WriteString("\nЗадолженности нет")
	}
	return b.String()
}

func balanceText(rows []models.StudentSummary) string {
	if len(rows) == 0 {
		return textNoStudents
	}
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = studentText(r)
	}
	return strings.Join(parts, "\n\n")
}

// BroadcastText — рассылка администратора в виде сообщения.
func BroadcastText(b models.Broadcast) string {
	return "📢 " + b.Title + "\n\n" + b.Body
}

// ReminderText — напоминание о завтрашних занятиях; entries уже отсортированы.
func ReminderText(lines []ReminderLine) string {
	var b strings.Builder
	b.WriteString("Завтра занятия:")
	for _, l := range lines {
		fmt.Fprintf(&b, "\n• %s, %s–%s", l.StudentName, l.Entry.StartTime, l.Entry.EndTime())
	}
	return b.String()
}

// ReminderLine — одно занятие в напоминании.
type ReminderLine struct {
	StudentName string
	Entry       models.ScheduleEntry
}
