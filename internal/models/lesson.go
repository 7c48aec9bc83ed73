package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Lesson struct {
	ID         uuid.UUID `json:"id" db:"id"`
	StudentID  uuid.UUID `json:"student_id" db:"student_id"`
	TeacherID  uuid.UUID `json:"teacher_id" db:"teacher_id"`
	LessonDate Date      `json:"lesson_date" db:"lesson_date"`
	Hours      float64   `json:"hours" db:"hours"`
	Notes      string    `json:"notes" db:"notes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

func (l *Lesson) Validate() error {
	if l.StudentID == uuid.Nil {
		return invalid("student_id", "is required")
	}
	if l.LessonDate.IsZero() {
		return invalid("lesson_date", "is required")
	}
	if l.Hours <= 0 {
		return invalid("hours", "must be positive")
	}
	return nil
}

type PaymentMethod string

const (
	PayCash     PaymentMethod = "cash"
	PayTransfer PaymentMethod = "transfer"
	PayCard     PaymentMethod = "card"
	PayOther    PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCash, PayTransfer, PayCard, PayOther:
		return true
	}
	return false
}

type Payment struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	StudentID     uuid.UUID     `json:"student_id" db:"student_id"`
	TeacherID     uuid.UUID     `json:"teacher_id" db:"teacher_id"`
	Amount        float64       `json:"amount" db:"amount"`
	PaymentDate   Date          `json:"payment_date" db:"payment_date"`
	PaymentMethod PaymentMethod `json:"payment_method" db:"payment_method"`
	IsFinal       bool          `json:"is_final" db:"is_final"`
	Notes         string        `json:"notes" db:"notes"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

func (p *Payment) Validate() error {
	if p.StudentID == uuid.Nil {
		return invalid("student_id", "is required")
	}
	if p.Amount <= 0 {
		return invalid("amount", "must be positive")
	}
	if p.PaymentDate.IsZero() {
		return invalid("payment_date", "is required")
	}
	if p.PaymentMethod == "" {
		p.PaymentMethod = PayCash
	}
	if !p.PaymentMethod.Valid() {
		return invalid("payment_method", "unknown method %q", p.PaymentMethod)
	}
	return nil
}

// ScheduleEntry — еженедельный слот занятия. DayOfWeek: 0 — воскресенье.
type ScheduleEntry struct {
	ID            uuid.UUID `json:"id" db:"id"`
	StudentID     uuid.UUID `json:"student_id" db:"student_id"`
	TeacherID     uuid.UUID `json:"teacher_id" db:"teacher_id"`
	DayOfWeek     int       `json:"day_of_week" db:"day_of_week"`
	StartTime     string    `json:"start_time" db:"start_time"` // HH:MM
	DurationHours float64   `json:"duration_hours" db:"duration_hours"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

const clockLayout = "15:04"

func (e *ScheduleEntry) Validate() error {
	if e.StudentID == uuid.Nil {
		return invalid("student_id", "is required")
	}
	if e.DayOfWeek < 0 || e.DayOfWeek > 6 {
		return invalid("day_of_week", "must be within 0..6")
	}
	t, err := time.Parse(clockLayout, strings.TrimSpace(e.StartTime))
	if err != nil {
		return invalid("start_time", "want HH:MM")
	}
	e.StartTime = t.Format(clockLayout)
	if e.DurationHours <= 0 {
		return invalid("duration_hours", "must be positive")
	}
	return nil
}

// EndTime — время окончания; переход через полночь не учитывается.
func (e ScheduleEntry) EndTime() string {
	t, err := time.Parse(clockLayout, e.StartTime)
	if err != nil {
		return ""
	}
	return t.Add(time.Duration(e.DurationHours * float64(time.Hour))).Format(clockLayout)
}

func (e ScheduleEntry) Weekday() time.Weekday { return time.Weekday(e.DayOfWeek) }

func (e ScheduleEntry) String() string {
	return fmt.Sprintf("%s %s–%s", WeekdayRU(e.Weekday()), e.StartTime, e.EndTime())
}

// SortSchedule — по дню недели (с понедельника), затем по времени.
func SortSchedule(entries []ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := mondayFirst(entries[i].DayOfWeek), mondayFirst(entries[j].DayOfWeek)
		if di != dj {
			return di < dj
		}
		return entries[i].StartTime < entries[j].StartTime
	})
}

func mondayFirst(d int) int { return (d + 6) % 7 }

var weekdaysRU = [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

func WeekdayRU(d time.Weekday) string { return weekdaysRU[d] }

// AcademicRecord — отметка об успеваемости ученика за семестр.
type AcademicRecord struct {
	ID           uuid.UUID `json:"id" db:"id"`
	StudentID    uuid.UUID `json:"student_id" db:"student_id"`
	TeacherID    uuid.UUID `json:"teacher_id" db:"teacher_id"`
	AcademicYear string    `json:"academic_year" db:"academic_year"`
	Semester     Semester  `json:"semester" db:"semester"`
	Subject      string    `json:"subject" db:"subject"`
	Score        *float64  `json:"score" db:"score"`
	Notes        string    `json:"notes" db:"notes"`
	RecordedAt   Date      `json:"recorded_at" db:"recorded_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

func (r *AcademicRecord) Validate() error {
	if r.StudentID == uuid.Nil {
		return invalid("student_id", "is required")
	}
	r.Subject = strings.TrimSpace(r.Subject)
	if r.Subject == "" {
		return invalid("subject", "is required")
	}
	r.AcademicYear = strings.TrimSpace(r.AcademicYear)
	if _, err := ParseAcademicYear(r.AcademicYear); err != nil {
		return invalid("academic_year", "%v", err)
	}
	if !r.Semester.Valid() {
		return invalid("semester", "unknown semester %q", r.Semester)
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = DateOf(time.Now())
	}
	return nil
}
