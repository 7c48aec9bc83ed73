package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

type Phone struct {
	Number string `json:"number"`
	Label  string `json:"label,omitempty"`
}

// NormalizePhone оставляет только цифры; ведущая 8 российского номера
// приводится к 7, чтобы "8 (912) ..." и "+7 912 ..." совпадали.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) == 11 && out[0] == '8' {
		out = "7" + out[1:]
	}
	return out
}

// Student — ученик преподавателя. Оплата либо фиксированная (AgreedAmount),
// либо почасовая (PricePerHour); какая действует — решает IsHourly.
type Student struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TeacherID    uuid.UUID `json:"teacher_id" db:"teacher_id"`
	Name         string    `json:"name" db:"name"`
	Grade        string    `json:"grade" db:"grade"`
	AgreedAmount *float64  `json:"agreed_amount" db:"agreed_amount"`
	IsHourly     bool      `json:"is_hourly" db:"is_hourly"`
	PricePerHour *float64  `json:"price_per_hour" db:"price_per_hour"`
	AcademicYear string    `json:"academic_year" db:"academic_year"`
	Semester     Semester  `json:"semester" db:"semester"`
	Phones       []Phone   `json:"phones" db:"phones"`
	Notes        string    `json:"notes" db:"notes"`
	IsCompleted  bool      `json:"is_completed" db:"is_completed"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

func (s *Student) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return invalid("name", "is required")
	}
	s.AcademicYear = strings.TrimSpace(s.AcademicYear)
	if _, err := ParseAcademicYear(s.AcademicYear); err != nil {
		return invalid("academic_year", "%v", err)
	}
	if !s.Semester.Valid() {
		return invalid("semester", "unknown semester %q", s.Semester)
	}
	if s.IsHourly {
		if s.PricePerHour == nil {
			return invalid("price_per_hour", "is required for hourly billing")
		}
		if *s.PricePerHour < 0 {
			return invalid("price_per_hour", "must not be negative")
		}
	} else {
		if s.AgreedAmount == nil {
			return invalid("agreed_amount", "is required for flat billing")
		}
		if *s.AgreedAmount < 0 {
			return invalid("agreed_amount", "must not be negative")
		}
	}
	for i := range s.Phones {
		s.Phones[i].Number = strings.TrimSpace(s.Phones[i].Number)
		s.Phones[i].Label = strings.TrimSpace(s.Phones[i].Label)
		if NormalizePhone(s.Phones[i].Number) == "" {
			return invalid("phones", "phone #%d has no digits", i+1)
		}
	}
	if s.Phones == nil {
		s.Phones = []Phone{}
	}
	return nil
}

// StudentSummary — строка student_summary_view.
type StudentSummary struct {
	Student
	TotalLessons     int     `json:"total_lessons" db:"total_lessons"`
	TotalHours       float64 `json:"total_hours" db:"total_hours"`
	TotalPaid        float64 `json:"total_paid" db:"total_paid"`
	ExpectedIncome   float64 `json:"expected_income" db:"expected_income"`
	RemainingBalance float64 `json:"remaining_balance" db:"remaining_balance"`
}
