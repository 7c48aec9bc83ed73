package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Semester string

const (
	SemesterFirst  Semester = "first"
	SemesterSecond Semester = "second"
	SemesterSummer Semester = "summer"
)

func (s Semester) Valid() bool {
	switch s {
	case SemesterFirst, SemesterSecond, SemesterSummer:
		return true
	}
	return false
}

// Label — подпись семестра для отчётов и сообщений.
func (s Semester) Label() string {
	switch s {
	case SemesterFirst:
		return "1 семестр"
	case SemesterSecond:
		return "2 семестр"
	case SemesterSummer:
		return "лето"
	}
	return string(s)
}

func ParseSemester(s string) (Semester, error) {
	sem := Semester(strings.ToLower(strings.TrimSpace(s)))
	if !sem.Valid() {
		return "", fmt.Errorf("unknown semester %q", s)
	}
	return sem, nil
}

// Period — пара (учебный год, семестр), по которой фильтруются все списки.
type Period struct {
	AcademicYear string   `json:"academic_year"`
	Semester     Semester `json:"semester"`
}

// AcademicYearStart — год начала учебного года для момента t (учебный год начинается 1 сентября).
func AcademicYearStart(t time.Time) int {
	if t.Month() < time.September {
		return t.Year() - 1
	}
	return t.Year()
}

// AcademicYearLabel форматирует подпись учебного года: "2024-2025".
func AcademicYearLabel(startYear int) string {
	return fmt.Sprintf("%d-%d", startYear, startYear+1)
}

func CurrentAcademicYear(t time.Time) string {
	return AcademicYearLabel(AcademicYearStart(t))
}

// ParseAcademicYear разбирает "2024-2025" и возвращает год начала.
func ParseAcademicYear(s string) (int, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, fmt.Errorf("academic year %q: want YYYY-YYYY", s)
	}
	from, err := strconv.Atoi(a)
	if err != nil {
		return 0, fmt.Errorf("academic year %q: %w", s, err)
	}
	to, err := strconv.Atoi(b)
	if err != nil {
		return 0, fmt.Errorf("academic year %q: %w", s, err)
	}
	if to != from+1 || from < 2000 || from > 2100 {
		return 0, fmt.Errorf("academic year %q: years must be consecutive", s)
	}
	return from, nil
}

// SemesterFor: сентябрь–январь — первый, февраль–июнь — второй, июль–август — летний.
func SemesterFor(t time.Time) Semester {
	switch m := t.Month(); {
	case m >= time.September || m == time.January:
		return SemesterFirst
	case m <= time.June:
		return SemesterSecond
	default:
		return SemesterSummer
	}
}

func CurrentPeriod(t time.Time) Period {
	return Period{AcademicYear: CurrentAcademicYear(t), Semester: SemesterFor(t)}
}
