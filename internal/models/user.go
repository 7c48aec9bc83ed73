package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	Teacher Role = "teacher"
	Admin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == Teacher || r == Admin
}

// Profile — учётная запись преподавателя или администратора.
// Роль задаётся при создании; IsApproved открывает доступ к данным.
type Profile struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Email      string    `json:"email,omitempty" db:"email"`
	FullName   string    `json:"full_name" db:"full_name"`
	Role       Role      `json:"role" db:"role"`
	IsApproved bool      `json:"is_approved" db:"is_approved"`
	Phone      *string   `json:"phone,omitempty" db:"phone"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

func (p Profile) IsAdmin() bool { return p.Role == Admin }

// CanUseData — админ всегда, преподаватель только после подтверждения.
func (p Profile) CanUseData() bool { return p.IsAdmin() || p.IsApproved }

// Preferences — сохранённый выбор учебного года/семестра.
type Preferences struct {
	ProfileID    uuid.UUID `json:"profile_id" db:"profile_id"`
	AcademicYear string    `json:"academic_year" db:"academic_year"`
	Semester     Semester  `json:"semester" db:"semester"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

func (p *Preferences) Validate() error {
	p.AcademicYear = strings.TrimSpace(p.AcademicYear)
	if _, err := ParseAcademicYear(p.AcademicYear); err != nil {
		return &ValidationError{Field: "academic_year", Msg: err.Error()}
	}
	if !p.Semester.Valid() {
		return &ValidationError{Field: "semester", Msg: "unknown semester " + string(p.Semester)}
	}
	return nil
}
