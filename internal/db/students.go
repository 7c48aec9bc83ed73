package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/models"
)

const studentColumns = `id, teacher_id, name, grade, agreed_amount, is_hourly, price_per_hour,
	academic_year, semester, phones, notes, is_completed, created_at, updated_at`

// scanStudent читает studentColumns и, при необходимости, дополнительные колонки после них.
func scanStudent(r rowScanner, extra ...any) (models.Student, error) {
	var (
		s             models.Student
		agreed, price sql.NullFloat64
		phones        []byte
	)
	dest := []any{&s.ID, &s.TeacherID, &s.Name, &s.Grade, &agreed, &s.IsHourly, &price,
		&s.AcademicYear, &s.Semester, &phones, &s.Notes, &s.IsCompleted, &s.CreatedAt, &s.UpdatedAt}
	if err := r.Scan(append(dest, extra...)...); err != nil {
		return s, err
	}
	s.AgreedAmount = floatPtr(agreed)
	s.PricePerHour = floatPtr(price)
	s.Phones = []models.Phone{}
	if len(phones) > 0 {
		if err := json.Unmarshal(phones, &s.Phones); err != nil {
			return s, fmt.Errorf("student %s phones: %w", s.ID, err)
		}
	}
	return s, nil
}

func phoneArgs(phones []models.Phone) (string, any, error) {
	if phones == nil {
		phones = []models.Phone{}
	}
	raw, err := json.Marshal(phones)
	if err != nil {
		return "", nil, err
	}
	digits := make([]string, 0, len(phones))
	for _, p := range phones {
		if d := models.NormalizePhone(p.Number); d != "" {
			digits = append(digits, d)
		}
	}
	return string(raw), pq.Array(digits), nil
}

type StudentFilter struct {
	AcademicYear string
	Semester     models.Semester
	Completed    *bool
	Search       string
}

func (f StudentFilter) apply(w *where) {
	if f.AcademicYear != "" {
		w.add("academic_year = ?", f.AcademicYear)
	}
	if f.Semester != "" {
		w.add("semester = ?", string(f.Semester))
	}
	if f.Completed != nil {
		w.add("is_completed = ?", *f.Completed)
	}
	if f.Search != "" {
		w.add("name ILIKE ?", "%"+f.Search+"%")
	}
}

func ListStudents(ctx context.Context, database *sql.DB, sc authz.Scope, f StudentFilter) ([]models.Student, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	w.owner("teacher_id", sc)
	f.apply(&w)

	rows, err := database.QueryContext(ctx, `SELECT `+studentColumns+` FROM students`+w.String()+` ORDER BY name`, w.args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetStudent — невидимая для Scope строка неотличима от отсутствующей.
func GetStudent(ctx context.Context, database *sql.DB, sc authz.Scope, id uuid.UUID) (*models.Student, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	w.add("id = ?", id)
	w.owner("teacher_id", sc)

	s, err := scanStudent(database.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students`+w.String(), w.args...))
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func CreateStudent(ctx context.Context, database *sql.DB, sc authz.Scope, s models.Student) (*models.Student, error) {
	owner, err := sc.OwnerForInsert(s.TeacherID)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	phones, digits, err := phoneArgs(s.Phones)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	out, err := scanStudent(database.QueryRowContext(ctx, `
		INSERT INTO students (teacher_id, name, grade, agreed_amount, is_hourly, price_per_hour,
		                      academic_year, semester, phones, phone_digits, notes, is_completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12)
		RETURNING `+studentColumns,
		owner, s.Name, s.Grade, nullFloat(s.AgreedAmount), s.IsHourly, nullFloat(s.PricePerHour),
		s.AcademicYear, string(s.Semester), phones, digits, s.Notes, s.IsCompleted))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStudent перезаписывает изменяемые поля (last write wins). Смена преподавателя
// доступна только админу и переносит уроки, оплаты, расписание и оценки вместе с учеником.
func UpdateStudent(ctx context.Context, database *sql.DB, sc authz.Scope, s models.Student) (*models.Student, error) {
	current, err := GetStudent(ctx, database, sc, s.ID)
	if err != nil {
		return nil, err
	}
	if s.TeacherID == uuid.Nil {
		s.TeacherID = current.TeacherID
	}
	reassigned := s.TeacherID != current.TeacherID
	if reassigned && !sc.Admin {
		return nil, ErrForbidden
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	phones, digits, err := phoneArgs(s.Phones)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	// уроки, оплаты, расписание и оценки следуют за teacher_id по составному ключу
	out, err := scanStudent(database.QueryRowContext(ctx, `
		UPDATE students
		SET teacher_id = $2, name = $3, grade = $4, agreed_amount = $5, is_hourly = $6, price_per_hour = $7,
		    academic_year = $8, semester = $9, phones = $10::jsonb, phone_digits = $11, notes = $12,
		    is_completed = $13, updated_at = now()
		WHERE id = $1
		RETURNING `+studentColumns,
		s.ID, s.TeacherID, s.Name, s.Grade, nullFloat(s.AgreedAmount), s.IsHourly, nullFloat(s.PricePerHour),
		s.AcademicYear, string(s.Semester), phones, digits, s.Notes, s.IsCompleted))
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

// DeleteStudent — уроки, оплаты, расписание и оценки удаляются каскадом.
func DeleteStudent(ctx context.Context, database *sql.DB, sc authz.Scope, id uuid.UUID) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	w.add("id = ?", id)
	w.owner("teacher_id", sc)
	res, err := database.ExecContext(ctx, `DELETE FROM students`+w.String(), w.args...)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// FindStudentsByPhone — ученики, у которых среди телефонов есть данный (нормализованный) номер.
// Используется порталом родителей, Scope не применяется.
func FindStudentsByPhone(ctx context.Context, database *sql.DB, phone string) ([]models.StudentSummary, error) {
	digits := models.NormalizePhone(phone)
	if digits == "" {
		return nil, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := database.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM student_summary_view v
		WHERE v.id IN (SELECT id FROM students WHERE $1 = ANY (phone_digits))
		ORDER BY v.is_completed, v.name
	`, digits)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanSummaries(rows)
}
