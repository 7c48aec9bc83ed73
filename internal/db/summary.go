package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/models"
)

const summaryColumns = studentColumns + `, total_lessons, total_hours, total_paid, expected_income, remaining_balance`

func scanSummary(r rowScanner) (models.StudentSummary, error) {
	var sum models.StudentSummary
	st, err := scanStudent(r, &sum.TotalLessons, &sum.TotalHours, &sum.TotalPaid, &sum.ExpectedIncome, &sum.RemainingBalance)
	if err != nil {
		return sum, err
	}
	sum.Student = st
	return sum, nil
}

func scanSummaries(rows *sql.Rows) ([]models.StudentSummary, error) {
	out := []models.StudentSummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListSummaries — строки student_summary_view, видимые для Scope.
func ListSummaries(ctx context.Context, database *sql.DB, sc authz.Scope, f StudentFilter) ([]models.StudentSummary, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	w.owner("teacher_id", sc)
	f.apply(&w)

	rows, err := database.QueryContext(ctx, `SELECT `+summaryColumns+` FROM student_summary_view`+w.String()+` ORDER BY name`, w.args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanSummaries(rows)
}

func GetSummary(ctx context.Context, database *sql.DB, sc authz.Scope, studentID uuid.UUID) (*models.StudentSummary, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	w.add("id = ?", studentID)
	w.owner("teacher_id", sc)

	s, err := scanSummary(database.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM student_summary_view`+w.String(), w.args...))
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}
