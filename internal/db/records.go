package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/models"
)

const recordColumns = `id, student_id, teacher_id, academic_year, semester, subject, score, notes, recorded_at, created_at`

func scanRecord(r rowScanner) (models.AcademicRecord, error) {
	var (
		rec   models.AcademicRecord
		score sql.NullFloat64
	)
	if err := r.Scan(&rec.ID, &rec.StudentID, &rec.TeacherID, &rec.AcademicYear, &rec.Semester, &rec.Subject,
		&score, &rec.Notes, &rec.RecordedAt, &rec.CreatedAt); err != nil {
		return rec, err
	}
	rec.Score = floatPtr(score)
	return rec, nil
}

type RecordFilter struct {
	StudentID    uuid.NullUUID
	AcademicYear string
	Semester     models.Semester
}

func ListRecords(ctx context.Context, database *sql.DB, sc authz.Scope, f RecordFilter) ([]models.AcademicRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	w.owner("teacher_id", sc)
	if f.StudentID.Valid {
		w.add("student_id = ?", f.StudentID.UUID)
	}
	if f.AcademicYear != "" {
		w.add("academic_year = ?", f.AcademicYear)
	}
	if f.Semester != "" {
		w.add("semester = ?", string(f.Semester))
	}

	rows, err := database.QueryContext(ctx, `SELECT `+recordColumns+` FROM academic_records`+w.String()+` ORDER BY recorded_at DESC, subject`, w.args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.AcademicRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func CreateRecord(ctx context.Context, database *sql.DB, sc authz.Scope, rec models.AcademicRecord) (*models.AcademicRecord, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	owner, err := ownerOf(ctx, database, sc, rec.StudentID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	out, err := scanRecord(database.QueryRowContext(ctx, `
		INSERT INTO academic_records (student_id, teacher_id, academic_year, semester, subject, score, notes, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+recordColumns,
		rec.StudentID, owner, rec.AcademicYear, string(rec.Semester), rec.Subject, nullFloat(rec.Score), rec.Notes, rec.RecordedAt))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func UpdateRecord(ctx context.Context, database *sql.DB, sc authz.Scope, rec models.AcademicRecord) (*models.AcademicRecord, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	owner, err := ownerOf(ctx, database, sc, rec.StudentID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	sets := `student_id = ` + w.arg(rec.StudentID) + `, teacher_id = ` + w.arg(owner) +
		`, academic_year = ` + w.arg(rec.AcademicYear) + `, semester = ` + w.arg(string(rec.Semester)) +
		`, subject = ` + w.arg(rec.Subject) + `, score = ` + w.arg(nullFloat(rec.Score)) +
		`, notes = ` + w.arg(rec.Notes) + `, recorded_at = ` + w.arg(rec.RecordedAt)
	w.add("id = ?", rec.ID)
	w.owner("teacher_id", sc)

	out, err := scanRecord(database.QueryRowContext(ctx, `UPDATE academic_records SET `+sets+w.String()+` RETURNING `+recordColumns, w.args...))
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func DeleteRecord(ctx context.Context, database *sql.DB, sc authz.Scope, id uuid.UUID) error {
	return deleteOwned(ctx, database, sc, "academic_records", id)
}

func GetRecord(ctx context.Context, database *sql.DB, sc authz.Scope, id uuid.UUID) (*models.AcademicRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rec, err := scanRecord(ownedRow(ctx, database, sc, "academic_records", recordColumns, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}
