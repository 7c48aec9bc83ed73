package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/models"
)

// RangeFilter — общий фильтр для уроков и оплат: ученик и диапазон дат (включительно).
type RangeFilter struct {
	StudentID uuid.NullUUID
	From, To  *models.Date
}

func (f RangeFilter) apply(w *where, dateCol string) {
	if f.StudentID.Valid {
		w.add("student_id = ?", f.StudentID.UUID)
	}
	if f.From != nil {
		w.add(dateCol+" >= ?", *f.From)
	}
	if f.To != nil {
		w.add(dateCol+" <= ?", *f.To)
	}
}

// ownerOf — владелец новой дочерней строки берётся у видимого ученика.
func ownerOf(ctx context.Context, database *sql.DB, sc authz.Scope, studentID uuid.UUID) (uuid.UUID, error) {
	st, err := GetStudent(ctx, database, sc, studentID)
	if err != nil {
		return uuid.Nil, err
	}
	return st.TeacherID, nil
}

const lessonColumns = `id, student_id, teacher_id, lesson_date, hours, notes, created_at`

func scanLesson(r rowScanner) (models.Lesson, error) {
	var l models.Lesson
	err := r.Scan(&l.ID, &l.StudentID, &l.TeacherID, &l.LessonDate, &l.Hours, &l.Notes, &l.CreatedAt)
	return l, err
}

func ListLessons(ctx context.Context, database *sql.DB, sc authz.Scope, f RangeFilter) ([]models.Lesson, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	w.owner("teacher_id", sc)
	f.apply(&w, "lesson_date")

	rows, err := database.QueryContext(ctx, `SELECT `+lessonColumns+` FROM lessons`+w.String()+` ORDER BY lesson_date DESC, created_at DESC`, w.args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.Lesson{}
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func CreateLesson(ctx context.Context, database *sql.DB, sc authz.Scope, l models.Lesson) (*models.Lesson, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	owner, err := ownerOf(ctx, database, sc, l.StudentID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	out, err := scanLesson(database.QueryRowContext(ctx, `
		INSERT INTO lessons (student_id, teacher_id, lesson_date, hours, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+lessonColumns,
		l.StudentID, owner, l.LessonDate, l.Hours, l.Notes))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func UpdateLesson(ctx context.Context, database *sql.DB, sc authz.Scope, l models.Lesson) (*models.Lesson, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	owner, err := ownerOf(ctx, database, sc, l.StudentID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	sets := `student_id = ` + w.arg(l.StudentID) + `, teacher_id = ` + w.arg(owner) +
		`, lesson_date = ` + w.arg(l.LessonDate) + `, hours = ` + w.arg(l.Hours) + `, notes = ` + w.arg(l.Notes)
	w.add("id = ?", l.ID)
	w.owner("teacher_id", sc)

	out, err := scanLesson(database.QueryRowContext(ctx, `UPDATE lessons SET `+sets+w.String()+` RETURNING `+lessonColumns, w.args...))
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func DeleteLesson(ctx context.Context, database *sql.DB, sc authz.Scope, id uuid.UUID) error {
	return deleteOwned(ctx, database, sc, "lessons", id)
}

// deleteOwned — удаление строки дочерней таблицы с учётом владельца.
func deleteOwned(ctx context.Context, database *sql.DB, sc authz.Scope, table string, id uuid.UUID) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	w.add("id = ?", id)
	w.owner("teacher_id", sc)
	res, err := database.ExecContext(ctx, `DELETE FROM `+table+w.String(), w.args...)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// ownedRow — выборка одной строки дочерней таблицы с учётом владельца.
func ownedRow(ctx context.Context, database *sql.DB, sc authz.Scope, table, columns string, id uuid.UUID) *sql.Row {
	var w where
	w.add("id = ?", id)
	w.owner("teacher_id", sc)
	return database.QueryRowContext(ctx, `SELECT `+columns+` FROM `+table+w.String(), w.args...)
}

func GetLesson(ctx context.Context, database *sql.DB, sc authz.Scope, id uuid.UUID) (*models.Lesson, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	l, err := scanLesson(ownedRow(ctx, database, sc, "lessons", lessonColumns, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}
