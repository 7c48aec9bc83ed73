package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/models"
)

const scheduleColumns = `id, student_id, teacher_id, day_of_week, to_char(start_time, 'HH24:MI'), duration_hours, created_at`

func scanSchedule(r rowScanner) (models.ScheduleEntry, error) {
	var e models.ScheduleEntry
	err := r.Scan(&e.ID, &e.StudentID, &e.TeacherID, &e.DayOfWeek, &e.StartTime, &e.DurationHours, &e.CreatedAt)
	return e, err
}

type ScheduleFilter struct {
	StudentID uuid.NullUUID
	DayOfWeek *int
}

// ListSchedule — расписание, отсортированное с понедельника.
func ListSchedule(ctx context.Context, database *sql.DB, sc authz.Scope, f ScheduleFilter) ([]models.ScheduleEntry, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	w.owner("teacher_id", sc)
	if f.StudentID.Valid {
		w.add("student_id = ?", f.StudentID.UUID)
	}
	if f.DayOfWeek != nil {
		w.add("day_of_week = ?", *f.DayOfWeek)
	}

	rows, err := database.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM schedules`+w.String()+` ORDER BY day_of_week, start_time`, w.args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.ScheduleEntry{}
	for rows.Next() {
		e, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	models.SortSchedule(out)
	return out, nil
}

func CreateScheduleEntry(ctx context.Context, database *sql.DB, sc authz.Scope, e models.ScheduleEntry) (*models.ScheduleEntry, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	owner, err := ownerOf(ctx, database, sc, e.StudentID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	out, err := scanSchedule(database.QueryRowContext(ctx, `
		INSERT INTO schedules (student_id, teacher_id, day_of_week, start_time, duration_hours)
		VALUES ($1, $2, $3, $4::time, $5)
		RETURNING `+scheduleColumns,
		e.StudentID, owner, e.DayOfWeek, e.StartTime, e.DurationHours))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func UpdateScheduleEntry(ctx context.Context, database *sql.DB, sc authz.Scope, e models.ScheduleEntry) (*models.ScheduleEntry, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	owner, err := ownerOf(ctx, database, sc, e.StudentID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	sets := `student_id = ` + w.arg(e.StudentID) + `, teacher_id = ` + w.arg(owner) +
		`, day_of_week = ` + w.arg(e.DayOfWeek) + `, start_time = ` + w.arg(e.StartTime) + `::time` +
		`, duration_hours = ` + w.arg(e.DurationHours)
	w.add("id = ?", e.ID)
	w.owner("teacher_id", sc)

	out, err := scanSchedule(database.QueryRowContext(ctx, `UPDATE schedules SET `+sets+w.String()+` RETURNING `+scheduleColumns, w.args...))
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func DeleteScheduleEntry(ctx context.Context, database *sql.DB, sc authz.Scope, id uuid.UUID) error {
	return deleteOwned(ctx, database, sc, "schedules", id)
}

// Reminder — занятие на конкретный день с контактами родителей ученика.
type Reminder struct {
	Entry       models.ScheduleEntry
	StudentName string
	PhoneDigits []string
}

// RemindersForDay — занятия всех незавершённых учеников на день недели day.
// Используется фоновыми напоминаниями, Scope не применяется.
func RemindersForDay(ctx context.Context, database *sql.DB, day int) ([]Reminder, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := database.QueryContext(ctx, `
		SELECT sc.id, sc.student_id, sc.teacher_id, sc.day_of_week, to_char(sc.start_time, 'HH24:MI'),
		       sc.duration_hours, sc.created_at, s.name, s.phone_digits
		FROM schedules sc
		JOIN students s ON s.id = sc.student_id
		WHERE sc.day_of_week = $1 AND NOT s.is_completed AND cardinality(s.phone_digits) > 0
		ORDER BY sc.start_time
	`, day)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var digits pq.StringArray
		if err := rows.Scan(&r.Entry.ID, &r.Entry.StudentID, &r.Entry.TeacherID, &r.Entry.DayOfWeek, &r.Entry.StartTime,
			&r.Entry.DurationHours, &r.Entry.CreatedAt, &r.StudentName, &digits); err != nil {
			return nil, err
		}
		r.PhoneDigits = digits
		out = append(out, r)
	}
	return out, rows.Err()
}

func GetScheduleEntry(ctx context.Context, database *sql.DB, sc authz.Scope, id uuid.UUID) (*models.ScheduleEntry, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	e, err := scanSchedule(ownedRow(ctx, database, sc, "schedules", scheduleColumns, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}
