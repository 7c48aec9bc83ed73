package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/models"
)

// GetPreferences — сохранённые год и семестр; если ничего не сохранено, текущий период.
func GetPreferences(ctx context.Context, database *sql.DB, profileID uuid.UUID, now time.Time) (*models.Preferences, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	p := models.Preferences{ProfileID: profileID}
	err := database.QueryRowContext(ctx, `
		SELECT academic_year, semester, updated_at FROM user_preferences WHERE profile_id = $1
	`, profileID).Scan(&p.AcademicYear, &p.Semester, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		cur := models.CurrentPeriod(now)
		p.AcademicYear, p.Semester = cur.AcademicYear, cur.Semester
		return &p, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func SavePreferences(ctx context.Context, database *sql.DB, p models.Preferences) (*models.Preferences, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	err := database.QueryRowContext(ctx, `
		INSERT INTO user_preferences (profile_id, academic_year, semester)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id) DO UPDATE
		SET academic_year = EXCLUDED.academic_year, semester = EXCLUDED.semester, updated_at = now()
		RETURNING updated_at
	`, p.ProfileID, p.AcademicYear, string(p.Semester)).Scan(&p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
