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

const broadcastColumns = `id, author_id, title, body, audience, created_at, delivered_at`

func scanBroadcast(r rowScanner) (models.Broadcast, error) {
	var (
		b           models.Broadcast
		deliveredAt sql.NullTime
	)
	if err := r.Scan(&b.ID, &b.AuthorID, &b.Title, &b.Body, &b.Audience, &b.CreatedAt, &deliveredAt); err != nil {
		return b, err
	}
	if deliveredAt.Valid {
		b.DeliveredAt = &deliveredAt.Time
	}
	return b, nil
}

func scanBroadcasts(rows *sql.Rows) ([]models.Broadcast, error) {
	out := []models.Broadcast{}
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func CreateBroadcast(ctx context.Context, database *sql.DB, sc authz.Scope, b models.Broadcast) (*models.Broadcast, error) {
	if err := sc.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	out, err := scanBroadcast(database.QueryRowContext(ctx, `
		INSERT INTO broadcasts (author_id, title, body, audience)
		VALUES ($1, $2, $3, $4)
		RETURNING `+broadcastColumns,
		sc.UserID, b.Title, b.Body, string(b.Audience)))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// audiencesWhere — значения audience, для которых reaches истинно.
func audiencesWhere(reaches func(models.Audience) bool) []string {
	var out []string
	for _, a := range models.Audiences {
		if reaches(a) {
			out = append(out, string(a))
		}
	}
	return out
}

// ListBroadcasts — администратор видит все рассылки, преподаватель только адресованные преподавателям.
func ListBroadcasts(ctx context.Context, database *sql.DB, sc authz.Scope, limit int) ([]models.Broadcast, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	q := `SELECT ` + broadcastColumns + ` FROM broadcasts`
	args := []any{limit}
	if !sc.Admin {
		q += ` WHERE audience = ANY($2)`
		args = append(args, pq.Array(audiencesWhere(models.Audience.ReachesTeachers)))
	}
	rows, err := database.QueryContext(ctx, q+` ORDER BY created_at DESC LIMIT $1`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanBroadcasts(rows)
}

// PendingParentBroadcasts — рассылки для родителей, ещё не отправленные в Telegram.
func PendingParentBroadcasts(ctx context.Context, database *sql.DB) ([]models.Broadcast, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := database.QueryContext(ctx, `
		SELECT `+broadcastColumns+`
		FROM broadcasts
		WHERE delivered_at IS NULL AND audience = ANY($1)
		ORDER BY created_at
	`, pq.Array(audiencesWhere(models.Audience.ReachesParents)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanBroadcasts(rows)
}

func MarkBroadcastsDelivered(ctx context.Context, database *sql.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	_, err := database.ExecContext(ctx, `
		UPDATE broadcasts SET delivered_at = now()
		WHERE id = ANY($1::uuid[]) AND delivered_at IS NULL
	`, pq.Array(strs))
	return err
}
