package db

import (
	"context"
	"database/sql"

	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/models"
)

// LinkParent привязывает чат к телефону; повторная привязка заменяет номер.
func LinkParent(ctx context.Context, database *sql.DB, chatID int64, phone string) (*models.ParentLink, error) {
	digits := models.NormalizePhone(phone)
	if digits == "" {
		return nil, &models.ValidationError{Field: "phone", Msg: "has no digits"}
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	l := models.ParentLink{ChatID: chatID, Phone: digits}
	err := database.QueryRowContext(ctx, `
		INSERT INTO parent_links (chat_id, phone) VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE SET phone = EXCLUDED.phone, linked_at = now()
		RETURNING linked_at
	`, chatID, digits).Scan(&l.LinkedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func GetParentLink(ctx context.Context, database *sql.DB, chatID int64) (*models.ParentLink, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	l := models.ParentLink{ChatID: chatID}
	err := database.QueryRowContext(ctx,
		`SELECT phone, linked_at FROM parent_links WHERE chat_id = $1`, chatID).Scan(&l.Phone, &l.LinkedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func UnlinkParent(ctx context.Context, database *sql.DB, chatID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := database.ExecContext(ctx, `DELETE FROM parent_links WHERE chat_id = $1`, chatID)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// ParentChats — все привязанные чаты, у которых есть хотя бы один ученик с этим телефоном.
func ParentChats(ctx context.Context, database *sql.DB) ([]models.ParentLink, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := database.QueryContext(ctx, `
		SELECT pl.chat_id, pl.phone, pl.linked_at
		FROM parent_links pl
		WHERE EXISTS (SELECT 1 FROM students s WHERE pl.phone = ANY (s.phone_digits))
		ORDER BY pl.chat_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.ParentLink
	for rows.Next() {
		var l models.ParentLink
		if err := rows.Scan(&l.ChatID, &l.Phone, &l.LinkedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
