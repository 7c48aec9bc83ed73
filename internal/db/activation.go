package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/metrics"
	"github.com/Spok95/tutorbook/internal/models"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 8
	maxCodeBatch = 100
)

// RedeemActivationCode гасит код и подтверждает профиль userID.
// Поиск и пометка — один условный UPDATE: из двух одновременных попыток
// с одним кодом строку получит только первая, вторая увидит is_used = TRUE.
func RedeemActivationCode(ctx context.Context, database *sql.DB, userID uuid.UUID, code string) error {
	code = models.NormalizeCode(code)
	if code == "" {
		metrics.Redemptions.WithLabelValues("rejected").Inc()
		return ErrCodeNotFoundOrUsed
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// профиль проверяем до кода: код для несуществующего пользователя не гасится
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE id = $1 FOR UPDATE`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.Redemptions.WithLabelValues("rejected").Inc()
		return ErrProfileNotFound
	}
	if err != nil {
		return err
	}

	var codeID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		UPDATE activation_codes
		SET is_used = TRUE, used_by = $2, used_at = now()
		WHERE code = $1 AND NOT is_used
		RETURNING id
	`, code, userID).Scan(&codeID)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.Redemptions.WithLabelValues("rejected").Inc()
		return ErrCodeNotFoundOrUsed
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE profiles SET is_approved = TRUE, updated_at = now() WHERE id = $1`, userID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.Redemptions.WithLabelValues("ok").Inc()
	return nil
}

const activationColumns = `id, code, is_used, used_by, used_at, created_at`

func scanActivationCode(r rowScanner) (models.ActivationCode, error) {
	var (
		c      models.ActivationCode
		usedBy uuid.NullUUID
		usedAt sql.NullTime
	)
	if err := r.Scan(&c.ID, &c.Code, &c.IsUsed, &usedBy, &usedAt, &c.CreatedAt); err != nil {
		return c, err
	}
	if usedBy.Valid {
		c.UsedBy = &usedBy.UUID
	}
	if usedAt.Valid {
		c.UsedAt = &usedAt.Time
	}
	return c, nil
}

func ListActivationCodes(ctx context.Context, database *sql.DB, sc authz.Scope, onlyUnused bool) ([]models.ActivationCode, error) {
	if err := sc.RequireAdmin(); err != nil {
		return nil, err
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	q := `SELECT ` + activationColumns + ` FROM activation_codes`
	if onlyUnused {
		q += ` WHERE NOT is_used`
	}
	rows, err := database.QueryContext(ctx, q+` ORDER BY created_at DESC, code`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.ActivationCode{}
	for rows.Next() {
		c, err := scanActivationCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateActivationCode — код, заданный вручную (нормализуется к верхнему регистру).
func CreateActivationCode(ctx context.Context, database *sql.DB, sc authz.Scope, code string) (*models.ActivationCode, error) {
	if err := sc.RequireAdmin(); err != nil {
		return nil, err
	}
	code = models.NormalizeCode(code)
	if code == "" {
		return nil, &models.ValidationError{Field: "code", Msg: "is required"}
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	c, err := scanActivationCode(database.QueryRowContext(ctx,
		`INSERT INTO activation_codes (code) VALUES ($1) RETURNING `+activationColumns, code))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &models.ValidationError{Field: "code", Msg: "already exists"}
		}
		return nil, err
	}
	return &c, nil
}

// GenerateActivationCodes создаёт n случайных кодов; коллизии пропускаются.
func GenerateActivationCodes(ctx context.Context, database *sql.DB, sc authz.Scope, n int) ([]models.ActivationCode, error) {
	if err := sc.RequireAdmin(); err != nil {
		return nil, err
	}
	if n <= 0 || n > maxCodeBatch {
		return nil, &models.ValidationError{Field: "count", Msg: fmt.Sprintf("must be within 1..%d", maxCodeBatch)}
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]models.ActivationCode, 0, n)
	for attempts := 0; len(out) < n && attempts < n*4; attempts++ {
		code, err := randomCode()
		if err != nil {
			return nil, err
		}
		c, err := scanActivationCode(tx.QueryRowContext(ctx, `
			INSERT INTO activation_codes (code) VALUES ($1)
			ON CONFLICT (code) DO NOTHING
			RETURNING `+activationColumns, code))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteActivationCode — удалить можно только непогашенный код.
func DeleteActivationCode(ctx context.Context, database *sql.DB, sc authz.Scope, id uuid.UUID) error {
	if err := sc.RequireAdmin(); err != nil {
		return err
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := database.ExecContext(ctx, `DELETE FROM activation_codes WHERE id = $1 AND NOT is_used`, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

func randomCode() (string, error) {
	b := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}
