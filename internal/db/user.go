package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/models"
)

const profileColumns = `p.id, u.email, p.full_name, p.role, p.is_approved, p.phone, p.created_at`

func scanProfile(r rowScanner) (*models.Profile, error) {
	var p models.Profile
	var phone sql.NullString
	if err := r.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.IsApproved, &phone, &p.CreatedAt); err != nil {
		return nil, err
	}
	if phone.Valid {
		p.Phone = &phone.String
	}
	return &p, nil
}

// CreateAccount — пользователь и его профиль одной транзакцией.
// Роль задаётся здесь и дальше не меняется через API.
func CreateAccount(ctx context.Context, database *sql.DB, email, passwordHash, fullName string, phone *string, role models.Role, approved bool) (*models.Profile, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	email = strings.ToLower(strings.TrimSpace(email))
	var id uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO auth_users (email, password_hash) VALUES ($1, $2) RETURNING id
	`, email, passwordHash).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	p := &models.Profile{ID: id, Email: email, FullName: strings.TrimSpace(fullName), Role: role, IsApproved: approved, Phone: phone}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO profiles (id, full_name, role, is_approved, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, id, p.FullName, string(role), approved, phone).Scan(&p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// FindCredentials — id и хеш пароля по email (для входа).
func FindCredentials(ctx context.Context, database *sql.DB, email string) (uuid.UUID, string, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var id uuid.UUID
	var hash string
	err := database.QueryRowContext(ctx,
		`SELECT id, password_hash FROM auth_users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))).Scan(&id, &hash)
	if err != nil {
		return uuid.Nil, "", notFound(err)
	}
	return id, hash, nil
}

// GetProfile — собственный профиль пользователя, без проверки Scope (нужен для построения сессии).
func GetProfile(ctx context.Context, database *sql.DB, id uuid.UUID) (*models.Profile, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	row := database.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles p JOIN auth_users u ON u.id = p.id
		WHERE p.id = $1
	`, id)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListProfiles — администратор видит всех, преподаватель только себя.
func ListProfiles(ctx context.Context, database *sql.DB, sc authz.Scope, role models.Role) ([]models.Profile, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	if !sc.Admin {
		w.add("p.id = ?", sc.UserID)
	}
	if role != "" {
		w.add("p.role = ?", string(role))
	}
	rows, err := database.QueryContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles p JOIN auth_users u ON u.id = p.id`+w.String()+`
		ORDER BY p.full_name
	`, w.args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type ProfilePatch struct {
	FullName   *string
	Phone      *string
	IsApproved *bool
}

// UpdateProfile — имя и телефон меняет владелец или админ, подтверждение — только админ.
func UpdateProfile(ctx context.Context, database *sql.DB, sc authz.Scope, id uuid.UUID, patch ProfilePatch) (*models.Profile, error) {
	if !sc.CanAccess(id) {
		return nil, ErrNotFound
	}
	if patch.IsApproved != nil && !sc.Admin {
		return nil, ErrForbidden
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	sets := []string{"updated_at = now()"}
	var w where
	if patch.FullName != nil {
		sets = append(sets, "full_name = "+w.arg(strings.TrimSpace(*patch.FullName)))
	}
	if patch.Phone != nil {
		sets = append(sets, "phone = "+w.arg(strings.TrimSpace(*patch.Phone)))
	}
	if patch.IsApproved != nil {
		sets = append(sets, "is_approved = "+w.arg(*patch.IsApproved))
	}
	w.add("id = ?", id)

	res, err := database.ExecContext(ctx, `UPDATE profiles SET `+strings.Join(sets, ", ")+w.String(), w.args...)
	if err != nil {
		return nil, err
	}
	if err := affectedOne(res); err != nil {
		return nil, err
	}
	return GetProfile(ctx, database, id)
}

// EnsureAdmin — первичное создание администратора; существующего пользователя повышает до admin.
func EnsureAdmin(ctx context.Context, database *sql.DB, email, passwordHash, fullName string) (*models.Profile, error) {
	id, _, err := FindCredentials(ctx, database, email)
	switch {
	case errors.Is(err, ErrNotFound):
		return CreateAccount(ctx, database, email, passwordHash, fullName, nil, models.Admin, true)
	case err != nil:
		return nil, err
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	if _, err := database.ExecContext(ctx, `
		UPDATE profiles SET role = 'admin', is_approved = TRUE, updated_at = now() WHERE id = $1
	`, id); err != nil {
		return nil, err
	}
	return GetProfile(ctx, database, id)
}

// isUniqueViolation понимает ошибки обоих драйверов (pgx в сервисе, lib/pq в тестах).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
