package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/metrics"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = authz.ErrForbidden
	ErrCodeNotFoundOrUsed = errors.New("activation code not found or already used")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrEmailTaken         = errors.New("email already registered")
)

// Open открывает пул через драйвер pgx. Соединение не проверяется:
// с заглушкой DATABASE_URL сервис должен стартовать.
func Open(dsn string) (*sql.DB, error) {
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	database.SetMaxOpenConns(20)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(30 * time.Minute)
	return database, nil
}

// Ping — проверка доступности с замером задержки.
func Ping(ctx context.Context, database *sql.DB) error {
	t0 := time.Now()
	if err := database.PingContext(ctx); err != nil {
		return err
	}
	metrics.ObserveDBPing(time.Since(t0))
	return nil
}
