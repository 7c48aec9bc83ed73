package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Spok95/tutorbook/internal/authz"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// where собирает условия с позиционными параметрами; "?" в выражении заменяется на $n.
type where struct {
	parts []string
	args  []any
}

func (w *where) add(expr string, v any) {
	w.args = append(w.args, v)
	w.parts = append(w.parts, strings.Replace(expr, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

// owner — фильтр по владельцу строки согласно Scope (для админа без курирования — пусто).
func (w *where) owner(col string, sc authz.Scope) {
	if f := sc.OwnerFilter(); f.Valid {
		w.add(col+" = ?", f.UUID)
	}
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) String() string {
	if len(w.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.parts, " AND ")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
