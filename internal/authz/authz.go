// Package authz — правило доступа к строкам: владелец или администратор.
// Каждая функция пакета db принимает Scope и применяет его к запросу.
package authz

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/Spok95/tutorbook/internal/ctxutil"
)

var ErrForbidden = errors.New("forbidden")

// Scope — кто обращается к данным. Supervised сужает обзор администратора до одного преподавателя.
type Scope struct {
	UserID     uuid.UUID
	Admin      bool
	Supervised uuid.NullUUID
}

func ForTeacher(id uuid.UUID) Scope { return Scope{UserID: id} }
func ForAdmin(id uuid.UUID) Scope   { return Scope{UserID: id, Admin: true} }

// Supervise — администратор смотрит данные конкретного преподавателя.
func (s Scope) Supervise(teacherID uuid.UUID) Scope {
	if s.Admin {
		s.Supervised = uuid.NullUUID{UUID: teacherID, Valid: true}
	}
	return s
}

// OwnerFilter — значение для условия teacher_id = $n; Valid=false — без фильтра.
func (s Scope) OwnerFilter() uuid.NullUUID {
	if s.Admin {
		return s.Supervised
	}
	return uuid.NullUUID{UUID: s.UserID, Valid: true}
}

// CanAccess — строка видна и доступна на запись.
func (s Scope) CanAccess(ownerID uuid.UUID) bool {
	if s.UserID == uuid.Nil {
		return false
	}
	return s.Admin || ownerID == s.UserID
}

// OwnerForInsert — чьим будет новый ряд. Преподаватель пишет только себе;
// администратор — указанному, курируемому или себе.
func (s Scope) OwnerForInsert(requested uuid.UUID) (uuid.UUID, error) {
	if s.UserID == uuid.Nil {
		return uuid.Nil, ErrForbidden
	}
	if !s.Admin {
		if requested != uuid.Nil && requested != s.UserID {
			return uuid.Nil, ErrForbidden
		}
		return s.UserID, nil
	}
	if requested != uuid.Nil {
		return requested, nil
	}
	if s.Supervised.Valid {
		return s.Supervised.UUID, nil
	}
	return s.UserID, nil
}

// RequireAdmin — для кодов активации и управления профилями.
func (s Scope) RequireAdmin() error {
	if !s.Admin {
		return ErrForbidden
	}
	return nil
}

// IsAdmin — проверка привилегий по таблице profiles. Любая ошибка — false.
func IsAdmin(ctx context.Context, database *sql.DB, userID uuid.UUID) bool {
	if database == nil || userID == uuid.Nil {
		return false
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var admin bool
	err := database.QueryRowContext(ctx,
		`SELECT role = 'admin' FROM profiles WHERE id = $1`, userID).Scan(&admin)
	if err != nil {
		return false
	}
	return admin
}
