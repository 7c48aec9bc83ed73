// Package session — состояние вызывающего на время одного запроса:
// пользователь, его профиль и курируемый преподаватель (для админа).
package session

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/models"
)

type Session struct {
	UserID            uuid.UUID      `json:"user_id"`
	Profile           models.Profile `json:"profile"`
	SupervisedTeacher *uuid.UUID     `json:"supervised_teacher,omitempty"`
	// Degraded — профиль не удалось прочитать, работаем как неподтверждённый преподаватель.
	Degraded bool `json:"degraded,omitempty"`
}

type ProfileLookup func(ctx context.Context, id uuid.UUID) (*models.Profile, error)

// Resolve строит сессию после аутентификации. Ошибка чтения профиля не роняет вход:
// сессия откатывается к неподтверждённому преподавателю.
func Resolve(ctx context.Context, lookup ProfileLookup, userID uuid.UUID, supervise *uuid.UUID, log *zap.Logger) Session {
	s := Session{UserID: userID}
	p, err := lookup(ctx, userID)
	if err != nil || p == nil {
		if log != nil {
			log.Warn("profile lookup failed, falling back to unapproved teacher",
				zap.String("user_id", userID.String()), zap.Error(err))
		}
		s.Profile = models.Profile{ID: userID, Role: models.Teacher}
		s.Degraded = true
		return s
	}
	s.Profile = *p
	if p.IsAdmin() && supervise != nil && *supervise != uuid.Nil {
		id := *supervise
		s.SupervisedTeacher = &id
	}
	return s
}

func (s Session) IsAdmin() bool { return s.Profile.IsAdmin() }

func (s Session) Approved() bool { return s.Profile.CanUseData() }

func (s Session) Scope() authz.Scope {
	if !s.IsAdmin() {
		return authz.ForTeacher(s.UserID)
	}
	sc := authz.ForAdmin(s.UserID)
	if s.SupervisedTeacher != nil {
		sc = sc.Supervise(*s.SupervisedTeacher)
	}
	return sc
}
