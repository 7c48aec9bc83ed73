package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ActivationCode struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Code      string     `json:"code" db:"code"`
	IsUsed    bool       `json:"is_used" db:"is_used"`
	UsedBy    *uuid.UUID `json:"used_by,omitempty" db:"used_by"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// NormalizeCode — коды храним в верхнем регистре без пробелов по краям.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type Audience string

const (
	AudienceTeachers Audience = "teachers"
	AudienceParents  Audience = "parents"
	AudienceAll      Audience = "all"
)

// Audiences — все допустимые адресаты рассылок.
var Audiences = []Audience{AudienceTeachers, AudienceParents, AudienceAll}

func (a Audience) Valid() bool {
	return a == AudienceTeachers || a == AudienceParents || a == AudienceAll
}

// ReachesTeachers / ReachesParents — кому адресована рассылка.
func (a Audience) ReachesTeachers() bool { return a == AudienceTeachers || a == AudienceAll }
func (a Audience) ReachesParents() bool  { return a == AudienceParents || a == AudienceAll }

type Broadcast struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	AuthorID    uuid.UUID  `json:"author_id" db:"author_id"`
	Title       string     `json:"title" db:"title"`
	Body        string     `json:"body" db:"body"`
	Audience    Audience   `json:"audience" db:"audience"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
}

func (b *Broadcast) Validate() error {
	b.Title = strings.TrimSpace(b.Title)
	b.Body = strings.TrimSpace(b.Body)
	if b.Title == "" {
		return invalid("title", "is required")
	}
	if b.Body == "" {
		return invalid("body", "is required")
	}
	if b.Audience == "" {
		b.Audience = AudienceTeachers
	}
	if !b.Audience.Valid() {
		return invalid("audience", "unknown audience %q", b.Audience)
	}
	return nil
}

// ParentLink — привязка чата Telegram к номеру телефона родителя.
type ParentLink struct {
	ChatID   int64     `db:"chat_id"`
	Phone    string    `db:"phone"`
	LinkedAt time.Time `db:"linked_at"`
}
