package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestTokens_RoundTrip(t *testing.T) {
	tk := NewTokens("secret", time.Hour)
	id := uuid.New()
	raw, exp, err := tk.Issue(id, "t@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("срок действия в прошлом: %s", exp)
	}
	c, err := tk.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := c.UserID()
	if got != id || c.Email != "t@example.com" {
		t.Fatalf("получили %s / %s", got, c.Email)
	}
}

func TestTokens_Rejects(t *testing.T) {
	tk := NewTokens("secret", time.Hour)
	raw, _, _ := tk.Issue(uuid.New(), "")

	if _, err := NewTokens("other", time.Hour).Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("чужой секрет: %v", err)
	}

	expired := NewTokens("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.Issue(uuid.New(), "")
	if _, err := tk.Parse(old); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("просроченный токен: %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: uuid.NewString(), Issuer: issuer})
	s, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := tk.Parse(s); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg=none: %v", err)
	}
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckPassword(h, "correct horse"); err != nil {
		t.Fatal(err)
	}
	if err := CheckPassword(h, "wrong"); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("получили %v", err)
	}
}
