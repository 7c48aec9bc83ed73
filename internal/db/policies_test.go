//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/models"
)

// asUser выполняет fn от роли authenticated с app.user_id = user, как прямой SQL-клиент.
func asUser(t *testing.T, database *sql.DB, user uuid.UUID, fn func(tx *sql.Tx)) {
	t.Helper()
	tx, err := database.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`SET LOCAL ROLE authenticated`); err != nil {
		t.Fatal(err)
	}
	if user != uuid.Nil {
		if _, err := tx.Exec(`SELECT set_config('app.user_id', $1, true)`, user.String()); err != nil {
			t.Fatal(err)
		}
	}
	fn(tx)
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func count(t *testing.T, tx *sql.Tx, q string, args ...any) int {
	t.Helper()
	var n int
	if err := tx.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("%s: %v", q, err)
	}
	return n
}

func TestPolicies_OwnerOrAdmin(t *testing.T) {
	database := reset(t)
	anna := mustAccount(t, database, "Анна", models.Teacher, true)
	boris := mustAccount(t, database, "Борис", models.Teacher, true)
	admin := mustAccount(t, database, "Админ", models.Admin, true)
	a := mustStudent(t, database, anna, "Петя", 100)
	b := mustStudent(t, database, boris, "Вася", 100)
	mustPayment(t, database, anna, a.ID, 10)
	mustPayment(t, database, boris, b.ID, 20)

	asUser(t, database, anna, func(tx *sql.Tx) {
		if n := count(t, tx, `SELECT count(*) FROM students`); n != 1 {
			t.Errorf("anna students: %d", n)
		}
		if n := count(t, tx, `SELECT count(*) FROM student_summary_view`); n != 1 {
			t.Errorf("anna summaries: %d", n)
		}
		if n := count(t, tx, `SELECT count(*) FROM payments WHERE teacher_id <> $1`, anna); n != 0 {
			t.Errorf("anna sees %d foreign payments", n)
		}
		if n := count(t, tx, `SELECT count(*) FROM activation_codes`); n != 0 {
			t.Errorf("teacher sees activation codes")
		}
		res, err := tx.Exec(`UPDATE students SET name = 'x' WHERE id = $1`, b.ID)
		if err != nil {
			t.Fatal(err)
		}
		if n, _ := res.RowsAffected(); n != 0 {
			t.Errorf("anna updated foreign student")
		}
	})

	asUser(t, database, admin, func(tx *sql.Tx) {
		if n := count(t, tx, `SELECT count(*) FROM students`); n != 2 {
			t.Errorf("admin students: %d", n)
		}
		if n := count(t, tx, `SELECT count(*) FROM profiles`); n != 3 {
			t.Errorf("admin profiles: %d", n)
		}
	})

	asUser(t, database, uuid.Nil, func(tx *sql.Tx) {
		if n := count(t, tx, `SELECT count(*) FROM students`); n != 0 {
			t.Errorf("anonymous sees %d students", n)
		}
	})
}

// authedTx — транзакция от роли authenticated для запросов, которые должны упасть; откатывается в Cleanup.
func authedTx(t *testing.T, database *sql.DB, user uuid.UUID) *sql.Tx {
	t.Helper()
	tx, err := database.Begin()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tx.Rollback() })
	if _, err := tx.Exec(`SET LOCAL ROLE authenticated`); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Exec(`SELECT set_config('app.user_id', $1, true)`, user.String()); err != nil {
		t.Fatal(err)
	}
	return tx
}

func TestPolicies_InsertForOtherTeacherRejected(t *testing.T) {
	database := reset(t)
	anna := mustAccount(t, database, "Анна", models.Teacher, true)
	boris := mustAccount(t, database, "Борис", models.Teacher, true)

	tx := authedTx(t, database, anna)
	_, err := tx.Exec(`
		INSERT INTO students (teacher_id, name, agreed_amount, academic_year, semester)
		VALUES ($1, 'Чужой', 100, '2024-2025', 'first')
	`, boris)
	if err == nil {
		t.Fatal("insert with foreign teacher_id must violate policy")
	}
}

func TestPolicies_ChildRowMustMatchStudentOwner(t *testing.T) {
	database := reset(t)
	anna := mustAccount(t, database, "Анна", models.Teacher, true)
	boris := mustAccount(t, database, "Борис", models.Teacher, true)
	b := mustStudent(t, database, boris, "Вася", 100)

	const insert = `
		INSERT INTO payments (student_id, teacher_id, amount, payment_date)
		VALUES ($1, $2, 50, '2024-10-01')`

	tx := authedTx(t, database, anna)
	if _, err := tx.Exec(insert, b.ID, anna); err == nil {
		t.Fatal("payment for a foreign student accepted under role authenticated")
	}
	// то же ограничение действует и для владельца таблиц
	if _, err := database.Exec(insert, b.ID, anna); err == nil {
		t.Fatal("payment with mismatched teacher_id accepted")
	}

	var remaining float64
	if err := database.QueryRow(`SELECT remaining_balance FROM student_summary_view WHERE id = $1`, b.ID).Scan(&remaining); err != nil {
		t.Fatal(err)
	}
	if remaining != 100 {
		t.Fatalf("remaining balance changed: %v", remaining)
	}
}

func TestPolicies_ProfileCannotBeRecreatedAsAdmin(t *testing.T) {
	database := reset(t)
	anna := mustAccount(t, database, "Анна", models.Teacher, false)

	asUser(t, database, anna, func(tx *sql.Tx) {
		res, err := tx.Exec(`DELETE FROM profiles WHERE id = $1`, anna)
		if err != nil {
			t.Fatal(err)
		}
		if n, _ := res.RowsAffected(); n != 0 {
			t.Fatalf("teacher deleted own profile: %d rows", n)
		}
	})

	tx := authedTx(t, database, anna)
	if _, err := tx.Exec(`
		INSERT INTO profiles (id, full_name, role, is_approved) VALUES ($1, 'Анна', 'admin', true)
	`, anna); err == nil {
		t.Fatal("teacher inserted an admin profile")
	}

	tx = authedTx(t, database, anna)
	if _, err := tx.Exec(`UPDATE profiles SET role = 'admin' WHERE id = $1`, anna); err == nil {
		t.Fatal("teacher changed own role")
	}

	if authz.IsAdmin(context.Background(), database, anna) {
		t.Fatal("teacher became admin")
	}
	p, err := db.GetProfile(context.Background(), database, anna)
	if err != nil {
		t.Fatal(err)
	}
	if p.IsApproved {
		t.Fatal("teacher approved without activation code")
	}
}

func TestIsAdminHelper(t *testing.T) {
	database := reset(t)
	ctx := context.Background()
	admin := mustAccount(t, database, "Админ", models.Admin, true)
	teacher := mustAccount(t, database, "Анна", models.Teacher, true)

	cases := []struct {
		id   uuid.UUID
		want bool
	}{
		{admin, true},
		{teacher, false},
		{uuid.New(), false},
	}
	for _, c := range cases {
		if got := authz.IsAdmin(ctx, database, c.id); got != c.want {
			t.Errorf("authz.IsAdmin(%s) = %v", c.id, got)
		}
		var got bool
		if err := database.QueryRow(`SELECT is_admin($1)`, c.id).Scan(&got); err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Errorf("is_admin(%s) = %v", c.id, got)
		}
	}
}

func TestRedeemFunction_SQL(t *testing.T) {
	database := reset(t)
	ctx := context.Background()
	admin := mustAccount(t, database, "Админ", models.Admin, true)
	teacher := mustAccount(t, database, "Анна", models.Teacher, false)
	if _, err := db.CreateActivationCode(ctx, database, authz.ForAdmin(admin), "SQL001"); err != nil {
		t.Fatal(err)
	}

	redeem := func() bool {
		var ok bool
		asUser(t, database, teacher, func(tx *sql.Tx) {
			if err := tx.QueryRow(`SELECT redeem_activation_code($1)`, "sql001").Scan(&ok); err != nil {
				t.Fatal(err)
			}
		})
		return ok
	}
	if !redeem() {
		t.Fatal("first redemption rejected")
	}
	if redeem() {
		t.Fatal("second redemption accepted")
	}
	p, err := db.GetProfile(ctx, database, teacher)
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsApproved {
		t.Fatal("profile not approved")
	}
}
