package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/models"
)

const paymentColumns = `id, student_id, teacher_id, amount, payment_date, payment_method, is_final, notes, created_at`

func scanPayment(r rowScanner) (models.Payment, error) {
	var p models.Payment
	err := r.Scan(&p.ID, &p.StudentID, &p.TeacherID, &p.Amount, &p.PaymentDate, &p.PaymentMethod, &p.IsFinal, &p.Notes, &p.CreatedAt)
	return p, err
}

func ListPayments(ctx context.Context, database *sql.DB, sc authz.Scope, f RangeFilter) ([]models.Payment, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	w.owner("teacher_id", sc)
	f.apply(&w, "payment_date")

	rows, err := database.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments`+w.String()+` ORDER BY payment_date DESC, created_at DESC`, w.args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func CreatePayment(ctx context.Context, database *sql.DB, sc authz.Scope, p models.Payment) (*models.Payment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	owner, err := ownerOf(ctx, database, sc, p.StudentID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	out, err := scanPayment(database.QueryRowContext(ctx, `
		INSERT INTO payments (student_id, teacher_id, amount, payment_date, payment_method, is_final, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+paymentColumns,
		p.StudentID, owner, p.Amount, p.PaymentDate, string(p.PaymentMethod), p.IsFinal, p.Notes))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func UpdatePayment(ctx context.Context, database *sql.DB, sc authz.Scope, p models.Payment) (*models.Payment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	owner, err := ownerOf(ctx, database, sc, p.StudentID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var w where
	sets := `student_id = ` + w.arg(p.StudentID) + `, teacher_id = ` + w.arg(owner) +
		`, amount = ` + w.arg(p.Amount) + `, payment_date = ` + w.arg(p.PaymentDate) +
		`, payment_method = ` + w.arg(string(p.PaymentMethod)) + `, is_final = ` + w.arg(p.IsFinal) +
		`, notes = ` + w.arg(p.Notes)
	w.add("id = ?", p.ID)
	w.owner("teacher_id", sc)

	out, err := scanPayment(database.QueryRowContext(ctx, `UPDATE payments SET `+sets+w.String()+` RETURNING `+paymentColumns, w.args...))
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func DeletePayment(ctx context.Context, database *sql.DB, sc authz.Scope, id uuid.UUID) error {
	return deleteOwned(ctx, database, sc, "payments", id)
}

func GetPayment(ctx context.Context, database *sql.DB, sc authz.Scope, id uuid.UUID) (*models.Payment, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	p, err := scanPayment(ownedRow(ctx, database, sc, "payments", paymentColumns, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}
