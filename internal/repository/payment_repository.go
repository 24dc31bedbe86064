package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// ErrIdempotencyKeyReused signals a key already bound to another registration.
var ErrIdempotencyKeyReused = errors.New("idempotency key already used for a different registration")

const paymentColumns = `id, registration_id, amount, payment_date, payment_method, notes, idempotency_key, created_by, created_at`

// PaymentRepository stores append-only payment records.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Record appends a payment and refreshes the registration aggregates atomically.
// The registration row is locked first so concurrent payments serialise on it.
// A payment whose idempotency key already exists is not inserted again; the
// stored payment is returned with Replayed set.
func (r *PaymentRepository) Record(ctx context.Context, payment *models.PaymentRecord) (result *models.PaymentResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record payment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	if err = tx.GetContext(ctx, &locked, `SELECT id FROM student_registrations WHERE id = $1 FOR UPDATE`, payment.RegistrationID); err != nil {
		return nil, err
	}

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.CreatedAt = time.Now().UTC()

	insert := `INSERT INTO payment_records (` + paymentColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (idempotency_key) DO NOTHING
	RETURNING ` + paymentColumns
	var stored models.PaymentRecord
	replayed := false
	err = tx.GetContext(ctx, &stored, insert, payment.ID, payment.RegistrationID, payment.Amount, payment.PaymentDate,
		payment.PaymentMethod, payment.Notes, payment.IdempotencyKey, payment.CreatedBy, payment.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows) && payment.IdempotencyKey != nil:
		if err = tx.GetContext(ctx, &stored, `SELECT `+paymentColumns+` FROM payment_records WHERE idempotency_key = $1`, *payment.IdempotencyKey); err != nil {
			return nil, fmt.Errorf("load replayed payment: %w", err)
		}
		if stored.RegistrationID != payment.RegistrationID {
			err = ErrIdempotencyKeyReused
			return nil, err
		}
		replayed = true
	case err != nil:
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	var reg models.StudentRegistration
	if err = tx.GetContext(ctx, &reg, refreshPaidQuery(), payment.RegistrationID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("refresh paid amount: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record payment: %w", err)
	}
	return &models.PaymentResult{Payment: stored, Registration: reg, Replayed: replayed}, nil
}

func refreshPaidQuery() string {
	return fmt.Sprintf(`WITH totals AS (
	SELECT COALESCE(SUM(amount), 0) AS paid FROM payment_records WHERE registration_id = $1
)
UPDATE student_registrations r
SET paid_amount = totals.paid, payment_status = %s, updated_at = $2
FROM totals
WHERE r.id = $1
RETURNING %s`, paymentStatusCase("r.total_fees", "totals.paid"), registrationColumns)
}

// ListByRegistration returns payments newest first.
func (r *PaymentRepository) ListByRegistration(ctx context.Context, registrationID string) ([]models.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE registration_id = $1 ORDER BY payment_date DESC, created_at DESC`
	var payments []models.PaymentRecord
	if err := r.db.SelectContext(ctx, &payments, query, registrationID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// TotalPaid sums every payment ever made against the registration.
func (r *PaymentRepository) TotalPaid(ctx context.Context, registrationID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(amount), 0) FROM payment_records WHERE registration_id = $1`, registrationID); err != nil {
		return decimal.Zero, fmt.Errorf("total paid: %w", err)
	}
	return total, nil
}

// MonthTotals aggregates payments dated within [from, to).
type MonthTotals struct {
	Amount decimal.Decimal `db:"amount"`
	Count  int             `db:"cnt"`
}

// PaidThisMonth aggregates payments whose payment_date falls in [from, to).
func (r *PaymentRepository) PaidThisMonth(ctx context.Context, registrationID string, from, to time.Time) (MonthTotals, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) AS amount, COUNT(*) AS cnt FROM payment_records
	WHERE registration_id = $1 AND payment_date >= $2 AND payment_date < $3`
	var totals MonthTotals
	if err := r.db.GetContext(ctx, &totals, query, registrationID, from, to); err != nil {
		return MonthTotals{}, fmt.Errorf("paid this month: %w", err)
	}
	return totals, nil
}
