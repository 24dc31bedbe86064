package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// FeeCascadeParams describes one default-fee change.
type FeeCascadeParams struct {
	TeacherID           string
	NewFee              decimal.Decimal
	BookingIDs          []string
	ApplyToCurrentMonth bool
}

// FeeCascadeRepository applies a teacher fee change across bookings and registrations.
type FeeCascadeRepository struct {
	tx       *TxManager
	teachers *TeacherRepository
}

// NewFeeCascadeRepository constructs the repository.
func NewFeeCascadeRepository(db *sqlx.DB) *FeeCascadeRepository {
	return &FeeCascadeRepository{tx: NewTxManager(db), teachers: NewTeacherRepository(db)}
}

// Apply runs the cascade in one transaction; any failure leaves every table untouched.
// Bookings carrying a custom fee are left alone and reported as skipped.
func (r *FeeCascadeRepository) Apply(ctx context.Context, params FeeCascadeParams) (*models.FeeCascadeResult, error) {
	result := &models.FeeCascadeResult{
		TeacherID:             params.TeacherID,
		NewFee:                params.NewFee,
		UpdatedBookings:       []string{},
		SkippedCustomBookings: []string{},
		AppliedToCurrentMonth: params.ApplyToCurrentMonth,
	}
	now := time.Now().UTC()

	err := r.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		previous, err := r.teachers.LockDefaultFee(ctx, tx, params.TeacherID)
		if err != nil {
			return err
		}
		result.PreviousFee = previous

		if err := r.teachers.UpdateDefaultFee(ctx, tx, params.TeacherID, params.NewFee); err != nil {
			return err
		}

		const bookingQuery = `UPDATE bookings SET fee = $1, updated_at = $2
		WHERE id = ANY($3::uuid[]) AND teacher_id = $4 AND custom_fee = FALSE
		RETURNING id`
		var touched []string
		if err := tx.SelectContext(ctx, &touched, bookingQuery, params.NewFee, now, pq.Array(params.BookingIDs), params.TeacherID); err != nil {
			return fmt.Errorf("cascade booking fees: %w", err)
		}
		result.UpdatedBookings = append(result.UpdatedBookings, touched...)

		updated := make(map[string]struct{}, len(touched))
		for _, id := range touched {
			updated[id] = struct{}{}
		}
		for _, id := range params.BookingIDs {
			if _, ok := updated[id]; !ok {
				result.SkippedCustomBookings = append(result.SkippedCustomBookings, id)
			}
		}

		if !params.ApplyToCurrentMonth || len(touched) == 0 {
			return nil
		}
		regQuery := fmt.Sprintf(`UPDATE student_registrations
		SET total_fees = $1, payment_status = %s, updated_at = $2
		WHERE booking_id = ANY($3::uuid[]) AND fee_overridden = FALSE`, paymentStatusCase("$1", "paid_amount"))
		res, err := tx.ExecContext(ctx, regQuery, params.NewFee, now, pq.Array(touched))
		if err != nil {
			return fmt.Errorf("cascade registration fees: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("cascade registration rows affected: %w", err)
		}
		result.UpdatedRegistrations = affected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
