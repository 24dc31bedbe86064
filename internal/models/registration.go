package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is derived from paid_amount against total_fees.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// DerivePaymentStatus applies the ledger rule: paid when the paid amount covers a
// positive fee, partial when something but not everything is paid, pending otherwise.
func DerivePaymentStatus(totalFees, paidAmount decimal.Decimal) PaymentStatus {
	switch {
	case totalFees.IsPositive() && paidAmount.GreaterThanOrEqual(totalFees):
		return PaymentStatusPaid
	case paidAmount.IsPositive() && paidAmount.LessThan(totalFees):
		return PaymentStatusPartial
	default:
		return PaymentStatusPending
	}
}

// StudentRegistration links a student to a booking with its own fee and payment state.
type StudentRegistration struct {
	ID               string          `db:"id" json:"id"`
	StudentID        string          `db:"student_id" json:"student_id"`
	BookingID        string          `db:"booking_id" json:"booking_id"`
	TotalFees        decimal.Decimal `db:"total_fees" json:"total_fees"`
	PaidAmount       decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	PaymentStatus    PaymentStatus   `db:"payment_status" json:"payment_status"`
	FeeOverridden    bool            `db:"fee_overridden" json:"fee_overridden"`
	RegistrationDate time.Time       `db:"registration_date" json:"registration_date"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Recompute refreshes the derived payment status from the stored amounts.
func (r *StudentRegistration) Recompute() {
	r.PaymentStatus = DerivePaymentStatus(r.TotalFees, r.PaidAmount)
}

// Balance is the amount still owed, never negative.
func (r StudentRegistration) Balance() decimal.Decimal {
	remaining := r.TotalFees.Sub(r.PaidAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// RegistrationDetail joins the student name and booking schedule.
type RegistrationDetail struct {
	StudentRegistration
	StudentName   string        `db:"student_name" json:"student_name"`
	HallID        string        `db:"hall_id" json:"hall_id"`
	TeacherID     string        `db:"teacher_id" json:"teacher_id"`
	StartTime     string        `db:"start_time" json:"start_time"`
	Days          WeekdaySet    `db:"days" json:"days"`
	BookingStatus BookingStatus `db:"booking_status" json:"booking_status"`
}

// RegistrationFilter narrows registration listings.
type RegistrationFilter struct {
	StudentID     string
	BookingID     string
	PaymentStatus PaymentStatus
	Page          int
	PageSize      int
}

// StudentBookingRegistration pairs a registration with its booking, used by fast processing.
type StudentBookingRegistration struct {
	Registration StudentRegistration
	Booking      Booking
}
