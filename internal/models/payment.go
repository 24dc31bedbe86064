package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodWallet   PaymentMethod = "wallet"
)

// Valid returns true when the method is a supported value.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodWallet:
		return true
	default:
		return false
	}
}

// PaymentRecord is an append-only cash receipt against a registration.
type PaymentRecord struct {
	ID             string          `db:"id" json:"id"`
	RegistrationID string          `db:"registration_id" json:"registration_id"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	PaymentDate    time.Time       `db:"payment_date" json:"payment_date"`
	PaymentMethod  PaymentMethod   `db:"payment_method" json:"payment_method"`
	Notes          *string         `db:"notes" json:"notes,omitempty"`
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedBy      *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// PaymentResult is returned by RecordPayment with the refreshed registration.
type PaymentResult struct {
	Payment      PaymentRecord       `json:"payment"`
	Registration StudentRegistration `json:"registration"`
	Replayed     bool                `json:"replayed"`
}

// MonthlyCollectionStatus answers "has this month's fee been collected"; it is
// independent of the all-time payment status.
type MonthlyCollectionStatus struct {
	RegistrationID    string          `json:"registration_id"`
	Year              int             `json:"year"`
	Month             time.Month      `json:"month"`
	PaidThisMonth     bool            `json:"paid_this_month"`
	AmountThisMonth   decimal.Decimal `json:"amount_this_month"`
	PaymentsThisMonth int             `json:"payments_this_month"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
}

// MonthlyFastProcessKey is the idempotency key for the auto-billed monthly fee.
func MonthlyFastProcessKey(registrationID string, day time.Time) string {
	return "fast:" + registrationID + ":" + day.Format("2006-01")
}
