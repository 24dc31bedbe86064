package models

import "github.com/shopspring/decimal"

// FeeCascadeResult reports what a teacher default-fee change touched.
type FeeCascadeResult struct {
	TeacherID             string          `json:"teacher_id"`
	PreviousFee           decimal.Decimal `json:"previous_fee"`
	NewFee                decimal.Decimal `json:"new_fee"`
	UpdatedBookings       []string        `json:"updated_bookings"`
	SkippedCustomBookings []string        `json:"skipped_custom_bookings"`
	UpdatedRegistrations  int64           `json:"updated_registrations"`
	AppliedToCurrentMonth bool            `json:"applied_to_current_month"`
}
