package dto

import "github.com/shopspring/decimal"

// ApplyTeacherFeeRequest changes a teacher's default fee and pushes it to the chosen bookings.
type ApplyTeacherFeeRequest struct {
	NewFee              decimal.Decimal `json:"new_fee"`
	BookingIDs          []string        `json:"booking_ids" validate:"required,min=1,dive,required"`
	ApplyToCurrentMonth bool            `json:"apply_to_current_month"`
}
