package dto

import "github.com/shopspring/decimal"

// RegisterStudentRequest enrols a student in a booking.
type RegisterStudentRequest struct {
	StudentID        string           `json:"student_id" validate:"required"`
	BookingID        string           `json:"booking_id" validate:"required"`
	TotalFees        *decimal.Decimal `json:"total_fees"`
	RegistrationDate *string          `json:"registration_date"`
}

// UpdateRegistrationFeeRequest overrides a registration's fee.
type UpdateRegistrationFeeRequest struct {
	TotalFees decimal.Decimal `json:"total_fees"`
}

// RecordPaymentRequest appends a payment. The idempotency key may also arrive
// in the Idempotency-Key header.
type RecordPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	PaymentDate    string          `json:"payment_date"`
	PaymentMethod  string          `json:"payment_method" validate:"required,oneof=cash card transfer wallet"`
	Notes          *string         `json:"notes" validate:"omitempty,max=500"`
	IdempotencyKey *string         `json:"idempotency_key" validate:"omitempty,max=128"`
}

// MarkAttendanceRequest marks presence for one date (defaults to today).
type MarkAttendanceRequest struct {
	Date string `json:"date"`
}

// FastProcessRequest runs the front-desk shortcut for a student.
type FastProcessRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date"`
}

// RegistrationQuery mirrors listing filters.
type RegistrationQuery struct {
	StudentID     string `form:"student_id"`
	BookingID     string `form:"booking_id"`
	PaymentStatus string `form:"payment_status" validate:"omitempty,oneof=pending partial paid"`
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
}

// MonthQuery selects a calendar month.
type MonthQuery struct {
	Month int `form:"month" validate:"required,min=1,max=12"`
	Year  int `form:"year" validate:"required,min=2000,max=2100"`
}

// DateRangeQuery selects an inclusive date range.
type DateRangeQuery struct {
	From string `form:"from" validate:"required"`
	To   string `form:"to" validate:"required"`
}
