package dto

import "github.com/shopspring/decimal"

// CreateBookingRequest is the payload for scheduling a recurring class.
type CreateBookingRequest struct {
	HallID          string           `json:"hall_id" validate:"required"`
	TeacherID       string           `json:"teacher_id" validate:"required"`
	StageID         string           `json:"stage_id" validate:"required"`
	Days            []string         `json:"days" validate:"required,min=1,max=7,dive,required"`
	StartTime       string           `json:"start_time" validate:"required"`
	DurationMinutes int              `json:"duration_minutes" validate:"omitempty,min=15,max=600"`
	StartDate       string           `json:"start_date" validate:"required"`
	EndDate         *string          `json:"end_date"`
	Fee             *decimal.Decimal `json:"fee"`
	CustomFee       *bool            `json:"custom_fee"`
}

// RescheduleBookingRequest changes the slot; omitted fields keep their value.
type RescheduleBookingRequest struct {
	HallID          *string  `json:"hall_id"`
	Days            []string `json:"days" validate:"omitempty,min=1,max=7,dive,required"`
	StartTime       *string  `json:"start_time"`
	DurationMinutes *int     `json:"duration_minutes" validate:"omitempty,min=15,max=600"`
	StartDate       *string  `json:"start_date"`
	EndDate         *string  `json:"end_date"`
	ClearEndDate    bool     `json:"clear_end_date"`
}

// UpdateBookingFeeRequest sets a manual fee; a null fee falls back to the teacher default.
type UpdateBookingFeeRequest struct {
	Fee    *decimal.Decimal `json:"fee"`
	Custom *bool            `json:"custom"`
}

// UpdateBookingStatusRequest flips the booking lifecycle.
type UpdateBookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active cancelled completed"`
}

// BookingQuery mirrors monthly listing filters.
type BookingQuery struct {
	Month     int    `form:"month" validate:"required,min=1,max=12"`
	Year      int    `form:"year" validate:"required,min=2000,max=2100"`
	HallID    string `form:"hall_id"`
	TeacherID string `form:"teacher_id"`
	StageID   string `form:"stage_id"`
}
