package dto

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CreateSettlementRequest records an income or expense entry.
type CreateSettlementRequest struct {
	Date       string          `json:"date"`
	Type       string          `json:"type" validate:"required,oneof=income expense"`
	Amount     decimal.Decimal `json:"amount"`
	SourceType *string         `json:"source_type" validate:"omitempty,oneof=teacher other"`
	Category   *string         `json:"category" validate:"omitempty,max=100"`
	SourceName string          `json:"source_name" validate:"required,max=200"`
	TeacherID  *string         `json:"teacher_id"`
	SubjectID  *string         `json:"subject_id"`
	Notes      *string         `json:"notes" validate:"omitempty,max=500"`
}

// UpdateSettlementRequest carries edits plus the reason shown to reviewers.
type UpdateSettlementRequest struct {
	Changes json.RawMessage `json:"changes" validate:"required"`
	Reason  string          `json:"reason" validate:"max=500"`
}

// DeleteSettlementRequest carries the reason shown to reviewers.
type DeleteSettlementRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ReviewChangeRequest is a moderator decision.
type ReviewChangeRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Note     string `json:"note" validate:"max=500"`
}

// SettlementQuery selects a day's ledger.
type SettlementQuery struct {
	Date           string `form:"date"`
	Type           string `form:"type" validate:"omitempty,oneof=income expense"`
	IncludeDeleted bool   `form:"include_deleted"`
}

// ChangeRequestQuery filters change request listings.
type ChangeRequestQuery struct {
	Status       []string `form:"status" validate:"omitempty,dive,oneof=pending approved rejected"`
	SettlementID string   `form:"settlement_id"`
	Limit        int      `form:"limit"`
	Offset       int      `form:"offset"`
}
