package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementType distinguishes cash in from cash out.
type SettlementType string

const (
	SettlementTypeIncome  SettlementType = "income"
	SettlementTypeExpense SettlementType = "expense"
)

// SourceType identifies where income came from.
type SourceType string

const (
	SourceTypeTeacher SourceType = "teacher"
	SourceTypeOther   SourceType = "other"
)

// SettlementState tracks moderation of a settlement row.
type SettlementState string

const (
	SettlementStateActive          SettlementState = "active"
	SettlementStatePendingEdit     SettlementState = "pending_edit"
	SettlementStatePendingDelete   SettlementState = "pending_delete"
	SettlementStateResolvedDeleted SettlementState = "resolved_deleted"
)

// Pending reports whether a change request is open against the row.
func (s SettlementState) Pending() bool {
	return s == SettlementStatePendingEdit || s == SettlementStatePendingDelete
}

// CanTransition encodes the settlement state machine.
func (s SettlementState) CanTransition(to SettlementState) bool {
	switch s {
	case SettlementStateActive:
		return to == SettlementStatePendingEdit || to == SettlementStatePendingDelete || to == SettlementStateResolvedDeleted
	case SettlementStatePendingEdit:
		return to == SettlementStateActive
	case SettlementStatePendingDelete:
		return to == SettlementStateActive || to == SettlementStateResolvedDeleted
	default:
		return false
	}
}

// DailySettlement is a single income or expense entry for a day.
type DailySettlement struct {
	ID             string          `db:"id" json:"id"`
	SettlementDate time.Time       `db:"settlement_date" json:"settlement_date"`
	Type           SettlementType  `db:"type" json:"type"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	SourceType     *SourceType     `db:"source_type" json:"source_type,omitempty"`
	Category       *string         `db:"category" json:"category,omitempty"`
	SourceName     string          `db:"source_name" json:"source_name"`
	TeacherID      *string         `db:"teacher_id" json:"teacher_id,omitempty"`
	SubjectID      *string         `db:"subject_id" json:"subject_id,omitempty"`
	Notes          *string         `db:"notes" json:"notes,omitempty"`
	State          SettlementState `db:"state" json:"state"`
	CreatedBy      string          `db:"created_by" json:"created_by"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}

// SettlementListItem adds the pending badge shown in listings.
type SettlementListItem struct {
	DailySettlement
	Pending bool `json:"pending"`
}

// DailySummary aggregates a day's entries into the end-of-day cash figure.
type DailySummary struct {
	Date          string          `json:"date"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	IncomeCount   int             `json:"income_count"`
	ExpenseCount  int             `json:"expense_count"`
	PendingCount  int             `json:"pending_count"`
}

// SettlementTotalsRow is one grouped aggregate row.
type SettlementTotalsRow struct {
	Type    SettlementType  `db:"type"`
	Total   decimal.Decimal `db:"total"`
	Count   int             `db:"cnt"`
	Pending int             `db:"pending"`
}

// SummariseSettlements folds grouped totals into a DailySummary.
func SummariseSettlements(date string, rows []SettlementTotalsRow) DailySummary {
	summary := DailySummary{Date: date, TotalIncome: decimal.Zero, TotalExpenses: decimal.Zero}
	for _, row := range rows {
		switch row.Type {
		case SettlementTypeIncome:
			summary.TotalIncome = summary.TotalIncome.Add(row.Total)
			summary.IncomeCount += row.Count
		case SettlementTypeExpense:
			summary.TotalExpenses = summary.TotalExpenses.Add(row.Total)
			summary.ExpenseCount += row.Count
		}
		summary.PendingCount += row.Pending
	}
	summary.NetAmount = summary.TotalIncome.Sub(summary.TotalExpenses)
	return summary
}

// ChangeRequestKind is the requested operation.
type ChangeRequestKind string

const (
	ChangeRequestEdit   ChangeRequestKind = "edit"
	ChangeRequestDelete ChangeRequestKind = "delete"
)

// ChangeRequestStatus captures review outcome.
type ChangeRequestStatus string

const (
	ChangeRequestPending  ChangeRequestStatus = "pending"
	ChangeRequestApproved ChangeRequestStatus = "approved"
	ChangeRequestRejected ChangeRequestStatus = "rejected"
)

// SettlementChangeRequest is a moderated edit or delete against a settlement.
type SettlementChangeRequest struct {
	ID               string              `db:"id" json:"id"`
	SettlementID     string              `db:"settlement_id" json:"settlement_id"`
	Kind             ChangeRequestKind   `db:"kind" json:"kind"`
	RequestedChanges ChangeSet           `db:"requested_changes" json:"requested_changes,omitempty"`
	Reason           string              `db:"reason" json:"reason"`
	Status           ChangeRequestStatus `db:"status" json:"status"`
	RequestedBy      string              `db:"requested_by" json:"requested_by"`
	ReviewedBy       *string             `db:"reviewed_by" json:"reviewed_by,omitempty"`
	RequestedAt      time.Time           `db:"requested_at" json:"requested_at"`
	ReviewedAt       *time.Time          `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Note             *string             `db:"note" json:"note,omitempty"`
}

// ChangeSet is the requested edit document. It is written to the client as the JSON
// object itself and stored in a nullable jsonb column; delete requests carry none.
type ChangeSet json.RawMessage

// MarshalJSON emits the document verbatim.
func (c ChangeSet) MarshalJSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte("null"), nil
	}
	return json.RawMessage(c).MarshalJSON()
}

// UnmarshalJSON keeps a copy of the raw document.
func (c *ChangeSet) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = nil
		return nil
	}
	*c = append((*c)[:0], data...)
	return nil
}

// Value stores an empty set as NULL.
func (c ChangeSet) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	return []byte(c), nil
}

// Scan reads a jsonb column.
func (c *ChangeSet) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = nil
	case []byte:
		*c = append(ChangeSet(nil), v...)
	case string:
		*c = ChangeSet(v)
	default:
		return fmt.Errorf("change set: cannot scan %T", src)
	}
	return nil
}

// PendingState is the settlement state a pending request of this kind implies.
func (k ChangeRequestKind) PendingState() SettlementState {
	if k == ChangeRequestDelete {
		return SettlementStatePendingDelete
	}
	return SettlementStatePendingEdit
}

// ChangeRequestFilter constrains request listings.
type ChangeRequestFilter struct {
	Status       []ChangeRequestStatus
	SettlementID string
	RequestedBy  string
	Limit        int
	Offset       int
}

// SettlementChanges is the editable subset of a settlement.
type SettlementChanges struct {
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	SourceType *SourceType      `json:"source_type,omitempty"`
	Category   *string          `json:"category,omitempty"`
	SourceName *string          `json:"source_name,omitempty"`
	TeacherID  *string          `json:"teacher_id,omitempty"`
	SubjectID  *string          `json:"subject_id,omitempty"`
	Notes      *string          `json:"notes,omitempty"`
}

// Empty reports whether no field is set.
func (c SettlementChanges) Empty() bool {
	return c.Amount == nil && c.SourceType == nil && c.Category == nil && c.SourceName == nil &&
		c.TeacherID == nil && c.SubjectID == nil && c.Notes == nil
}

// ApplyTo returns a copy of the settlement with the changes applied.
func (c SettlementChanges) ApplyTo(s DailySettlement) DailySettlement {
	if c.Amount != nil {
		s.Amount = *c.Amount
	}
	if c.SourceType != nil {
		st := *c.SourceType
		s.SourceType = &st
	}
	if c.Category != nil {
		cat := *c.Category
		s.Category = &cat
	}
	if c.SourceName != nil {
		s.SourceName = *c.SourceName
	}
	if c.TeacherID != nil {
		id := *c.TeacherID
		s.TeacherID = &id
	}
	if c.SubjectID != nil {
		id := *c.SubjectID
		s.SubjectID = &id
	}
	if c.Notes != nil {
		n := *c.Notes
		s.Notes = &n
	}
	return s
}

// SettlementFilter narrows a day's settlement listing.
type SettlementFilter struct {
	Date           time.Time
	Type           SettlementType
	IncludeDeleted bool
}
