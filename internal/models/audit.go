package models

import "time"

// Audit actions emitted by the ledger.
const (
	AuditActionBookingCreate      = "BOOKING_CREATE"
	AuditActionBookingDelete      = "BOOKING_DELETE"
	AuditActionBookingFee         = "BOOKING_FEE_UPDATE"
	AuditActionBookingReschedule  = "BOOKING_RESCHEDULE"
	AuditActionBookingStatus      = "BOOKING_STATUS_UPDATE"
	AuditActionRegistrationCreate = "REGISTRATION_CREATE"
	AuditActionRegistrationFee    = "REGISTRATION_FEE_UPDATE"
	AuditActionFeeCascade         = "FEE_CASCADE"
	AuditActionPaymentRecord      = "PAYMENT_RECORD"
	AuditActionSettlementCreate   = "SETTLEMENT_CREATE"
	AuditActionSettlementUpdate   = "SETTLEMENT_UPDATE"
	AuditActionSettlementDelete   = "SETTLEMENT_DELETE"
	AuditActionSettlementRequest  = "SETTLEMENT_CHANGE_REQUEST"
	AuditActionSettlementReview   = "SETTLEMENT_CHANGE_REVIEW"
	AuditActionRegistrationDelete = "REGISTRATION_DELETE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	RequestID  string    `db:"request_id" json:"request_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
