package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Teacher is an instructor whose default fee seeds new bookings.
type Teacher struct {
	ID         string          `db:"id" json:"id"`
	FullName   string          `db:"full_name" json:"full_name"`
	Phone      *string         `db:"phone" json:"phone,omitempty"`
	DefaultFee decimal.Decimal `db:"default_fee" json:"default_fee"`
	Active     bool            `db:"active" json:"active"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// Hall is a room bookings are scheduled into.
type Hall struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Capacity int    `db:"capacity" json:"capacity"`
	Active   bool   `db:"active" json:"active"`
}

// Student is the minimal student projection the ledger needs.
type Student struct {
	ID       string  `db:"id" json:"id"`
	FullName string  `db:"full_name" json:"full_name"`
	Mobile   *string `db:"mobile" json:"mobile,omitempty"`
	Active   bool    `db:"active" json:"active"`
}

// TeacherFilter narrows teacher listings.
type TeacherFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// StudentFilter narrows student lookups.
type StudentFilter struct {
	Search   string
	Page     int
	PageSize int
}
