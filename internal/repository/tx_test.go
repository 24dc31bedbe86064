package repository

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func errNoRows() error { return sql.ErrNoRows }

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505"}
	assert.True(t, IsUniqueViolation(dup))
	assert.True(t, IsUniqueViolation(fmt.Errorf("create registration: %w", dup)))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(sql.ErrNoRows))
}

func TestPaymentStatusCaseMirrorsDerivation(t *testing.T) {
	expr := paymentStatusCase("r.total_fees", "totals.paid")
	assert.Contains(t, expr, "WHEN r.total_fees > 0 AND totals.paid >= r.total_fees THEN 'paid'")
	assert.Contains(t, expr, "WHEN totals.paid > 0 AND totals.paid < r.total_fees THEN 'partial'")
	assert.Contains(t, expr, "ELSE 'pending'")
}
