package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeCascadeRepositoryApplySkipsCustomAndUpdatesRegistrations(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeCascadeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT default_fee FROM teachers WHERE id = $1 FOR UPDATE")).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"default_fee"}).AddRow("100"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE teachers SET default_fee = $2")).
		WithArgs("t-1", "150", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("AND custom_fee = FALSE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("b-1"))
	mock.ExpectExec(regexp.QuoteMeta("WHERE booking_id = ANY($3::uuid[]) AND fee_overridden = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectCommit()

	result, err := repo.Apply(context.Background(), FeeCascadeParams{
		TeacherID:           "t-1",
		NewFee:              decimal.NewFromInt(150),
		BookingIDs:          []string{"b-1", "b-2"},
		ApplyToCurrentMonth: true,
	})
	require.NoError(t, err)
	assert.True(t, result.PreviousFee.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, []string{"b-1"}, result.UpdatedBookings)
	assert.Equal(t, []string{"b-2"}, result.SkippedCustomBookings)
	assert.EqualValues(t, 7, result.UpdatedRegistrations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeCascadeRepositoryWithoutCurrentMonthLeavesRegistrations(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeCascadeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"default_fee"}).AddRow("100"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE teachers SET default_fee")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bookings SET fee = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("b-1"))
	mock.ExpectCommit()

	result, err := repo.Apply(context.Background(), FeeCascadeParams{
		TeacherID:  "t-1",
		NewFee:     decimal.NewFromInt(90),
		BookingIDs: []string{"b-1"},
	})
	require.NoError(t, err)
	assert.Zero(t, result.UpdatedRegistrations)
	assert.False(t, result.AppliedToCurrentMonth)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeCascadeRepositoryRollsBackWhenRegistrationUpdateFails(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeCascadeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"default_fee"}).AddRow("100"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE teachers SET default_fee")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bookings SET fee = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("b-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_registrations")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	result, err := repo.Apply(context.Background(), FeeCascadeParams{
		TeacherID:           "t-1",
		NewFee:              decimal.NewFromInt(90),
		BookingIDs:          []string{"b-1"},
		ApplyToCurrentMonth: true,
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
