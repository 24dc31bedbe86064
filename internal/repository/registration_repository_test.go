package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
)

var registrationRowColumns = []string{"id", "student_id", "booking_id", "total_fees", "paid_amount", "payment_status",
	"fee_overridden", "registration_date", "created_at", "updated_at"}

func TestRegistrationRepositoryCreateDerivesStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_registrations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	reg := &models.StudentRegistration{StudentID: "s-1", BookingID: "b-1", TotalFees: decimal.NewFromInt(200)}
	require.NoError(t, repo.Create(context.Background(), reg))
	assert.NotEmpty(t, reg.ID)
	assert.Equal(t, models.PaymentStatusPending, reg.PaymentStatus)
	assert.False(t, reg.RegistrationDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCreateDuplicateIsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_registrations")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "student_registrations_student_id_booking_id_key"})

	err := repo.Create(context.Background(), &models.StudentRegistration{StudentID: "s-1", BookingID: "b-1"})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM student_registrations WHERE student_id = $1 AND booking_id = $2")).
		WithArgs("s-1", "b-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM student_registrations WHERE student_id = $1 AND booking_id = $2")).
		WithArgs("s-2", "b-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.Exists(context.Background(), "s-1", "b-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(context.Background(), "s-2", "b-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryUpdateTotalFeesMarksOverride(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SET total_fees = $2, fee_overridden = TRUE, payment_status = CASE")).
		WithArgs("r-1", "120", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(registrationRowColumns).
			AddRow("r-1", "s-1", "b-1", "120", "120", "paid", true, now, now, now))

	reg, err := repo.UpdateTotalFees(context.Background(), "r-1", decimal.NewFromInt(120))
	require.NoError(t, err)
	assert.True(t, reg.FeeOverridden)
	assert.Equal(t, models.PaymentStatusPaid, reg.PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	now := time.Now()
	cols := append(append([]string{}, registrationRowColumns...), "student_name", "hall_id", "teacher_id", "start_time", "days", "booking_status")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.booking_id = $1 AND r.payment_status = $2 ORDER BY s.full_name ASC LIMIT 20 OFFSET 0")).
		WithArgs("b-1", "partial").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("r-1", "s-1", "b-1", "200", "50", "partial", false, now, now, now, "Omar", "hall-1", "t-1", "16:00", "{sunday}", "active"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_registrations r")).
		WithArgs("b-1", "partial").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.RegistrationFilter{BookingID: "b-1", PaymentStatus: models.PaymentStatusPartial})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Omar", list[0].StudentName)
	assert.Equal(t, models.WeekdaySet{models.Sunday}, list[0].Days)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryDeleteCascade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)
	txm := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_records WHERE registration_id = $1")).WithArgs("r-1").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payment_records WHERE registration_id = $1")).WithArgs("r-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_registrations WHERE id = $1")).WithArgs("r-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := txm.WithinTx(context.Background(), func(tx *sqlx.Tx) error {
		return repo.DeleteCascade(context.Background(), tx, "r-1")
	})
	assert.ErrorIs(t, err, errNoRows())
	assert.NoError(t, mock.ExpectationsWereMet())
}
