package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type stubRegistrationRepo struct {
	items     map[string]*models.StudentRegistration
	createErr error
	deleted   []string
	seq       int
}

func (s *stubRegistrationRepo) Create(ctx context.Context, reg *models.StudentRegistration) error {
	if s.createErr != nil {
		return s.createErr
	}
	if s.items == nil {
		s.items = map[string]*models.StudentRegistration{}
	}
	s.seq++
	reg.ID = fmt.Sprintf("reg-%d", s.seq)
	reg.Recompute()
	cp := *reg
	s.items[reg.ID] = &cp
	return nil
}

func (s *stubRegistrationRepo) Exists(ctx context.Context, studentID, bookingID string) (bool, error) {
	for _, r := range s.items {
		if r.StudentID == studentID && r.BookingID == bookingID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRegistrationRepo) FindByID(ctx context.Context, id string) (*models.StudentRegistration, error) {
	if r, ok := s.items[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubRegistrationRepo) ListByStudent(ctx context.Context, studentID string) ([]models.StudentRegistration, error) {
	var out []models.StudentRegistration
	for _, id := range sortedKeys(s.items) {
		if s.items[id].StudentID == studentID {
			out = append(out, *s.items[id])
		}
	}
	return out, nil
}

func (s *stubRegistrationRepo) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	var out []models.RegistrationDetail
	for _, id := range sortedKeys(s.items) {
		r := s.items[id]
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		out = append(out, models.RegistrationDetail{StudentRegistration: *r})
	}
	return out, len(out), nil
}

func (s *stubRegistrationRepo) UpdateTotalFees(ctx context.Context, id string, totalFees decimal.Decimal) (*models.StudentRegistration, error) {
	r, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	r.TotalFees = totalFees
	r.FeeOverridden = true
	r.Recompute()
	cp := *r
	return &cp, nil
}

func (s *stubRegistrationRepo) DeleteCascade(ctx context.Context, tx sqlx.ExtContext, id string) error {
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func sortedKeys(items map[string]*models.StudentRegistration) []string {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

type stubPaymentRepo struct {
	regs     *stubRegistrationRepo
	payments []models.PaymentRecord
	byKey    map[string]models.PaymentRecord
	failFor  map[string]error
}

func (s *stubPaymentRepo) Record(ctx context.Context, payment *models.PaymentRecord) (*models.PaymentResult, error) {
	if err := s.failFor[payment.RegistrationID]; err != nil {
		return nil, err
	}
	reg, ok := s.regs.items[payment.RegistrationID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if s.byKey == nil {
		s.byKey = map[string]models.PaymentRecord{}
	}
	if payment.IdempotencyKey != nil {
		if existing, ok := s.byKey[*payment.IdempotencyKey]; ok {
			if existing.RegistrationID != payment.RegistrationID {
				return nil, repository.ErrIdempotencyKeyReused
			}
			return &models.PaymentResult{Payment: existing, Registration: *reg, Replayed: true}, nil
		}
	}
	payment.ID = fmt.Sprintf("pay-%d", len(s.payments)+1)
	s.payments = append(s.payments, *payment)
	if payment.IdempotencyKey != nil {
		s.byKey[*payment.IdempotencyKey] = *payment
	}
	reg.PaidAmount = reg.PaidAmount.Add(payment.Amount)
	reg.Recompute()
	return &models.PaymentResult{Payment: *payment, Registration: *reg}, nil
}

func (s *stubPaymentRepo) ListByRegistration(ctx context.Context, registrationID string) ([]models.PaymentRecord, error) {
	var out []models.PaymentRecord
	for _, p := range s.payments {
		if p.RegistrationID == registrationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPaymentRepo) PaidThisMonth(ctx context.Context, registrationID string, from, to time.Time) (repository.MonthTotals, error) {
	totals := repository.MonthTotals{Amount: decimal.Zero}
	for _, p := range s.payments {
		if p.RegistrationID == registrationID && !p.PaymentDate.Before(from) && p.PaymentDate.Before(to) {
			totals.Amount = totals.Amount.Add(p.Amount)
			totals.Count++
		}
	}
	return totals, nil
}

func (s *stubPaymentRepo) TotalPaid(ctx context.Context, registrationID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range s.payments {
		if p.RegistrationID == registrationID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

type stubAttendanceRepo struct {
	marks   map[string]models.AttendanceRecord
	failFor map[string]error
}

func (s *stubAttendanceRepo) Mark(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	if err := s.failFor[record.RegistrationID]; err != nil {
		return nil, false, err
	}
	if s.marks == nil {
		s.marks = map[string]models.AttendanceRecord{}
	}
	key := record.RegistrationID + "|" + record.AttendanceDate.Format(models.DateLayout)
	if existing, ok := s.marks[key]; ok {
		return &existing, false, nil
	}
	record.ID = "att-" + key
	s.marks[key] = *record
	return record, true, nil
}

func (s *stubAttendanceRepo) ListByRegistration(ctx context.Context, registrationID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, rec := range s.marks {
		if rec.RegistrationID == registrationID && !rec.AttendanceDate.Before(from) && !rec.AttendanceDate.After(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type registrationFixture struct {
	svc        *RegistrationService
	regs       *stubRegistrationRepo
	payments   *stubPaymentRepo
	attendance *stubAttendanceRepo
	bookings   *stubBookingRepo
	audit      *recordingAudit
	metrics    *MetricsService
}

// Monday 14 October 2024, mid-morning.
var registrationNow = time.Date(2024, 10, 14, 10, 0, 0, 0, time.UTC)

func day(raw string) time.Time {
	d, err := models.ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func newRegistrationFixture() *registrationFixture {
	withFee := bookingFixture("b-fee", "hall-1", "10:00", models.Monday, models.Thursday)
	withFee.Fee = decimal.NullDecimal{Decimal: decimal.NewFromInt(400), Valid: true}
	noFee := bookingFixture("b-default", "hall-1", "12:00", models.Monday)
	tuesday := bookingFixture("b-tue", "hall-2", "12:00", models.Tuesday)
	cancelled := bookingFixture("b-cancelled", "hall-2", "14:00", models.Monday)
	cancelled.Status = models.BookingStatusCancelled

	bookings := &stubBookingRepo{items: map[string]*models.Booking{
		withFee.ID: &withFee, noFee.ID: &noFee, tuesday.ID: &tuesday, cancelled.ID: &cancelled,
	}}
	teachers := &stubTeachers{items: map[string]*models.Teacher{
		"teacher-1": {ID: "teacher-1", FullName: "Mona", DefaultFee: decimal.NewFromInt(300), Active: true},
	}}
	students := &stubStudents{items: map[string]*models.Student{
		"student-1": {ID: "student-1", FullName: "Omar", Active: true},
		"student-2": {ID: "student-2", FullName: "Sara", Active: false},
	}}
	regs := &stubRegistrationRepo{}
	payments := &stubPaymentRepo{regs: regs}
	attendance := &stubAttendanceRepo{}
	audit := &recordingAudit{}
	metrics := NewMetricsService()
	svc := NewRegistrationService(regs, payments, attendance, bookings, teachers, students, &stubTx{}, nil,
		WithRegistrationAudit(audit),
		WithRegistrationMetrics(metrics),
		WithRegistrationClock(func() time.Time { return registrationNow }, time.UTC),
	)
	return &registrationFixture{svc: svc, regs: regs, payments: payments, attendance: attendance, bookings: bookings, audit: audit, metrics: metrics}
}

func (f *registrationFixture) register(t *testing.T, bookingID string, fee *decimal.Decimal) *models.StudentRegistration {
	t.Helper()
	reg, err := f.svc.Register(context.Background(), "user-1", dto.RegisterStudentRequest{StudentID: "student-1", BookingID: bookingID, TotalFees: fee})
	require.NoError(t, err)
	return reg
}

func TestRegistrationServiceRegisterResolvesFee(t *testing.T) {
	f := newRegistrationFixture()

	reg := f.register(t, "b-fee", nil)
	assert.True(t, reg.TotalFees.Equal(decimal.NewFromInt(400)))
	assert.False(t, reg.FeeOverridden)
	assert.Equal(t, models.PaymentStatusPending, reg.PaymentStatus)
	assert.Equal(t, day("2024-10-14"), reg.RegistrationDate)

	reg = f.register(t, "b-default", nil)
	assert.True(t, reg.TotalFees.Equal(decimal.NewFromInt(300)))
	assert.False(t, reg.FeeOverridden)

	discounted := decimal.NewFromInt(250)
	reg = f.register(t, "b-tue", &discounted)
	assert.True(t, reg.TotalFees.Equal(discounted))
	assert.True(t, reg.FeeOverridden)

	assert.Equal(t, []string{models.AuditActionRegistrationCreate, models.AuditActionRegistrationCreate, models.AuditActionRegistrationCreate}, f.audit.actions())
}

func TestRegistrationServiceRegisterExplicitDefaultIsNotOverride(t *testing.T) {
	f := newRegistrationFixture()
	same := decimal.NewFromInt(400)
	reg := f.register(t, "b-fee", &same)
	assert.False(t, reg.FeeOverridden)
}

func TestRegistrationServiceRegisterRejections(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	f.register(t, "b-fee", nil)

	_, err := f.svc.Register(ctx, "user-1", dto.RegisterStudentRequest{StudentID: "student-1", BookingID: "b-fee"})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateRegistration)

	_, err = f.svc.Register(ctx, "user-1", dto.RegisterStudentRequest{StudentID: "student-1", BookingID: "b-cancelled"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Register(ctx, "user-1", dto.RegisterStudentRequest{StudentID: "student-2", BookingID: "b-fee"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Register(ctx, "user-1", dto.RegisterStudentRequest{StudentID: "ghost", BookingID: "b-fee"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	negative := decimal.NewFromInt(-5)
	_, err = f.svc.Register(ctx, "user-1", dto.RegisterStudentRequest{StudentID: "student-1", BookingID: "b-tue", TotalFees: &negative})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRegistrationServiceRegisterMapsUniqueViolation(t *testing.T) {
	f := newRegistrationFixture()
	f.regs.createErr = fmt.Errorf("insert registration: %w", &pq.Error{Code: "23505"})

	_, err := f.svc.Register(context.Background(), "user-1", dto.RegisterStudentRequest{StudentID: "student-1", BookingID: "b-fee"})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateRegistration)
}

func TestRegistrationServiceUpdateFeeRederivesStatus(t *testing.T) {
	f := newRegistrationFixture()
	reg := f.register(t, "b-fee", nil)
	_, err := f.svc.RecordPayment(context.Background(), "user-1", reg.ID, dto.RecordPaymentRequest{Amount: decimal.NewFromInt(200), PaymentMethod: "cash"})
	require.NoError(t, err)

	updated, err := f.svc.UpdateFee(context.Background(), "user-1", reg.ID, decimal.NewFromInt(200))
	require.NoError(t, err)
	assert.True(t, updated.FeeOverridden)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)

	_, err = f.svc.UpdateFee(context.Background(), "user-1", "missing", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.UpdateFee(context.Background(), "user-1", reg.ID, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRegistrationServiceRecordPaymentIdempotent(t *testing.T) {
	f := newRegistrationFixture()
	reg := f.register(t, "b-fee", nil)
	key := "receipt-77"
	req := dto.RecordPaymentRequest{Amount: decimal.NewFromInt(150), PaymentMethod: "card", IdempotencyKey: &key, PaymentDate: "2024-10-10"}

	first, err := f.svc.RecordPayment(context.Background(), "user-1", reg.ID, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, models.PaymentStatusPartial, first.Registration.PaymentStatus)

	second, err := f.svc.RecordPayment(context.Background(), "user-1", reg.ID, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.True(t, second.Registration.PaidAmount.Equal(decimal.NewFromInt(150)))
	assert.Len(t, f.payments.payments, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.paymentsRecorded.WithLabelValues("card", "true")))
	assert.Equal(t, 1, countAction(f.audit, models.AuditActionPaymentRecord))

	other := f.register(t, "b-default", nil)
	_, err = f.svc.RecordPayment(context.Background(), "user-1", other.ID, req)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestRegistrationServiceRecordPaymentValidation(t *testing.T) {
	f := newRegistrationFixture()
	reg := f.register(t, "b-fee", nil)
	ctx := context.Background()

	_, err := f.svc.RecordPayment(ctx, "user-1", reg.ID, dto.RecordPaymentRequest{Amount: decimal.Zero, PaymentMethod: "cash"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = f.svc.RecordPayment(ctx, "user-1", reg.ID, dto.RecordPaymentRequest{Amount: decimal.NewFromInt(1), PaymentMethod: "cheque"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = f.svc.RecordPayment(ctx, "user-1", reg.ID, dto.RecordPaymentRequest{Amount: decimal.NewFromInt(1), PaymentMethod: "cash", PaymentDate: "10/10/2024"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = f.svc.RecordPayment(ctx, "user-1", "missing", dto.RecordPaymentRequest{Amount: decimal.NewFromInt(1), PaymentMethod: "cash"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRegistrationServiceMonthlyStatusIsIndependentOfTotal(t *testing.T) {
	f := newRegistrationFixture()
	reg := f.register(t, "b-fee", nil)
	ctx := context.Background()

	_, err := f.svc.RecordPayment(ctx, "user-1", reg.ID, dto.RecordPaymentRequest{Amount: decimal.NewFromInt(400), PaymentMethod: "cash", PaymentDate: "2024-09-20"})
	require.NoError(t, err)

	september, err := f.svc.MonthlyCollectionStatus(ctx, reg.ID, 2024, time.September)
	require.NoError(t, err)
	assert.True(t, september.PaidThisMonth)
	assert.Equal(t, 1, september.PaymentsThisMonth)

	october, err := f.svc.MonthlyCollectionStatus(ctx, reg.ID, 2024, time.October)
	require.NoError(t, err)
	assert.False(t, october.PaidThisMonth, "fully paid overall but nothing collected this month")
	assert.True(t, october.AmountThisMonth.IsZero())
	assert.True(t, october.TotalPaid.Equal(decimal.NewFromInt(400)), "all-time total reported alongside the month")

	_, err = f.svc.MonthlyCollectionStatus(ctx, reg.ID, 2024, time.Month(13))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRegistrationServiceMarkAttendance(t *testing.T) {
	f := newRegistrationFixture()
	reg := f.register(t, "b-fee", nil)
	ctx := context.Background()

	first, err := f.svc.MarkAttendance(ctx, "user-1", reg.ID, "")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, day("2024-10-14"), first.Record.AttendanceDate)

	again, err := f.svc.MarkAttendance(ctx, "user-1", reg.ID, "2024-10-14")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Record.ID, again.Record.ID)

	_, err = f.svc.MarkAttendance(ctx, "user-1", reg.ID, "2024-10-15")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = f.svc.MarkAttendance(ctx, "user-1", "missing", "")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRegistrationServiceAttendanceSheetDerivesAbsence(t *testing.T) {
	f := newRegistrationFixture()
	date := "2024-10-03"
	reg, err := f.svc.Register(context.Background(), "user-1", dto.RegisterStudentRequest{StudentID: "student-1", BookingID: "b-fee", RegistrationDate: &date})
	require.NoError(t, err)
	_, err = f.svc.MarkAttendance(context.Background(), "user-1", reg.ID, "2024-10-07")
	require.NoError(t, err)

	sheet, err := f.svc.AttendanceSheet(context.Background(), reg.ID, dto.DateRangeQuery{From: "2024-09-30", To: "2024-10-13"})
	require.NoError(t, err)
	// Mon 30 Sep precedes the registration; Thu 3, Mon 7 and Thu 10 Oct are class days.
	require.Len(t, sheet.Days, 3)
	assert.Equal(t, "2024-10-03", sheet.Days[0].Date)
	assert.Equal(t, models.AttendanceStatusPresent, sheet.Days[1].Status)
	assert.Equal(t, 1, sheet.Present)
	assert.Equal(t, 2, sheet.Absent)

	_, err = f.svc.AttendanceSheet(context.Background(), reg.ID, dto.DateRangeQuery{From: "2024-10-13", To: "2024-10-01"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRegistrationServiceFastProcess(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	unpaid := f.register(t, "b-fee", nil)
	paid := f.register(t, "b-default", nil)
	f.register(t, "b-tue", nil)
	_, err := f.svc.RecordPayment(ctx, "user-1", paid.ID, dto.RecordPaymentRequest{Amount: decimal.NewFromInt(100), PaymentMethod: "cash", PaymentDate: "2024-10-01"})
	require.NoError(t, err)

	report, err := f.svc.FastProcess(ctx, "user-1", dto.FastProcessRequest{StudentID: "student-1"})
	require.NoError(t, err)
	assert.Equal(t, models.Monday, report.Weekday)
	require.Len(t, report.Items, 2, "tuesday booking is not processed on a monday")
	assert.Equal(t, 2, report.Succeeded)
	assert.Zero(t, report.Failed)

	items := map[string]models.FastProcessItem{}
	for _, item := range report.Items {
		items[item.RegistrationID] = item
	}
	assert.True(t, items[unpaid.ID].AttendanceMarked)
	assert.True(t, items[unpaid.ID].PaymentCreated)
	require.NotNil(t, items[unpaid.ID].PaymentID)
	assert.True(t, items[paid.ID].AttendanceMarked)
	assert.True(t, items[paid.ID].AlreadyPaid)
	assert.False(t, items[paid.ID].PaymentCreated)

	created := f.payments.byKey[models.MonthlyFastProcessKey(unpaid.ID, registrationNow)]
	assert.True(t, created.Amount.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, models.PaymentMethodCash, created.PaymentMethod)

	again, err := f.svc.FastProcess(ctx, "user-1", dto.FastProcessRequest{StudentID: "student-1"})
	require.NoError(t, err)
	for _, item := range again.Items {
		assert.True(t, item.AlreadyPaid)
		assert.False(t, item.PaymentCreated)
	}
	assert.Len(t, f.payments.payments, 2)
}

func TestRegistrationServiceFastProcessIsolatesFailures(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	broken := f.register(t, "b-fee", nil)
	healthy := f.register(t, "b-default", nil)
	f.attendance.failFor = map[string]error{broken.ID: errors.New("attendance table locked")}

	report, err := f.svc.FastProcess(ctx, "user-1", dto.FastProcessRequest{StudentID: "student-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	for _, item := range report.Items {
		switch item.RegistrationID {
		case broken.ID:
			assert.NotEmpty(t, item.AttendanceError)
			assert.True(t, item.PaymentCreated, "payment still runs when attendance fails")
		case healthy.ID:
			assert.True(t, item.Succeeded())
		}
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.fastProcessUnits.WithLabelValues("attendance", "failed")))

	_, err = f.svc.FastProcess(ctx, "user-1", dto.FastProcessRequest{StudentID: "ghost"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRegistrationServiceFastProcessPaymentFailureKeepsAttendance(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	first := f.register(t, "b-fee", nil)
	second := f.register(t, "b-default", nil)
	f.payments.failFor = map[string]error{second.ID: errors.New("boom")}

	report, err := f.svc.FastProcess(ctx, "user-1", dto.FastProcessRequest{StudentID: "student-1"})
	require.NoError(t, err)
	require.Len(t, report.Items, 2)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	items := map[string]models.FastProcessItem{}
	for _, item := range report.Items {
		items[item.RegistrationID] = item
	}
	assert.True(t, items[first.ID].AttendanceMarked)
	assert.True(t, items[first.ID].Succeeded())
	assert.True(t, items[second.ID].AttendanceMarked, "attendance stands when the payment fails")
	assert.False(t, items[second.ID].PaymentCreated)
	assert.NotEmpty(t, items[second.ID].PaymentError)
	assert.Len(t, f.attendance.marks, 2)
	assert.Len(t, f.payments.payments, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.fastProcessUnits.WithLabelValues("payment", "failed")))
}

func TestRegistrationServiceFastProcessRejectsFutureDate(t *testing.T) {
	f := newRegistrationFixture()
	f.register(t, "b-fee", nil)

	_, err := f.svc.FastProcess(context.Background(), "user-1", dto.FastProcessRequest{StudentID: "student-1", Date: "2024-10-21"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.attendance.marks)
	assert.Empty(t, f.payments.payments)

	report, err := f.svc.FastProcess(context.Background(), "user-1", dto.FastProcessRequest{StudentID: "student-1", Date: "2024-10-07"})
	require.NoError(t, err)
	assert.Equal(t, "2024-10-07", report.Date)
	assert.Len(t, report.Items, 1)
}

func TestRegistrationServiceListAndDelete(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	reg := f.register(t, "b-fee", nil)

	list, pagination, err := f.svc.List(ctx, dto.RegistrationQuery{StudentID: "student-1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)

	payments, err := f.svc.ListPayments(ctx, reg.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	require.NoError(t, f.svc.Delete(ctx, "user-1", reg.ID))
	assert.Equal(t, []string{reg.ID}, f.regs.deleted)
	assert.ErrorIs(t, f.svc.Delete(ctx, "user-1", reg.ID), appErrors.ErrNotFound)
}

func countAction(audit *recordingAudit, action string) int {
	n := 0
	for _, a := range audit.actions() {
		if a == action {
			n++
		}
	}
	return n
}
