package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type registrationStore interface {
	Create(ctx context.Context, reg *models.StudentRegistration) error
	Exists(ctx context.Context, studentID, bookingID string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.StudentRegistration, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.StudentRegistration, error)
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error)
	UpdateTotalFees(ctx context.Context, id string, totalFees decimal.Decimal) (*models.StudentRegistration, error)
	DeleteCascade(ctx context.Context, tx sqlx.ExtContext, id string) error
}

type paymentStore interface {
	Record(ctx context.Context, payment *models.PaymentRecord) (*models.PaymentResult, error)
	ListByRegistration(ctx context.Context, registrationID string) ([]models.PaymentRecord, error)
	PaidThisMonth(ctx context.Context, registrationID string, from, to time.Time) (repository.MonthTotals, error)
	TotalPaid(ctx context.Context, registrationID string) (decimal.Decimal, error)
}

type attendanceStore interface {
	Mark(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error)
	ListByRegistration(ctx context.Context, registrationID string, from, to time.Time) ([]models.AttendanceRecord, error)
}

type bookingLookup interface {
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Booking, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

const maxAttendanceSheetDays = 366

// RegistrationService owns the student registration ledger: fees, payments and attendance.
type RegistrationService struct {
	repo       registrationStore
	payments   paymentStore
	attendance attendanceStore
	bookings   bookingLookup
	teachers   teacherReader
	students   studentReader
	tx         txRunner
	metrics    *MetricsService
	audit      AuditRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	location   *time.Location
	now        func() time.Time
}

// RegistrationServiceOption configures optional collaborators.
type RegistrationServiceOption func(*RegistrationService)

// WithRegistrationMetrics attaches metrics.
func WithRegistrationMetrics(metrics *MetricsService) RegistrationServiceOption {
	return func(s *RegistrationService) { s.metrics = metrics }
}

// WithRegistrationAudit attaches the audit recorder.
func WithRegistrationAudit(audit AuditRecorder) RegistrationServiceOption {
	return func(s *RegistrationService) { s.audit = audit }
}

// WithRegistrationClock overrides the clock and the business timezone.
func WithRegistrationClock(now func() time.Time, location *time.Location) RegistrationServiceOption {
	return func(s *RegistrationService) {
		if now != nil {
			s.now = now
		}
		if location != nil {
			s.location = location
		}
	}
}

// NewRegistrationService constructs the service.
func NewRegistrationService(repo registrationStore, payments paymentStore, attendance attendanceStore, bookings bookingLookup,
	teachers teacherReader, students studentReader, tx txRunner, logger *zap.Logger, opts ...RegistrationServiceOption) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RegistrationService{
		repo:       repo,
		payments:   payments,
		attendance: attendance,
		bookings:   bookings,
		teachers:   teachers,
		students:   students,
		tx:         tx,
		validator:  validator.New(),
		logger:     logger,
		location:   time.UTC,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

func (s *RegistrationService) today() time.Time {
	return models.DateOnly(s.now().In(s.location))
}

// Register enrols a student in an active booking. The fee defaults to the booking fee,
// then the teacher default; an explicit fee that differs from that default is flagged
// as overridden so later fee cascades leave it alone.
func (s *RegistrationService) Register(ctx context.Context, actorID string, req dto.RegisterStudentRequest) (*models.StudentRegistration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid registration payload")
	}
	if req.TotalFees != nil {
		if err := requireNonNegative(*req.TotalFees, "total_fees"); err != nil {
			return nil, err
		}
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internal(err, "failed to load student")
	}
	if !student.Active {
		return nil, invalid("student %s is not active", student.FullName)
	}
	booking, err := s.loadBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusActive {
		return nil, invalid("booking is %s and does not accept registrations", booking.Status)
	}

	defaultFee := booking.Fee.Decimal
	if !booking.Fee.Valid {
		teacher, err := s.teachers.FindByID(ctx, booking.TeacherID)
		if err != nil {
			return nil, internal(err, "failed to resolve teacher default fee")
		}
		defaultFee = teacher.DefaultFee
	}

	exists, err := s.repo.Exists(ctx, req.StudentID, req.BookingID)
	if err != nil {
		return nil, internal(err, "failed to check existing registration")
	}
	if exists {
		return nil, appErrors.ErrDuplicateRegistration
	}

	registrationDate := s.today()
	if req.RegistrationDate != nil && strings.TrimSpace(*req.RegistrationDate) != "" {
		if registrationDate, err = parseDateField(*req.RegistrationDate, "registration_date"); err != nil {
			return nil, err
		}
	}

	reg := &models.StudentRegistration{
		StudentID:        req.StudentID,
		BookingID:        req.BookingID,
		TotalFees:        defaultFee,
		PaidAmount:       decimal.Zero,
		RegistrationDate: registrationDate,
	}
	if req.TotalFees != nil {
		reg.TotalFees = *req.TotalFees
		reg.FeeOverridden = !req.TotalFees.Equal(defaultFee)
	}
	if err := s.repo.Create(ctx, reg); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.ErrDuplicateRegistration
		}
		return nil, internal(err, "failed to create registration")
	}
	s.record(ctx, AuditEntry{ActorID: actorID, Action: models.AuditActionRegistrationCreate, Resource: "registration", ResourceID: reg.ID, After: reg})
	return reg, nil
}

// Get returns a registration.
func (s *RegistrationService) Get(ctx context.Context, id string) (*models.StudentRegistration, error) {
	return s.loadRegistration(ctx, id)
}

// List returns registrations with pagination metadata.
func (s *RegistrationService) List(ctx context.Context, query dto.RegistrationQuery) ([]models.RegistrationDetail, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Validation(err, "invalid registration filter")
	}
	filter := models.RegistrationFilter{
		StudentID:     query.StudentID,
		BookingID:     query.BookingID,
		PaymentStatus: models.PaymentStatus(query.PaymentStatus),
		Page:          query.Page,
		PageSize:      query.PageSize,
	}
	regs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list registrations")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	if regs == nil {
		regs = []models.RegistrationDetail{}
	}
	return regs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// UpdateFee overrides the registration fee and re-derives its payment status.
func (s *RegistrationService) UpdateFee(ctx context.Context, actorID, id string, totalFees decimal.Decimal) (*models.StudentRegistration, error) {
	if err := requireNonNegative(totalFees, "total_fees"); err != nil {
		return nil, err
	}
	reg, err := s.repo.UpdateTotalFees(ctx, id, totalFees)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, internal(err, "failed to update registration fee")
	}
	s.record(ctx, AuditEntry{ActorID: actorID, Action: models.AuditActionRegistrationFee, Resource: "registration", ResourceID: id, After: reg})
	return reg, nil
}

// RecordPayment appends a payment and returns the refreshed registration. A repeated
// idempotency key returns the original payment without counting it twice.
func (s *RegistrationService) RecordPayment(ctx context.Context, actorID, registrationID string, req dto.RecordPaymentRequest) (*models.PaymentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payment payload")
	}
	if err := requirePositive(req.Amount, "amount"); err != nil {
		return nil, err
	}
	paymentDate := s.today()
	if strings.TrimSpace(req.PaymentDate) != "" {
		var err error
		if paymentDate, err = parseDateField(req.PaymentDate, "payment_date"); err != nil {
			return nil, err
		}
	}
	payment := &models.PaymentRecord{
		RegistrationID: registrationID,
		Amount:         req.Amount,
		PaymentDate:    paymentDate,
		PaymentMethod:  models.PaymentMethod(req.PaymentMethod),
		Notes:          req.Notes,
		CreatedBy:      optionalString(actorID),
	}
	if req.IdempotencyKey != nil {
		payment.IdempotencyKey = optionalString(*req.IdempotencyKey)
	}
	return s.recordPayment(ctx, actorID, payment)
}

func (s *RegistrationService) recordPayment(ctx context.Context, actorID string, payment *models.PaymentRecord) (*models.PaymentResult, error) {
	result, err := s.payments.Record(ctx, payment)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		case errors.Is(err, repository.ErrIdempotencyKeyReused):
			return nil, appErrors.Clone(appErrors.ErrConflict, "idempotency key already used for another registration")
		default:
			return nil, internal(err, "failed to record payment")
		}
	}
	s.metrics.PaymentRecorded(string(payment.PaymentMethod), result.Replayed)
	if !result.Replayed {
		s.record(ctx, AuditEntry{ActorID: actorID, Action: models.AuditActionPaymentRecord, Resource: "registration",
			ResourceID: payment.RegistrationID, After: result.Payment})
	}
	return result, nil
}

// ListPayments returns the payments of a registration.
func (s *RegistrationService) ListPayments(ctx context.Context, registrationID string) ([]models.PaymentRecord, error) {
	if _, err := s.loadRegistration(ctx, registrationID); err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByRegistration(ctx, registrationID)
	if err != nil {
		return nil, internal(err, "failed to list payments")
	}
	if payments == nil {
		payments = []models.PaymentRecord{}
	}
	return payments, nil
}

// MonthlyCollectionStatus reports whether any payment was taken within the month.
// It is independent of the registration's all-time payment status.
func (s *RegistrationService) MonthlyCollectionStatus(ctx context.Context, registrationID string, year int, month time.Month) (*models.MonthlyCollectionStatus, error) {
	if month < time.January || month > time.December {
		return nil, invalid("month must be between 1 and 12")
	}
	if _, err := s.loadRegistration(ctx, registrationID); err != nil {
		return nil, err
	}
	status, err := s.monthlyStatus(ctx, registrationID, year, month)
	if err != nil {
		return nil, err
	}
	if status.TotalPaid, err = s.payments.TotalPaid(ctx, registrationID); err != nil {
		return nil, internal(err, "failed to aggregate payments")
	}
	return status, nil
}

func (s *RegistrationService) monthlyStatus(ctx context.Context, registrationID string, year int, month time.Month) (*models.MonthlyCollectionStatus, error) {
	from, to := models.MonthWindow(year, month)
	totals, err := s.payments.PaidThisMonth(ctx, registrationID, from, to)
	if err != nil {
		return nil, internal(err, "failed to aggregate monthly payments")
	}
	return &models.MonthlyCollectionStatus{
		RegistrationID:    registrationID,
		Year:              year,
		Month:             month,
		PaidThisMonth:     totals.Count > 0,
		AmountThisMonth:   totals.Amount,
		PaymentsThisMonth: totals.Count,
	}, nil
}

// MarkAttendance marks the registration present on date; marking twice is a no-op.
func (s *RegistrationService) MarkAttendance(ctx context.Context, actorID, registrationID, rawDate string) (*models.AttendanceMark, error) {
	date := s.today()
	if strings.TrimSpace(rawDate) != "" {
		var err error
		if date, err = parseDateField(rawDate, "date"); err != nil {
			return nil, err
		}
	}
	if date.After(s.today()) {
		return nil, invalid("attendance cannot be marked for a future date")
	}
	if _, err := s.loadRegistration(ctx, registrationID); err != nil {
		return nil, err
	}
	return s.mark(ctx, actorID, registrationID, date)
}

func (s *RegistrationService) mark(ctx context.Context, actorID, registrationID string, date time.Time) (*models.AttendanceMark, error) {
	record, created, err := s.attendance.Mark(ctx, &models.AttendanceRecord{
		RegistrationID: registrationID,
		AttendanceDate: date,
		MarkedAt:       s.now().UTC(),
		CreatedBy:      optionalString(actorID),
	})
	if err != nil {
		return nil, internal(err, "failed to mark attendance")
	}
	return &models.AttendanceMark{Record: *record, Created: created}, nil
}

// AttendanceSheet derives present and absent days for a registration in [from, to].
func (s *RegistrationService) AttendanceSheet(ctx context.Context, registrationID string, query dto.DateRangeQuery) (*models.AttendanceSheetResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Validation(err, "invalid date range")
	}
	from, err := parseDateField(query.From, "from")
	if err != nil {
		return nil, err
	}
	to, err := parseDateField(query.To, "to")
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, invalid("to must not be before from")
	}
	if to.Sub(from) > maxAttendanceSheetDays*24*time.Hour {
		return nil, invalid("date range must not exceed %d days", maxAttendanceSheetDays)
	}

	reg, err := s.loadRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	booking, err := s.loadBooking(ctx, reg.BookingID)
	if err != nil {
		return nil, err
	}
	records, err := s.attendance.ListByRegistration(ctx, registrationID, from, to)
	if err != nil {
		return nil, internal(err, "failed to load attendance")
	}
	present := make(map[string]bool, len(records))
	for _, rec := range records {
		present[rec.AttendanceDate.Format(models.DateLayout)] = true
	}
	sheet := models.BuildAttendanceSheet(*booking, *reg, present, from, to)
	return &sheet, nil
}

// FastProcess marks today's attendance for every class the student has today and,
// where this month's fee is not yet collected, takes it in cash. Each attendance
// and payment is an independent unit; failures are reported per registration and
// never undo the units that succeeded.
func (s *RegistrationService) FastProcess(ctx context.Context, actorID string, req dto.FastProcessRequest) (*models.FastProcessReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid fast process payload")
	}
	today := s.today()
	if strings.TrimSpace(req.Date) != "" {
		var err error
		if today, err = parseDateField(req.Date, "date"); err != nil {
			return nil, err
		}
	}
	if today.After(s.today()) {
		return nil, invalid("attendance cannot be marked for a future date")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internal(err, "failed to load student")
	}

	regs, err := s.repo.ListByStudent(ctx, req.StudentID)
	if err != nil {
		return nil, internal(err, "failed to list student registrations")
	}
	ids := make([]string, len(regs))
	for i, reg := range regs {
		ids[i] = reg.BookingID
	}
	bookings, err := s.bookings.ListByIDs(ctx, ids)
	if err != nil {
		return nil, internal(err, "failed to load student bookings")
	}
	byID := make(map[string]models.Booking, len(bookings))
	for _, b := range bookings {
		byID[b.ID] = b
	}

	report := &models.FastProcessReport{
		StudentID: req.StudentID,
		Date:      today.Format(models.DateLayout),
		Weekday:   models.WeekdayOf(today),
		Items:     []models.FastProcessItem{},
	}
	for _, reg := range regs {
		booking, ok := byID[reg.BookingID]
		if !ok || !booking.RunsOn(today) {
			continue
		}
		item := s.fastProcessOne(ctx, actorID, reg, today)
		if item.Succeeded() {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Items = append(report.Items, item)
	}
	return report, nil
}

func (s *RegistrationService) fastProcessOne(ctx context.Context, actorID string, reg models.StudentRegistration, today time.Time) models.FastProcessItem {
	item := models.FastProcessItem{RegistrationID: reg.ID, BookingID: reg.BookingID}
	log := s.logger.With(zap.String("registration_id", reg.ID), zap.String("date", today.Format(models.DateLayout)))

	if _, err := s.mark(ctx, actorID, reg.ID, today); err != nil {
		item.AttendanceError = err.Error()
		log.Error("fast process attendance failed", zap.Error(err))
		s.metrics.FastProcessUnit("attendance", false)
	} else {
		item.AttendanceMarked = true
		s.metrics.FastProcessUnit("attendance", true)
	}

	status, err := s.monthlyStatus(ctx, reg.ID, today.Year(), today.Month())
	if err != nil {
		item.PaymentError = err.Error()
		log.Error("fast process monthly status failed", zap.Error(err))
		s.metrics.FastProcessUnit("payment", false)
		return item
	}
	if status.PaidThisMonth {
		item.AlreadyPaid = true
		return item
	}
	if !reg.TotalFees.IsPositive() {
		return item
	}

	key := models.MonthlyFastProcessKey(reg.ID, today)
	result, err := s.recordPayment(ctx, actorID, &models.PaymentRecord{
		RegistrationID: reg.ID,
		Amount:         reg.TotalFees,
		PaymentDate:    today,
		PaymentMethod:  models.PaymentMethodCash,
		IdempotencyKey: &key,
		CreatedBy:      optionalString(actorID),
	})
	if err != nil {
		item.PaymentError = err.Error()
		log.Error("fast process payment failed", zap.Error(err))
		s.metrics.FastProcessUnit("payment", false)
		return item
	}
	s.metrics.FastProcessUnit("payment", true)
	if result.Replayed {
		item.AlreadyPaid = true
		return item
	}
	paymentID := result.Payment.ID
	item.PaymentCreated = true
	item.PaymentID = &paymentID
	return item
}

// Delete removes a registration with its payments and attendance.
func (s *RegistrationService) Delete(ctx context.Context, actorID, id string) error {
	existing, err := s.loadRegistration(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		return s.repo.DeleteCascade(ctx, tx, id)
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return internal(err, "failed to delete registration")
	}
	s.record(ctx, AuditEntry{ActorID: actorID, Action: models.AuditActionRegistrationDelete, Resource: "registration", ResourceID: id, Before: existing})
	return nil
}

func (s *RegistrationService) loadRegistration(ctx context.Context, id string) (*models.StudentRegistration, error) {
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, internal(err, "failed to load registration")
	}
	return reg, nil
}

func (s *RegistrationService) loadBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, internal(err, "failed to load booking")
	}
	return booking, nil
}

func (s *RegistrationService) record(ctx context.Context, entry AuditEntry) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, entry)
}
