package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type bookingStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error)
	ListLive(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, error)
	ListHallCandidates(ctx context.Context, exec sqlx.ExtContext, hallID string, days models.WeekdaySet, excludeID string) ([]models.Booking, error)
	CountRegistrations(ctx context.Context, bookingIDs []string) (map[string]int, error)
	UpdateFee(ctx context.Context, id string, fee decimal.NullDecimal, custom bool) error
	UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.BookingStatus) error
	DeleteCascade(ctx context.Context, tx sqlx.ExtContext, id string) error
}

type hallReader interface {
	FindByID(ctx context.Context, id string) (*models.Hall, error)
	Lock(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// BookingServiceConfig carries booking defaults.
type BookingServiceConfig struct {
	DefaultDuration time.Duration
	CacheTTL        time.Duration
}

// BookingService owns the booking catalog and its hall overlap rule.
type BookingService struct {
	repo      bookingStore
	halls     hallReader
	teachers  teacherReader
	tx        txRunner
	cache     *CacheService
	metrics   *MetricsService
	audit     AuditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    BookingServiceConfig
}

// BookingServiceOption configures optional collaborators.
type BookingServiceOption func(*BookingService)

// WithBookingCache enables read-through caching of monthly listings.
func WithBookingCache(cache *CacheService) BookingServiceOption {
	return func(s *BookingService) { s.cache = cache }
}

// WithBookingMetrics attaches metrics.
func WithBookingMetrics(metrics *MetricsService) BookingServiceOption {
	return func(s *BookingService) { s.metrics = metrics }
}

// WithBookingAudit attaches the audit recorder.
func WithBookingAudit(audit AuditRecorder) BookingServiceOption {
	return func(s *BookingService) { s.audit = audit }
}

// NewBookingService constructs the service.
func NewBookingService(repo bookingStore, halls hallReader, teachers teacherReader, tx txRunner, cfg BookingServiceConfig, logger *zap.Logger, opts ...BookingServiceOption) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = time.Hour
	}
	svc := &BookingService{
		repo:      repo,
		halls:     halls,
		teachers:  teachers,
		tx:        tx,
		validator: validator.New(),
		logger:    logger,
		config:    cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create schedules a new booking after checking the hall is free.
func (s *BookingService) Create(ctx context.Context, actorID string, req dto.CreateBookingRequest) (*models.BookingDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid booking payload")
	}
	days, err := parseWeekdays(req.Days)
	if err != nil {
		return nil, err
	}
	startTime, err := normaliseClock(req.StartTime)
	if err != nil {
		return nil, err
	}
	startDate, err := parseDateField(req.StartDate, "start_date")
	if err != nil {
		return nil, err
	}
	endDate, err := parseOptionalDate(req.EndDate, "end_date")
	if err != nil {
		return nil, err
	}
	if endDate != nil && endDate.Before(startDate) {
		return nil, invalid("end_date must not be before start_date")
	}
	if req.Fee != nil {
		if err := requireNonNegative(*req.Fee, "fee"); err != nil {
			return nil, err
		}
	}

	if err := s.ensureHall(ctx, req.HallID); err != nil {
		return nil, err
	}
	teacher, err := s.loadTeacher(ctx, req.TeacherID)
	if err != nil {
		return nil, err
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = int(s.config.DefaultDuration / time.Minute)
	}
	booking := models.Booking{
		HallID:          req.HallID,
		TeacherID:       req.TeacherID,
		StageID:         req.StageID,
		StartTime:       startTime,
		DurationMinutes: duration,
		Days:            days,
		StartDate:       startDate,
		EndDate:         endDate,
		Status:          models.BookingStatusActive,
	}
	if req.Fee != nil {
		booking.Fee = decimal.NullDecimal{Decimal: *req.Fee, Valid: true}
		booking.CustomFee = !req.Fee.Equal(teacher.DefaultFee)
	}
	if req.CustomFee != nil {
		booking.CustomFee = *req.CustomFee
	}

	err = s.withHallLock(ctx, booking, func(tx sqlx.ExtContext) error {
		return s.repo.Create(ctx, tx, &booking)
	})
	if err != nil {
		return nil, s.mapWriteErr(err, "failed to create booking")
	}
	s.invalidateListings(ctx)
	s.record(ctx, AuditEntry{ActorID: actorID, Action: models.AuditActionBookingCreate, Resource: "booking", ResourceID: booking.ID, After: booking})

	return s.Get(ctx, booking.ID)
}

// Get returns a booking with names and registration count.
func (s *BookingService) Get(ctx context.Context, id string) (*models.BookingDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, internal(err, "failed to load booking")
	}
	counts, err := s.repo.CountRegistrations(ctx, []string{detail.ID})
	if err != nil {
		return nil, internal(err, "failed to count registrations")
	}
	detail.RegistrationCount = counts[detail.ID]
	return detail, nil
}

// UpdateFee sets a manual booking fee. A nil fee resets the booking to follow the teacher default.
func (s *BookingService) UpdateFee(ctx context.Context, actorID, id string, req dto.UpdateBookingFeeRequest) (*models.BookingDetail, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	fee := decimal.NullDecimal{}
	custom := false
	if req.Fee != nil {
		if err := requireNonNegative(*req.Fee, "fee"); err != nil {
			return nil, err
		}
		fee = decimal.NullDecimal{Decimal: *req.Fee, Valid: true}
		custom = true
	}
	if req.Custom != nil {
		custom = *req.Custom
	}
	if err := s.repo.UpdateFee(ctx, id, fee, custom); err != nil {
		return nil, s.mapWriteErr(err, "failed to update booking fee")
	}
	s.invalidateListings(ctx)
	s.record(ctx, AuditEntry{ActorID: actorID, Action: models.AuditActionBookingFee, Resource: "booking", ResourceID: id,
		Before: existing.Fee, After: fee})
	return s.Get(ctx, id)
}

// Reschedule changes hall, days, time or date range under the same overlap rule as Create.
func (s *BookingService) Reschedule(ctx context.Context, actorID, id string, req dto.RescheduleBookingRequest) (*models.BookingDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid reschedule payload")
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *existing

	if req.HallID != nil && *req.HallID != existing.HallID {
		if err := s.ensureHall(ctx, *req.HallID); err != nil {
			return nil, err
		}
		updated.HallID = *req.HallID
	}
	if len(req.Days) > 0 {
		if updated.Days, err = parseWeekdays(req.Days); err != nil {
			return nil, err
		}
	}
	if req.StartTime != nil {
		if updated.StartTime, err = normaliseClock(*req.StartTime); err != nil {
			return nil, err
		}
	}
	if req.DurationMinutes != nil {
		updated.DurationMinutes = *req.DurationMinutes
	}
	if req.StartDate != nil {
		if updated.StartDate, err = parseDateField(*req.StartDate, "start_date"); err != nil {
			return nil, err
		}
	}
	if req.ClearEndDate {
		updated.EndDate = nil
	} else if req.EndDate != nil {
		if updated.EndDate, err = parseOptionalDate(req.EndDate, "end_date"); err != nil {
			return nil, err
		}
	}
	if updated.EndDate != nil && updated.EndDate.Before(updated.StartDate) {
		return nil, invalid("end_date must not be before start_date")
	}

	err = s.withHallLock(ctx, updated, func(tx sqlx.ExtContext) error {
		return s.repo.UpdateSchedule(ctx, tx, &updated)
	})
	if err != nil {
		return nil, s.mapWriteErr(err, "failed to reschedule booking")
	}
	s.invalidateListings(ctx)
	s.record(ctx, AuditEntry{ActorID: actorID, Action: models.AuditActionBookingReschedule, Resource: "booking", ResourceID: id, Before: existing, After: updated})
	return s.Get(ctx, id)
}

// UpdateStatus retires or reactivates a booking. Reactivation re-checks the hall.
func (s *BookingService) UpdateStatus(ctx context.Context, actorID, id string, status models.BookingStatus) (*models.BookingDetail, error) {
	if !status.Valid() {
		return nil, invalid("unsupported booking status %q", status)
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == status {
		return s.Get(ctx, id)
	}
	if status == models.BookingStatusActive {
		candidate := *existing
		candidate.Status = models.BookingStatusActive
		err = s.withHallLock(ctx, candidate, func(tx sqlx.ExtContext) error {
			return s.repo.UpdateStatus(ctx, tx, id, status)
		})
	} else {
		err = s.repo.UpdateStatus(ctx, nil, id, status)
	}
	if err != nil {
		return nil, s.mapWriteErr(err, "failed to update booking status")
	}
	s.invalidateListings(ctx)
	s.record(ctx, AuditEntry{ActorID: actorID, Action: models.AuditActionBookingStatus, Resource: "booking", ResourceID: id,
		Before: existing.Status, After: status})
	return s.Get(ctx, id)
}

// ListLiveForMonth returns bookings live in the month, each with its registration count.
func (s *BookingService) ListLiveForMonth(ctx context.Context, query dto.BookingQuery) ([]models.BookingDetail, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Validation(err, "invalid month filter")
	}
	month := time.Month(query.Month)
	key := liveBookingsCacheKey(query.Year, month, query.HallID, query.TeacherID, query.StageID)
	var cached []models.BookingDetail
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	bookings, err := s.repo.ListLive(ctx, models.BookingFilter{
		Year:      query.Year,
		Month:     month,
		HallID:    query.HallID,
		TeacherID: query.TeacherID,
		StageID:   query.StageID,
	})
	if err != nil {
		return nil, internal(err, "failed to list bookings")
	}
	ids := make([]string, len(bookings))
	for i := range bookings {
		ids[i] = bookings[i].ID
	}
	counts, err := s.repo.CountRegistrations(ctx, ids)
	if err != nil {
		return nil, internal(err, "failed to count registrations")
	}
	for i := range bookings {
		bookings[i].RegistrationCount = counts[bookings[i].ID]
	}
	if bookings == nil {
		bookings = []models.BookingDetail{}
	}
	s.cache.Set(ctx, key, bookings, s.config.CacheTTL)
	return bookings, nil
}

// Delete removes a booking with every registration, payment and attendance row under it.
func (s *BookingService) Delete(ctx context.Context, actorID, id string) error {
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		return s.repo.DeleteCascade(ctx, tx, id)
	}); err != nil {
		return s.mapWriteErr(err, "failed to delete booking")
	}
	s.invalidateListings(ctx)
	s.record(ctx, AuditEntry{ActorID: actorID, Action: models.AuditActionBookingDelete, Resource: "booking", ResourceID: id, Before: existing})
	return nil
}

// withHallLock runs the overlap check and write in one transaction holding the
// hall's row lock, so concurrent writers for a hall are checked one at a time.
func (s *BookingService) withHallLock(ctx context.Context, booking models.Booking, write func(tx sqlx.ExtContext) error) error {
	return s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.halls.Lock(ctx, tx, booking.HallID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "hall not found")
			}
			return err
		}
		if err := s.ensureNoConflict(ctx, tx, booking); err != nil {
			return err
		}
		return write(tx)
	})
}

func (s *BookingService) ensureNoConflict(ctx context.Context, exec sqlx.ExtContext, booking models.Booking) error {
	if booking.Status != models.BookingStatusActive {
		return nil
	}
	candidates, err := s.repo.ListHallCandidates(ctx, exec, booking.HallID, booking.Days, booking.ID)
	if err != nil {
		return internal(err, "failed to check hall availability")
	}
	var conflicts []models.BookingConflict
	for _, other := range candidates {
		if booking.ConflictsWith(other) {
			conflicts = append(conflicts, models.BookingConflict{
				BookingID: other.ID,
				HallID:    other.HallID,
				TeacherID: other.TeacherID,
				StartTime: other.StartTime,
				Days:      other.Days,
			})
		}
	}
	if len(conflicts) == 0 {
		return nil
	}
	s.metrics.BookingConflict()
	message := fmt.Sprintf("hall is already booked by %s at an overlapping time", conflicts[0].BookingID)
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrBookingConflict, message), conflicts)
}

func (s *BookingService) ensureHall(ctx context.Context, hallID string) error {
	hall, err := s.halls.FindByID(ctx, hallID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "hall not found")
		}
		return internal(err, "failed to load hall")
	}
	if !hall.Active {
		return invalid("hall %s is not active", hall.Name)
	}
	return nil
}

func (s *BookingService) loadTeacher(ctx context.Context, teacherID string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, internal(err, "failed to load teacher")
	}
	if !teacher.Active {
		return nil, invalid("teacher %s is not active", teacher.FullName)
	}
	return teacher, nil
}

func (s *BookingService) load(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, internal(err, "failed to load booking")
	}
	return booking, nil
}

func (s *BookingService) mapWriteErr(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}
	return internal(err, message)
}

func (s *BookingService) invalidateListings(ctx context.Context) {
	s.cache.InvalidatePattern(ctx, liveBookingsCachePattern)
}

func (s *BookingService) record(ctx context.Context, entry AuditEntry) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, entry)
}
