package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type feeCascadeStore interface {
	Apply(ctx context.Context, params repository.FeeCascadeParams) (*models.FeeCascadeResult, error)
}

type cascadeBookingReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Booking, error)
	ListCascadeCandidates(ctx context.Context, teacherID string, monthStart time.Time) ([]models.Booking, error)
}

// FeeCascadeService pushes a teacher default-fee change into selected bookings and,
// optionally, the current month's registrations.
type FeeCascadeService struct {
	repo      feeCascadeStore
	bookings  cascadeBookingReader
	teachers  teacherReader
	cache     *CacheService
	metrics   *MetricsService
	audit     AuditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// FeeCascadeOption configures optional collaborators.
type FeeCascadeOption func(*FeeCascadeService)

// WithFeeCascadeCache lets the service drop cached booking listings after a cascade.
func WithFeeCascadeCache(cache *CacheService) FeeCascadeOption {
	return func(s *FeeCascadeService) { s.cache = cache }
}

// WithFeeCascadeMetrics attaches metrics.
func WithFeeCascadeMetrics(metrics *MetricsService) FeeCascadeOption {
	return func(s *FeeCascadeService) { s.metrics = metrics }
}

// WithFeeCascadeAudit attaches the audit recorder.
func WithFeeCascadeAudit(audit AuditRecorder) FeeCascadeOption {
	return func(s *FeeCascadeService) { s.audit = audit }
}

// WithFeeCascadeClock overrides the clock and the business timezone.
func WithFeeCascadeClock(now func() time.Time, location *time.Location) FeeCascadeOption {
	return func(s *FeeCascadeService) {
		if now != nil {
			s.now = now
		}
		if location != nil {
			s.location = location
		}
	}
}

// NewFeeCascadeService constructs the service.
func NewFeeCascadeService(repo feeCascadeStore, bookings cascadeBookingReader, teachers teacherReader, logger *zap.Logger, opts ...FeeCascadeOption) *FeeCascadeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &FeeCascadeService{
		repo:      repo,
		bookings:  bookings,
		teachers:  teachers,
		validator: validator.New(),
		logger:    logger,
		location:  time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// ListCascadeCandidates returns the teacher's bookings that are live this month or upcoming.
func (s *FeeCascadeService) ListCascadeCandidates(ctx context.Context, teacherID string) ([]models.Booking, error) {
	if _, err := s.loadTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	today := models.DateOnly(s.now().In(s.location))
	monthStart, _ := models.MonthWindow(today.Year(), today.Month())
	bookings, err := s.bookings.ListCascadeCandidates(ctx, teacherID, monthStart)
	if err != nil {
		return nil, internal(err, "failed to list cascade candidates")
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}

// ApplyTeacherDefaultFee validates the selection, then commits the teacher fee,
// booking fees and optional registration fees in one transaction.
func (s *FeeCascadeService) ApplyTeacherDefaultFee(ctx context.Context, actorID, teacherID string, req dto.ApplyTeacherFeeRequest) (*models.FeeCascadeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid fee cascade payload")
	}
	if err := requireNonNegative(req.NewFee, "new_fee"); err != nil {
		return nil, err
	}
	if _, err := s.loadTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	ids := uniqueStrings(req.BookingIDs)
	bookings, err := s.bookings.ListByIDs(ctx, ids)
	if err != nil {
		return nil, internal(err, "failed to load selected bookings")
	}
	if len(bookings) != len(ids) {
		return nil, invalid("one or more selected bookings do not exist")
	}
	today := models.DateOnly(s.now().In(s.location))
	for _, b := range bookings {
		if b.TeacherID != teacherID {
			return nil, invalid("booking %s does not belong to the teacher", b.ID)
		}
		if !b.IsLiveIn(today.Year(), today.Month()) && !b.IsUpcoming(today) {
			return nil, invalid("booking %s is neither live this month nor upcoming", b.ID)
		}
	}

	result, err := s.repo.Apply(ctx, repository.FeeCascadeParams{
		TeacherID:           teacherID,
		NewFee:              req.NewFee,
		BookingIDs:          ids,
		ApplyToCurrentMonth: req.ApplyToCurrentMonth,
	})
	if err != nil {
		s.metrics.FeeCascade(false)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, internal(err, "failed to apply teacher fee")
	}
	s.metrics.FeeCascade(true)
	s.cache.InvalidatePattern(ctx, liveBookingsCachePattern)
	s.logger.Info("teacher fee cascaded",
		zap.String("teacher_id", teacherID),
		zap.String("new_fee", req.NewFee.String()),
		zap.Int("updated_bookings", len(result.UpdatedBookings)),
		zap.Int("skipped_bookings", len(result.SkippedCustomBookings)),
		zap.Int64("updated_registrations", result.UpdatedRegistrations),
	)
	if s.audit != nil {
		s.audit.Record(ctx, AuditEntry{ActorID: actorID, Action: models.AuditActionFeeCascade, Resource: "teacher", ResourceID: teacherID, After: result})
	}
	return result, nil
}

func (s *FeeCascadeService) loadTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, internal(err, "failed to load teacher")
	}
	return teacher, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
