package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type settlementStore interface {
	Create(ctx context.Context, settlement *models.DailySettlement) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DailySettlement, error)
	List(ctx context.Context, filter models.SettlementFilter) ([]models.DailySettlement, error)
	Totals(ctx context.Context, date time.Time) ([]models.SettlementTotalsRow, error)
	ApplyChanges(ctx context.Context, exec sqlx.ExtContext, settlement *models.DailySettlement, from models.SettlementState) error
	TransitionState(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.SettlementState) error
}

type changeRequestStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, req *models.SettlementChangeRequest) error
	FindByID(ctx context.Context, id string) (*models.SettlementChangeRequest, error)
	List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.SettlementChangeRequest, error)
	Resolve(ctx context.Context, exec sqlx.ExtContext, params repository.ResolveParams) error
}

// Actor is the authenticated caller of a ledger operation.
type Actor struct {
	ID   string
	Role models.UserRole
}

// SettlementMutation is the outcome of an edit or delete: either applied directly or
// filed as a change request awaiting review.
type SettlementMutation struct {
	Settlement *models.DailySettlement         `json:"settlement"`
	Request    *models.SettlementChangeRequest `json:"request,omitempty"`
	Applied    bool                            `json:"applied"`
}

var errRequestProcessed = errors.New("change request already processed")

// SettlementServiceConfig tunes the ledger.
type SettlementServiceConfig struct {
	SummaryTTL time.Duration
}

// SettlementService runs the daily settlement ledger and its moderation workflow.
type SettlementService struct {
	repo      settlementStore
	requests  changeRequestStore
	tx        txRunner
	cache     *CacheService
	metrics   *MetricsService
	audit     AuditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SettlementServiceConfig
	location  *time.Location
	now       func() time.Time
}

// SettlementServiceOption configures optional collaborators.
type SettlementServiceOption func(*SettlementService)

// WithSettlementCache enables summary caching.
func WithSettlementCache(cache *CacheService) SettlementServiceOption {
	return func(s *SettlementService) { s.cache = cache }
}

// WithSettlementMetrics attaches metrics.
func WithSettlementMetrics(metrics *MetricsService) SettlementServiceOption {
	return func(s *SettlementService) { s.metrics = metrics }
}

// WithSettlementAudit attaches the audit recorder.
func WithSettlementAudit(audit AuditRecorder) SettlementServiceOption {
	return func(s *SettlementService) { s.audit = audit }
}

// WithSettlementClock overrides the clock and the business timezone.
func WithSettlementClock(now func() time.Time, location *time.Location) SettlementServiceOption {
	return func(s *SettlementService) {
		if now != nil {
			s.now = now
		}
		if location != nil {
			s.location = location
		}
	}
}

// NewSettlementService constructs the service.
func NewSettlementService(repo settlementStore, requests changeRequestStore, tx txRunner, cfg SettlementServiceConfig, logger *zap.Logger, opts ...SettlementServiceOption) *SettlementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SettlementService{
		repo:      repo,
		requests:  requests,
		tx:        tx,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
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

func (s *SettlementService) today() time.Time {
	return models.DateOnly(s.now().In(s.location))
}

// Create records a settlement entry. Space managers may only record today's entries.
func (s *SettlementService) Create(ctx context.Context, actor Actor, req dto.CreateSettlementRequest) (*models.DailySettlement, error) {
	if !CanCreateSettlement(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot record settlements")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid settlement payload")
	}
	today := s.today()
	date := today
	if strings.TrimSpace(req.Date) != "" {
		var err error
		if date, err = parseDateField(req.Date, "date"); err != nil {
			return nil, err
		}
	}
	if !SettlementDateAllowed(actor.Role, date, today) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "space managers may only record settlements for today")
	}

	now := s.now().UTC()
	settlement := &models.DailySettlement{
		ID:             uuid.NewString(),
		SettlementDate: date,
		Type:           models.SettlementType(req.Type),
		Amount:         req.Amount,
		Category:       trimmedPtr(req.Category),
		SourceName:     strings.TrimSpace(req.SourceName),
		TeacherID:      trimmedPtr(req.TeacherID),
		SubjectID:      trimmedPtr(req.SubjectID),
		Notes:          trimmedPtr(req.Notes),
		State:          models.SettlementStateActive,
		CreatedBy:      actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.SourceType != nil {
		st := models.SourceType(*req.SourceType)
		settlement.SourceType = &st
	}
	if err := validateSettlement(*settlement); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, settlement); err != nil {
		return nil, internal(err, "failed to create settlement")
	}
	s.cache.Invalidate(ctx, summaryCacheKey(date))
	s.record(ctx, AuditEntry{ActorID: actor.ID, Action: models.AuditActionSettlementCreate, Resource: "settlement", ResourceID: settlement.ID, After: settlement})
	return settlement, nil
}

// Update edits a settlement. Moderators apply the change at once; the creator of the
// entry files a change request instead; anyone else is refused.
func (s *SettlementService) Update(ctx context.Context, actor Actor, id string, req dto.UpdateSettlementRequest) (*SettlementMutation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid settlement update")
	}
	changes, err := decodeChanges(req.Changes)
	if err != nil {
		return nil, err
	}
	existing, err := s.loadLive(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := changes.ApplyTo(*existing)
	if err := validateSettlement(updated); err != nil {
		return nil, err
	}

	if CanModerateSettlement(actor.Role) {
		updated.State = models.SettlementStateActive
		if err := s.repo.ApplyChanges(ctx, nil, &updated, models.SettlementStateActive); err != nil {
			return nil, s.mapStateErr(err, "failed to update settlement")
		}
		s.cache.Invalidate(ctx, summaryCacheKey(existing.SettlementDate))
		s.record(ctx, AuditEntry{ActorID: actor.ID, Action: models.AuditActionSettlementUpdate, Resource: "settlement", ResourceID: id, Before: existing, After: updated})
		return &SettlementMutation{Settlement: &updated, Applied: true}, nil
	}

	payload, err := json.Marshal(changes)
	if err != nil {
		return nil, internal(err, "failed to encode requested changes")
	}
	return s.fileRequest(ctx, actor, existing, models.ChangeRequestEdit, payload, req.Reason)
}

// Delete removes a settlement from the ledger, or asks for it to be removed.
func (s *SettlementService) Delete(ctx context.Context, actor Actor, id string, req dto.DeleteSettlementRequest) (*SettlementMutation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid settlement delete")
	}
	existing, err := s.loadLive(ctx, id)
	if err != nil {
		return nil, err
	}

	if CanModerateSettlement(actor.Role) {
		if err := checkTransition(existing.State, models.SettlementStateResolvedDeleted); err != nil {
			return nil, err
		}
		if err := s.repo.TransitionState(ctx, nil, id, existing.State, models.SettlementStateResolvedDeleted); err != nil {
			return nil, s.mapStateErr(err, "failed to delete settlement")
		}
		deleted := *existing
		deleted.State = models.SettlementStateResolvedDeleted
		s.cache.Invalidate(ctx, summaryCacheKey(existing.SettlementDate))
		s.record(ctx, AuditEntry{ActorID: actor.ID, Action: models.AuditActionSettlementDelete, Resource: "settlement", ResourceID: id, Before: existing})
		return &SettlementMutation{Settlement: &deleted, Applied: true}, nil
	}
	return s.fileRequest(ctx, actor, existing, models.ChangeRequestDelete, nil, req.Reason)
}

func (s *SettlementService) fileRequest(ctx context.Context, actor Actor, existing *models.DailySettlement, kind models.ChangeRequestKind, changes models.ChangeSet, reason string) (*SettlementMutation, error) {
	if !CanCreateSettlement(actor.Role) || existing.CreatedBy != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the creator or a moderator may change this settlement")
	}
	pending := kind.PendingState()
	if err := checkTransition(existing.State, pending); err != nil {
		return nil, err
	}
	request := &models.SettlementChangeRequest{
		ID:               uuid.NewString(),
		SettlementID:     existing.ID,
		Kind:             kind,
		RequestedChanges: changes,
		Reason:           strings.TrimSpace(reason),
		Status:           models.ChangeRequestPending,
		RequestedBy:      actor.ID,
		RequestedAt:      s.now().UTC(),
	}
	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.requests.Create(ctx, tx, request); err != nil {
			return err
		}
		return s.repo.TransitionState(ctx, tx, existing.ID, existing.State, pending)
	})
	if err != nil {
		return nil, s.mapStateErr(err, "failed to file change request")
	}
	s.metrics.SettlementRequest(string(kind), "filed")
	s.cache.Invalidate(ctx, summaryCacheKey(existing.SettlementDate))
	s.record(ctx, AuditEntry{ActorID: actor.ID, Action: models.AuditActionSettlementRequest, Resource: "settlement", ResourceID: existing.ID, After: request})

	settlement := *existing
	settlement.State = pending
	return &SettlementMutation{Settlement: &settlement, Request: request}, nil
}

// ReviewRequest approves or rejects a pending change request. Two reviewers racing on
// the same request cannot both win: the loser gets a conflict.
func (s *SettlementService) ReviewRequest(ctx context.Context, actor Actor, requestID string, req dto.ReviewChangeRequest) (*models.SettlementChangeRequest, error) {
	if !CanModerateSettlement(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only moderators may review change requests")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid review payload")
	}
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, internal(err, "failed to load change request")
	}
	if request.Status != models.ChangeRequestPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "change request already processed")
	}

	approve := req.Decision == "approve"
	status := models.ChangeRequestRejected
	if approve {
		status = models.ChangeRequestApproved
	}
	reviewedAt := s.now().UTC()
	note := trimmedPtr(&req.Note)

	var settlementDate time.Time
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.requests.Resolve(ctx, tx, repository.ResolveParams{
			ID: request.ID, Status: status, ReviewedBy: actor.ID, ReviewedAt: reviewedAt, Note: note,
		}); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errRequestProcessed
			}
			return err
		}
		settlement, err := s.repo.FindByID(ctx, tx, request.SettlementID)
		if err != nil {
			return err
		}
		settlementDate = settlement.SettlementDate
		pending := request.Kind.PendingState()
		target := models.SettlementStateActive
		if approve && request.Kind == models.ChangeRequestDelete {
			target = models.SettlementStateResolvedDeleted
		}
		if settlement.State != pending {
			return appErrors.Clone(appErrors.ErrConflict, "settlement is not awaiting this request")
		}
		if err := checkTransition(pending, target); err != nil {
			return err
		}
		switch {
		case !approve || request.Kind == models.ChangeRequestDelete:
			return s.repo.TransitionState(ctx, tx, settlement.ID, pending, target)
		default:
			changes, err := decodeChanges(request.RequestedChanges)
			if err != nil {
				return err
			}
			updated := changes.ApplyTo(*settlement)
			updated.State = models.SettlementStateActive
			return s.repo.ApplyChanges(ctx, tx, &updated, pending)
		}
	})
	if err != nil {
		if errors.Is(err, errRequestProcessed) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "change request already processed")
		}
		return nil, s.mapStateErr(err, "failed to resolve change request")
	}

	request.Status = status
	request.ReviewedBy = &actor.ID
	request.ReviewedAt = &reviewedAt
	if note != nil {
		request.Note = note
	}
	s.metrics.SettlementRequest(string(request.Kind), string(status))
	s.cache.Invalidate(ctx, summaryCacheKey(settlementDate))
	s.record(ctx, AuditEntry{ActorID: actor.ID, Action: models.AuditActionSettlementReview, Resource: "settlement_change_request", ResourceID: request.ID, After: request})
	return request, nil
}

// List returns a day's entries with the pending badge.
func (s *SettlementService) List(ctx context.Context, actor Actor, query dto.SettlementQuery) ([]models.SettlementListItem, error) {
	if !CanViewSettlements(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot view settlements")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Validation(err, "invalid settlement filter")
	}
	date, err := s.dateOrToday(query.Date)
	if err != nil {
		return nil, err
	}
	settlements, err := s.repo.List(ctx, models.SettlementFilter{
		Date:           date,
		Type:           models.SettlementType(query.Type),
		IncludeDeleted: query.IncludeDeleted && CanModerateSettlement(actor.Role),
	})
	if err != nil {
		return nil, internal(err, "failed to list settlements")
	}
	items := make([]models.SettlementListItem, len(settlements))
	for i, st := range settlements {
		items[i] = models.SettlementListItem{DailySettlement: st, Pending: st.State.Pending()}
	}
	return items, nil
}

// ListRequests lists change requests. Non-moderators only see their own.
func (s *SettlementService) ListRequests(ctx context.Context, actor Actor, query dto.ChangeRequestQuery) ([]models.SettlementChangeRequest, error) {
	if !CanViewSettlements(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot view change requests")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Validation(err, "invalid change request filter")
	}
	filter := models.ChangeRequestFilter{SettlementID: query.SettlementID, Limit: query.Limit, Offset: query.Offset}
	for _, status := range query.Status {
		filter.Status = append(filter.Status, models.ChangeRequestStatus(status))
	}
	if !CanModerateSettlement(actor.Role) {
		filter.RequestedBy = actor.ID
	}
	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, internal(err, "failed to list change requests")
	}
	if requests == nil {
		requests = []models.SettlementChangeRequest{}
	}
	return requests, nil
}

// GetDailySummary totals a day's entries, excluding resolved deletions. Entries with
// a pending request still count until the request is approved.
func (s *SettlementService) GetDailySummary(ctx context.Context, actor Actor, rawDate string) (*models.DailySummary, error) {
	if !CanViewSettlements(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot view settlements")
	}
	date, err := s.dateOrToday(rawDate)
	if err != nil {
		return nil, err
	}
	key := summaryCacheKey(date)
	var cached models.DailySummary
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	rows, err := s.repo.Totals(ctx, date)
	if err != nil {
		return nil, internal(err, "failed to compute daily summary")
	}
	summary := models.SummariseSettlements(date.Format(models.DateLayout), rows)
	s.cache.Set(ctx, key, summary, s.cfg.SummaryTTL)
	return &summary, nil
}

func (s *SettlementService) dateOrToday(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return s.today(), nil
	}
	return parseDateField(raw, "date")
}

func (s *SettlementService) loadLive(ctx context.Context, id string) (*models.DailySettlement, error) {
	settlement, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "settlement not found")
		}
		return nil, internal(err, "failed to load settlement")
	}
	switch {
	case settlement.State == models.SettlementStateResolvedDeleted:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "settlement not found")
	case settlement.State.Pending():
		return nil, appErrors.Clone(appErrors.ErrConflict, "a change request is already pending for this settlement")
	}
	return settlement, nil
}

func checkTransition(from, to models.SettlementState) error {
	if !from.CanTransition(to) {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("settlement cannot move from %s to %s", from, to))
	}
	return nil
}

// mapStateErr turns a lost state guard into a conflict.
func (s *SettlementService) mapStateErr(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrConflict, "settlement state changed concurrently")
	}
	return internal(err, message)
}

func (s *SettlementService) record(ctx context.Context, entry AuditEntry) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, entry)
}

func decodeChanges(raw []byte) (models.SettlementChanges, error) {
	var changes models.SettlementChanges
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&changes); err != nil {
		return changes, invalid("changes must only contain editable settlement fields")
	}
	if changes.Empty() {
		return changes, invalid("changes must not be empty")
	}
	return changes, nil
}

func validateSettlement(st models.DailySettlement) error {
	if err := requirePositive(st.Amount, "amount"); err != nil {
		return err
	}
	if st.SourceName == "" {
		return invalid("source_name is required")
	}
	switch st.Type {
	case models.SettlementTypeIncome:
		if st.SourceType == nil {
			return invalid("income entries require source_type")
		}
		if *st.SourceType != models.SourceTypeTeacher && *st.SourceType != models.SourceTypeOther {
			return invalid("source_type must be teacher or other")
		}
		if *st.SourceType == models.SourceTypeTeacher && st.TeacherID == nil {
			return invalid("teacher income requires teacher_id")
		}
		if st.Category != nil {
			return invalid("category only applies to expense entries")
		}
	case models.SettlementTypeExpense:
		if st.Category == nil {
			return invalid("expense entries require category")
		}
		if st.SourceType != nil || st.TeacherID != nil {
			return invalid("source_type and teacher_id only apply to income entries")
		}
	default:
		return invalid("type must be income or expense")
	}
	return nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	return optionalString(*value)
}
