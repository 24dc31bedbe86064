package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-center-api/internal/models"
)

const changeRequestColumns = `id, settlement_id, kind, requested_changes, reason, status, requested_by, reviewed_by,
       requested_at, reviewed_at, note`

// SettlementRequestRepository persists settlement change requests.
type SettlementRequestRepository struct {
	db *sqlx.DB
}

// NewSettlementRequestRepository constructs the repository.
func NewSettlementRequestRepository(db *sqlx.DB) *SettlementRequestRepository {
	return &SettlementRequestRepository{db: db}
}

func (r *SettlementRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a pending request.
func (r *SettlementRequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, req *models.SettlementChangeRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.ChangeRequestPending
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO settlement_change_requests
	(id, settlement_id, kind, requested_changes, reason, status, requested_by, reviewed_by, requested_at, reviewed_at, note)
	VALUES (:id, :settlement_id, :kind, :requested_changes, :reason, :status, :requested_by, :reviewed_by, :requested_at, :reviewed_at, :note)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, req); err != nil {
		return fmt.Errorf("create settlement change request: %w", err)
	}
	return nil
}

// FindByID fetches a request.
func (r *SettlementRequestRepository) FindByID(ctx context.Context, id string) (*models.SettlementChangeRequest, error) {
	var req models.SettlementChangeRequest
	if err := r.db.GetContext(ctx, &req, `SELECT `+changeRequestColumns+` FROM settlement_change_requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests newest first.
func (r *SettlementRequestRepository) List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.SettlementChangeRequest, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + changeRequestColumns + ` FROM settlement_change_requests`)
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SettlementID != "" {
		args = append(args, filter.SettlementID)
		conditions = append(conditions, fmt.Sprintf("settlement_id = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY requested_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.SettlementChangeRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list settlement change requests: %w", err)
	}
	return requests, nil
}

// ResolveParams groups the review outcome columns.
type ResolveParams struct {
	ID         string
	Status     models.ChangeRequestStatus
	ReviewedBy string
	ReviewedAt time.Time
	Note       *string
}

// Resolve records the review outcome only while the request is still pending.
// sql.ErrNoRows means another reviewer got there first.
func (r *SettlementRequestRepository) Resolve(ctx context.Context, exec sqlx.ExtContext, params ResolveParams) error {
	query := fmt.Sprintf(`UPDATE settlement_change_requests
	SET status = $2, reviewed_by = $3, reviewed_at = $4, note = COALESCE($5, note)
	WHERE id = $1 AND status = '%s'`, models.ChangeRequestPending)
	result, err := r.exec(exec).ExecContext(ctx, query, params.ID, params.Status, params.ReviewedBy, params.ReviewedAt, params.Note)
	if err != nil {
		return fmt.Errorf("resolve settlement change request: %w", err)
	}
	return requireAffected(result, "resolve settlement change request")
}
