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

const settlementColumns = `id, settlement_date, type, amount, source_type, category, source_name, teacher_id, subject_id,
       notes, state, created_by, created_at, updated_at, deleted_at`

// SettlementRepository persists daily income and expense entries.
type SettlementRepository struct {
	db *sqlx.DB
}

// NewSettlementRepository constructs the repository.
func NewSettlementRepository(db *sqlx.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a settlement entry.
func (r *SettlementRepository) Create(ctx context.Context, settlement *models.DailySettlement) error {
	now := time.Now().UTC()
	if settlement.ID == "" {
		settlement.ID = uuid.NewString()
	}
	if settlement.State == "" {
		settlement.State = models.SettlementStateActive
	}
	settlement.SettlementDate = models.DateOnly(settlement.SettlementDate)
	settlement.CreatedAt = now
	settlement.UpdatedAt = now
	const query = `INSERT INTO daily_settlements
	(id, settlement_date, type, amount, source_type, category, source_name, teacher_id, subject_id, notes, state, created_by, created_at, updated_at)
	VALUES (:id, :settlement_date, :type, :amount, :source_type, :category, :source_name, :teacher_id, :subject_id, :notes, :state, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, settlement); err != nil {
		return fmt.Errorf("create settlement: %w", err)
	}
	return nil
}

// FindByID fetches a settlement.
func (r *SettlementRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DailySettlement, error) {
	var settlement models.DailySettlement
	if err := sqlx.GetContext(ctx, r.exec(exec), &settlement, `SELECT `+settlementColumns+` FROM daily_settlements WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &settlement, nil
}

// List returns a day's entries; resolved deletions are hidden unless requested.
func (r *SettlementRepository) List(ctx context.Context, filter models.SettlementFilter) ([]models.DailySettlement, error) {
	args := []interface{}{models.DateOnly(filter.Date)}
	conditions := []string{"settlement_date = $1"}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if !filter.IncludeDeleted {
		args = append(args, models.SettlementStateResolvedDeleted)
		conditions = append(conditions, fmt.Sprintf("state <> $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT %s FROM daily_settlements WHERE %s ORDER BY created_at ASC`, settlementColumns, strings.Join(conditions, " AND "))
	var settlements []models.DailySettlement
	if err := r.db.SelectContext(ctx, &settlements, query, args...); err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return settlements, nil
}

// Totals groups a day's live entries by type.
func (r *SettlementRepository) Totals(ctx context.Context, date time.Time) ([]models.SettlementTotalsRow, error) {
	const query = `SELECT type, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS cnt,
	COUNT(*) FILTER (WHERE state IN ('pending_edit', 'pending_delete')) AS pending
	FROM daily_settlements
	WHERE settlement_date = $1 AND state <> 'resolved_deleted'
	GROUP BY type`
	var rows []models.SettlementTotalsRow
	if err := r.db.SelectContext(ctx, &rows, query, models.DateOnly(date)); err != nil {
		return nil, fmt.Errorf("settlement totals: %w", err)
	}
	return rows, nil
}

// ApplyChanges writes edited fields and moves the row to the target state, guarded by
// its expected current state.
func (r *SettlementRepository) ApplyChanges(ctx context.Context, exec sqlx.ExtContext, settlement *models.DailySettlement, from models.SettlementState) error {
	settlement.UpdatedAt = time.Now().UTC()
	const query = `UPDATE daily_settlements SET amount = $2, source_type = $3, category = $4, source_name = $5,
	teacher_id = $6, subject_id = $7, notes = $8, state = $9, updated_at = $10
	WHERE id = $1 AND state = $11`
	result, err := r.exec(exec).ExecContext(ctx, query, settlement.ID, settlement.Amount, settlement.SourceType, settlement.Category,
		settlement.SourceName, settlement.TeacherID, settlement.SubjectID, settlement.Notes, settlement.State, settlement.UpdatedAt, from)
	if err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	return requireAffected(result, "update settlement")
}

// TransitionState moves the row between states; zero affected rows means it was not in from.
func (r *SettlementRepository) TransitionState(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.SettlementState) error {
	now := time.Now().UTC()
	var deletedAt *time.Time
	if to == models.SettlementStateResolvedDeleted {
		deletedAt = &now
	}
	const query = `UPDATE daily_settlements SET state = $2, updated_at = $3, deleted_at = COALESCE($4, deleted_at)
	WHERE id = $1 AND state = $5`
	result, err := r.exec(exec).ExecContext(ctx, query, id, to, now, deletedAt, from)
	if err != nil {
		return fmt.Errorf("transition settlement: %w", err)
	}
	return requireAffected(result, "transition settlement")
}
