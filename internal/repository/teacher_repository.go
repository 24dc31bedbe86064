package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/edu-center-api/internal/models"
)

const teacherColumns = "id, full_name, phone, default_fee, active, created_at, updated_at"

// TeacherRepository manages persistence for teachers.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers matching filters along with total count.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	base := "FROM teachers WHERE 1=1"
	var args []interface{}

	if filter.Active != nil {
		args = append(args, *filter.Active)
		base += fmt.Sprintf(" AND active = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND (LOWER(full_name) LIKE $%d OR COALESCE(phone, '') LIKE $%d)", len(args), len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY full_name ASC LIMIT %d OFFSET %d", teacherColumns, base, size, offset)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID returns a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := fmt.Sprintf("SELECT %s FROM teachers WHERE id = $1", teacherColumns)
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// LockDefaultFee reads the teacher's default fee holding a row lock for the transaction.
func (r *TeacherRepository) LockDefaultFee(ctx context.Context, tx sqlx.ExtContext, id string) (decimal.Decimal, error) {
	var fee decimal.Decimal
	if err := sqlx.GetContext(ctx, tx, &fee, "SELECT default_fee FROM teachers WHERE id = $1 FOR UPDATE", id); err != nil {
		return decimal.Zero, err
	}
	return fee, nil
}

// UpdateDefaultFee sets the teacher's default fee.
func (r *TeacherRepository) UpdateDefaultFee(ctx context.Context, tx sqlx.ExtContext, id string, fee decimal.Decimal) error {
	result, err := tx.ExecContext(ctx, "UPDATE teachers SET default_fee = $2, updated_at = $3 WHERE id = $1", id, fee, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update teacher default fee: %w", err)
	}
	return requireAffected(result, "update teacher default fee")
}
