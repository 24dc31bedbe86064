package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// StudentRepository reads the student directory used by the ledger.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT id, full_name, mobile, active FROM students WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Search matches students by name or mobile number.
func (r *StudentRepository) Search(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	query := "SELECT id, full_name, mobile, active FROM students WHERE active = TRUE"
	var args []interface{}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		query += fmt.Sprintf(" AND (LOWER(full_name) LIKE $%d OR COALESCE(mobile, '') LIKE $%d)", len(args), len(args))
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	query += fmt.Sprintf(" ORDER BY full_name ASC LIMIT %d OFFSET %d", size, (page-1)*size)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("search students: %w", err)
	}
	return students, nil
}
