package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-center-api/internal/models"
)

const attendanceColumns = "id, registration_id, attendance_date, marked_at, created_by"

// AttendanceRepository stores present marks; absence is never persisted.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Mark records presence idempotently. The second result is false when the day was
// already marked, in which case the existing row is returned untouched.
func (r *AttendanceRepository) Mark(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.MarkedAt.IsZero() {
		record.MarkedAt = time.Now().UTC()
	}
	record.AttendanceDate = models.DateOnly(record.AttendanceDate)

	query := `INSERT INTO attendance_records (` + attendanceColumns + `)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (registration_id, attendance_date) DO NOTHING
RETURNING ` + attendanceColumns
	var stored models.AttendanceRecord
	err := r.db.GetContext(ctx, &stored, query, record.ID, record.RegistrationID, record.AttendanceDate, record.MarkedAt, record.CreatedBy)
	if err == nil {
		return &stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("mark attendance: %w", err)
	}

	existing := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE registration_id = $1 AND attendance_date = $2`
	if err := r.db.GetContext(ctx, &stored, existing, record.RegistrationID, record.AttendanceDate); err != nil {
		return nil, false, fmt.Errorf("load existing attendance: %w", err)
	}
	return &stored, false, nil
}

// ListByRegistration returns present marks in [from, to] ordered by date.
func (r *AttendanceRepository) ListByRegistration(ctx context.Context, registrationID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records
WHERE registration_id = $1 AND attendance_date BETWEEN $2 AND $3
ORDER BY attendance_date ASC, marked_at ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, registrationID, from, to); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}
