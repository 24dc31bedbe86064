package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/edu-center-api/internal/models"
)

const registrationColumns = `r.id, r.student_id, r.booking_id, r.total_fees, r.paid_amount, r.payment_status,
       r.fee_overridden, r.registration_date, r.created_at, r.updated_at`

// RegistrationRepository persists student registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a registration. A duplicate (student, booking) pair surfaces as a
// unique violation the caller can detect with IsUniqueViolation.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.StudentRegistration) error {
	now := time.Now().UTC()
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.RegistrationDate.IsZero() {
		reg.RegistrationDate = models.DateOnly(now)
	}
	reg.CreatedAt = now
	reg.UpdatedAt = now
	reg.Recompute()
	const query = `INSERT INTO student_registrations
	(id, student_id, booking_id, total_fees, paid_amount, payment_status, fee_overridden, registration_date, created_at, updated_at)
	VALUES (:id, :student_id, :booking_id, :total_fees, :paid_amount, :payment_status, :fee_overridden, :registration_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// Exists reports whether the student is already registered in the booking.
func (r *RegistrationRepository) Exists(ctx context.Context, studentID, bookingID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM student_registrations WHERE student_id = $1 AND booking_id = $2 LIMIT 1`, studentID, bookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check registration: %w", err)
	}
	return true, nil
}

// FindByID fetches a registration.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.StudentRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM student_registrations r WHERE r.id = $1`
	var reg models.StudentRegistration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// ListByStudent returns every registration held by a student.
func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.StudentRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM student_registrations r WHERE r.student_id = $1 ORDER BY r.registration_date`
	var regs []models.StudentRegistration
	if err := r.db.SelectContext(ctx, &regs, query, studentID); err != nil {
		return nil, fmt.Errorf("list student registrations: %w", err)
	}
	return regs, nil
}

// List returns registrations with student and booking context.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	base := `FROM student_registrations r
JOIN students s ON s.id = r.student_id
JOIN bookings b ON b.id = r.booking_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)))
	}
	if filter.BookingID != "" {
		args = append(args, filter.BookingID)
		conditions = append(conditions, fmt.Sprintf("r.booking_id = $%d", len(args)))
	}
	if filter.PaymentStatus != "" {
		args = append(args, filter.PaymentStatus)
		conditions = append(conditions, fmt.Sprintf("r.payment_status = $%d", len(args)))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name, b.hall_id, b.teacher_id, b.start_time, b.days,
        b.status AS booking_status %s ORDER BY s.full_name ASC LIMIT %d OFFSET %d`, registrationColumns, base+clause, size, offset)
	var regs []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &regs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return regs, total, nil
}

// UpdateTotalFees sets a manual fee, marks it overridden and re-derives the status.
func (r *RegistrationRepository) UpdateTotalFees(ctx context.Context, id string, totalFees decimal.Decimal) (*models.StudentRegistration, error) {
	query := fmt.Sprintf(`UPDATE student_registrations r
	SET total_fees = $2, fee_overridden = TRUE, payment_status = %s, updated_at = $3
	WHERE r.id = $1
	RETURNING %s`, paymentStatusCase("$2", "r.paid_amount"), registrationColumns)
	var reg models.StudentRegistration
	if err := r.db.GetContext(ctx, &reg, query, id, totalFees, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &reg, nil
}

// DeleteCascade removes a registration together with its payments and attendance.
func (r *RegistrationRepository) DeleteCascade(ctx context.Context, tx sqlx.ExtContext, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE registration_id = $1`, id); err != nil {
		return fmt.Errorf("delete registration attendance: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_records WHERE registration_id = $1`, id); err != nil {
		return fmt.Errorf("delete registration payments: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM student_registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return requireAffected(result, "delete registration")
}
