package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/edu-center-api/internal/models"
)

const bookingColumns = `b.id, b.hall_id, b.teacher_id, b.stage_id, b.start_time, b.duration_minutes, b.days,
       b.start_date, b.end_date, b.fee, b.custom_fee, b.status, b.created_at, b.updated_at`

// BookingRepository persists the booking catalog.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a booking. Pass the transaction holding the hall lock as exec.
func (r *BookingRepository) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	now := time.Now().UTC()
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.BookingStatusActive
	}
	booking.CreatedAt = now
	booking.UpdatedAt = now
	const query = `INSERT INTO bookings
	(id, hall_id, teacher_id, stage_id, start_time, duration_minutes, days, start_date, end_date, fee, custom_fee, status, created_at, updated_at)
	VALUES (:id, :hall_id, :teacher_id, :stage_id, :start_time, :duration_minutes, :days, :start_date, :end_date, :fee, :custom_fee, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// FindByID fetches a booking.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindDetailByID fetches a booking with hall and teacher names.
func (r *BookingRepository) FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error) {
	query := `SELECT ` + bookingColumns + `, h.name AS hall_name, t.full_name AS teacher_name, t.default_fee AS teacher_default_fee
	FROM bookings b
	JOIN halls h ON h.id = b.hall_id
	JOIN teachers t ON t.id = b.teacher_id
	WHERE b.id = $1`
	var detail models.BookingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByIDs returns the bookings with the given identifiers.
func (r *BookingRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Booking, error) {
	if len(ids) == 0 {
		return []models.Booking{}, nil
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = ANY($1::uuid[])`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list bookings by id: %w", err)
	}
	return bookings, nil
}

// ListLive returns bookings live in the filter's month.
func (r *BookingRepository) ListLive(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, error) {
	start, next := models.MonthWindow(filter.Year, filter.Month)
	monthEnd := next.AddDate(0, 0, -1)

	args := []interface{}{models.BookingStatusActive, monthEnd, start}
	conditions := []string{
		"b.status = $1",
		"b.start_date <= $2",
		"(b.end_date IS NULL OR b.end_date >= $3)",
	}
	if filter.HallID != "" {
		args = append(args, filter.HallID)
		conditions = append(conditions, fmt.Sprintf("b.hall_id = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("b.teacher_id = $%d", len(args)))
	}
	if filter.StageID != "" {
		args = append(args, filter.StageID)
		conditions = append(conditions, fmt.Sprintf("b.stage_id = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s, h.name AS hall_name, t.full_name AS teacher_name, t.default_fee AS teacher_default_fee
	FROM bookings b
	JOIN halls h ON h.id = b.hall_id
	JOIN teachers t ON t.id = b.teacher_id
	WHERE %s ORDER BY h.name, b.start_time`, bookingColumns, strings.Join(conditions, " AND "))

	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list live bookings: %w", err)
	}
	return bookings, nil
}

// ListHallCandidates returns active bookings in the hall sharing at least one weekday.
// Callers still apply the time and date-range checks.
func (r *BookingRepository) ListHallCandidates(ctx context.Context, exec sqlx.ExtContext, hallID string, days models.WeekdaySet, excludeID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b
	WHERE b.hall_id = $1 AND b.status = $2 AND b.days && $3::text[]`
	args := []interface{}{hallID, models.BookingStatusActive, days}
	if excludeID != "" {
		args = append(args, excludeID)
		query += fmt.Sprintf(" AND b.id <> $%d", len(args))
	}
	var bookings []models.Booking
	if err := sqlx.SelectContext(ctx, r.exec(exec), &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list hall bookings: %w", err)
	}
	return bookings, nil
}

// ListCascadeCandidates returns a teacher's active bookings that are live in the
// month starting at monthStart or start later.
func (r *BookingRepository) ListCascadeCandidates(ctx context.Context, teacherID string, monthStart time.Time) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b
	WHERE b.teacher_id = $1 AND b.status = $2 AND (b.end_date IS NULL OR b.end_date >= $3)
	ORDER BY b.start_date, b.start_time`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, teacherID, models.BookingStatusActive, monthStart); err != nil {
		return nil, fmt.Errorf("list cascade candidates: %w", err)
	}
	return bookings, nil
}

type bookingCount struct {
	BookingID string `db:"booking_id"`
	Total     int    `db:"total"`
}

// CountRegistrations counts registrations per booking in one round trip.
func (r *BookingRepository) CountRegistrations(ctx context.Context, bookingIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(bookingIDs))
	if len(bookingIDs) == 0 {
		return counts, nil
	}
	const query = `SELECT booking_id, COUNT(*) AS total FROM student_registrations
	WHERE booking_id = ANY($1::uuid[]) GROUP BY booking_id`
	var rows []bookingCount
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(bookingIDs)); err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	for _, row := range rows {
		counts[row.BookingID] = row.Total
	}
	return counts, nil
}

// UpdateFee sets the booking fee and its custom flag.
func (r *BookingRepository) UpdateFee(ctx context.Context, id string, fee decimal.NullDecimal, custom bool) error {
	const query = `UPDATE bookings SET fee = $2, custom_fee = $3, updated_at = $4 WHERE id = $1`
	return r.execAffecting(ctx, nil, "update booking fee", query, id, fee, custom, time.Now().UTC())
}

// UpdateSchedule persists hall, slot and date range changes.
func (r *BookingRepository) UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	booking.UpdatedAt = time.Now().UTC()
	const query = `UPDATE bookings SET hall_id = :hall_id, start_time = :start_time, duration_minutes = :duration_minutes,
	days = :days, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, booking)
	if err != nil {
		return fmt.Errorf("reschedule booking: %w", err)
	}
	return requireAffected(result, "reschedule booking")
}

// UpdateStatus flips the booking lifecycle status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.BookingStatus) error {
	const query = `UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`
	return r.execAffecting(ctx, exec, "update booking status", query, id, status, time.Now().UTC())
}

// DeleteCascade removes a booking along with its registrations, payments and attendance.
func (r *BookingRepository) DeleteCascade(ctx context.Context, tx sqlx.ExtContext, id string) error {
	steps := []struct {
		label string
		query string
	}{
		{"delete booking attendance", `DELETE FROM attendance_records WHERE registration_id IN (SELECT id FROM student_registrations WHERE booking_id = $1)`},
		{"delete booking payments", `DELETE FROM payment_records WHERE registration_id IN (SELECT id FROM student_registrations WHERE booking_id = $1)`},
		{"delete booking registrations", `DELETE FROM student_registrations WHERE booking_id = $1`},
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
			return fmt.Errorf("%s: %w", step.label, err)
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return requireAffected(result, "delete booking")
}

func (r *BookingRepository) execAffecting(ctx context.Context, exec sqlx.ExtContext, label, query string, args ...interface{}) error {
	result, err := r.exec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	return requireAffected(result, label)
}

func requireAffected(result sql.Result, label string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", label, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
