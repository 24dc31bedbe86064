package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// BookingStatus captures the lifecycle of a recurring class.
type BookingStatus string

const (
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Valid returns true when the status is a supported value.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusActive, BookingStatusCancelled, BookingStatusCompleted:
		return true
	default:
		return false
	}
}

// WeekdaySet is the set of weekdays a booking meets on, stored as text[].
type WeekdaySet []Weekday

// Contains reports whether the set includes day.
func (s WeekdaySet) Contains(day Weekday) bool {
	for _, d := range s {
		if d == day {
			return true
		}
	}
	return false
}

// Intersects reports whether the two sets share a weekday.
func (s WeekdaySet) Intersects(other WeekdaySet) bool {
	for _, d := range s {
		if other.Contains(d) {
			return true
		}
	}
	return false
}

// Validate enforces a non-empty, duplicate-free set of known weekdays.
func (s WeekdaySet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("at least one weekday is required")
	}
	seen := make(map[Weekday]struct{}, len(s))
	for _, d := range s {
		if !d.Valid() {
			return fmt.Errorf("unknown weekday %q", d)
		}
		if _, dup := seen[d]; dup {
			return fmt.Errorf("weekday %q listed twice", d)
		}
		seen[d] = struct{}{}
	}
	return nil
}

// Value implements driver.Valuer.
func (s WeekdaySet) Value() (driver.Value, error) {
	raw := make(pq.StringArray, len(s))
	for i, d := range s {
		raw[i] = string(d)
	}
	return raw.Value()
}

// Scan implements sql.Scanner.
func (s *WeekdaySet) Scan(src interface{}) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("scan weekday set: %w", err)
	}
	out := make(WeekdaySet, len(raw))
	for i, d := range raw {
		out[i] = Weekday(d)
	}
	*s = out
	return nil
}

// Booking is a recurring class held in a hall by a teacher on a weekly slot.
type Booking struct {
	ID              string              `db:"id" json:"id"`
	HallID          string              `db:"hall_id" json:"hall_id"`
	TeacherID       string              `db:"teacher_id" json:"teacher_id"`
	StageID         string              `db:"stage_id" json:"stage_id"`
	StartTime       string              `db:"start_time" json:"start_time"`
	DurationMinutes int                 `db:"duration_minutes" json:"duration_minutes"`
	Days            WeekdaySet          `db:"days" json:"days"`
	StartDate       time.Time           `db:"start_date" json:"start_date"`
	EndDate         *time.Time          `db:"end_date" json:"end_date,omitempty"`
	Fee             decimal.NullDecimal `db:"fee" json:"fee"`
	CustomFee       bool                `db:"custom_fee" json:"custom_fee"`
	Status          BookingStatus       `db:"status" json:"status"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// BookingDetail enriches a booking with names and the registration count.
type BookingDetail struct {
	Booking
	HallName          string          `db:"hall_name" json:"hall_name"`
	TeacherName       string          `db:"teacher_name" json:"teacher_name"`
	TeacherDefaultFee decimal.Decimal `db:"teacher_default_fee" json:"teacher_default_fee"`
	RegistrationCount int             `db:"-" json:"registration_count"`
}

// EffectiveFee resolves the booking fee, falling back to the teacher default.
func (b Booking) EffectiveFee(teacherDefault decimal.Decimal) decimal.Decimal {
	if b.Fee.Valid {
		return b.Fee.Decimal
	}
	return teacherDefault
}

// StartMinutes parses the HH:MM[:SS] start time into minutes after midnight.
func (b Booking) StartMinutes() (int, error) {
	return ParseClock(b.StartTime)
}

// ParseClock converts HH:MM or HH:MM:SS into minutes after midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour*60 + minute, nil
}

// IsLiveIn reports whether the booking is active and its date range touches the month.
func (b Booking) IsLiveIn(year int, month time.Month) bool {
	if b.Status != BookingStatusActive {
		return false
	}
	start, next := MonthWindow(year, month)
	monthEnd := next.AddDate(0, 0, -1)
	if DateOnly(b.StartDate).After(monthEnd) {
		return false
	}
	return b.EndDate == nil || !DateOnly(*b.EndDate).Before(start)
}

// IsUpcoming reports whether an active booking starts after the given date.
func (b Booking) IsUpcoming(today time.Time) bool {
	return b.Status == BookingStatusActive && DateOnly(b.StartDate).After(DateOnly(today))
}

// RunsOn reports whether the booking holds a class on the given date.
func (b Booking) RunsOn(date time.Time) bool {
	if b.Status != BookingStatusActive || !b.Days.Contains(WeekdayOf(date)) {
		return false
	}
	day := DateOnly(date)
	if day.Before(DateOnly(b.StartDate)) {
		return false
	}
	return b.EndDate == nil || !day.After(DateOnly(*b.EndDate))
}

// ConflictsWith reports whether two bookings would occupy the same hall at the same time.
// Both must be active, share a weekday, and overlap in both time window and date range.
func (b Booking) ConflictsWith(other Booking) bool {
	if b.ID != "" && b.ID == other.ID {
		return false
	}
	if b.HallID != other.HallID || b.Status != BookingStatusActive || other.Status != BookingStatusActive {
		return false
	}
	if !b.Days.Intersects(other.Days) {
		return false
	}
	aStart, errA := b.StartMinutes()
	bStart, errB := other.StartMinutes()
	if errA != nil || errB != nil {
		return false
	}
	aEnd := aStart + b.DurationMinutes
	bEnd := bStart + other.DurationMinutes
	if aStart >= bEnd || bStart >= aEnd {
		return false
	}
	return datesOverlap(b.StartDate, b.EndDate, other.StartDate, other.EndDate)
}

func datesOverlap(aStart time.Time, aEnd *time.Time, bStart time.Time, bEnd *time.Time) bool {
	if aEnd != nil && DateOnly(*aEnd).Before(DateOnly(bStart)) {
		return false
	}
	if bEnd != nil && DateOnly(*bEnd).Before(DateOnly(aStart)) {
		return false
	}
	return true
}

// BookingFilter narrows monthly booking listings.
type BookingFilter struct {
	Year      int
	Month     time.Month
	HallID    string
	TeacherID string
	StageID   string
}

// BookingConflict describes an existing booking blocking a new slot.
type BookingConflict struct {
	BookingID string     `json:"booking_id"`
	HallID    string     `json:"hall_id"`
	TeacherID string     `json:"teacher_id"`
	StartTime string     `json:"start_time"`
	Days      WeekdaySet `json:"days"`
}
