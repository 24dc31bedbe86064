package models

import "time"

// AttendanceStatus is derived, never stored: a row means present.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// AttendanceRecord marks a registration present on a date.
type AttendanceRecord struct {
	ID             string    `db:"id" json:"id"`
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	AttendanceDate time.Time `db:"attendance_date" json:"attendance_date"`
	MarkedAt       time.Time `db:"marked_at" json:"marked_at"`
	CreatedBy      *string   `db:"created_by" json:"created_by,omitempty"`
}

// AttendanceMark is the result of an idempotent mark.
type AttendanceMark struct {
	Record  AttendanceRecord `json:"record"`
	Created bool             `json:"created"`
}

// AttendanceDay is one scheduled class day in a sheet.
type AttendanceDay struct {
	Date   string           `json:"date"`
	Status AttendanceStatus `json:"status"`
}

// AttendanceSheetResult summarises derived attendance for a registration.
type AttendanceSheetResult struct {
	RegistrationID string          `json:"registration_id"`
	Days           []AttendanceDay `json:"days"`
	Present        int             `json:"present"`
	Absent         int             `json:"absent"`
}

// BuildAttendanceSheet derives present/absent for every class day in [from, to].
// Days before the registration date or outside the booking's range are not
// scheduled for the student and are omitted rather than reported absent.
func BuildAttendanceSheet(booking Booking, reg StudentRegistration, present map[string]bool, from, to time.Time) AttendanceSheetResult {
	result := AttendanceSheetResult{RegistrationID: reg.ID, Days: []AttendanceDay{}}
	first := DateOnly(from)
	if enrolled := DateOnly(reg.RegistrationDate); enrolled.After(first) {
		first = enrolled
	}
	last := DateOnly(to)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if !booking.Days.Contains(WeekdayOf(day)) {
			continue
		}
		if day.Before(DateOnly(booking.StartDate)) {
			continue
		}
		if booking.EndDate != nil && day.After(DateOnly(*booking.EndDate)) {
			break
		}
		key := day.Format(DateLayout)
		status := AttendanceStatusAbsent
		if present[key] {
			status = AttendanceStatusPresent
			result.Present++
		} else {
			result.Absent++
		}
		result.Days = append(result.Days, AttendanceDay{Date: key, Status: status})
	}
	return result
}

// FastProcessItem reports the outcome of fast processing one registration.
type FastProcessItem struct {
	RegistrationID   string  `json:"registration_id"`
	BookingID        string  `json:"booking_id"`
	AttendanceMarked bool    `json:"attendance_marked"`
	AttendanceError  string  `json:"attendance_error,omitempty"`
	AlreadyPaid      bool    `json:"already_paid"`
	PaymentCreated   bool    `json:"payment_created"`
	PaymentID        *string `json:"payment_id,omitempty"`
	PaymentError     string  `json:"payment_error,omitempty"`
}

// Succeeded reports whether every unit for the registration went through.
func (i FastProcessItem) Succeeded() bool {
	return i.AttendanceError == "" && i.PaymentError == ""
}

// FastProcessReport collects per-registration results of a fast process run.
type FastProcessReport struct {
	StudentID string            `json:"student_id"`
	Date      string            `json:"date"`
	Weekday   Weekday           `json:"weekday"`
	Items     []FastProcessItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}
