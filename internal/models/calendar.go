package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Weekday is a day-of-week value as stored in booking day sets.
type Weekday string

const (
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
)

var weekdayByTime = map[time.Weekday]Weekday{
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
}

// Valid reports whether the weekday belongs to the fixed 7-day enum.
func (w Weekday) Valid() bool {
	switch w {
	case Saturday, Sunday, Monday, Tuesday, Wednesday, Thursday, Friday:
		return true
	default:
		return false
	}
}

// WeekdayOf maps a calendar time to its Weekday.
func WeekdayOf(t time.Time) Weekday {
	return weekdayByTime[t.Weekday()]
}

// ParseWeekday normalises user input such as "Monday" or " mon".
func ParseWeekday(raw string) (Weekday, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for _, w := range []Weekday{Saturday, Sunday, Monday, Tuesday, Wednesday, Thursday, Friday} {
		if value == string(w) || (len(value) == 3 && strings.HasPrefix(string(w), value)) {
			return w, nil
		}
	}
	return "", fmt.Errorf("unknown weekday %q", raw)
}

// DateOnly returns the calendar date of t, read in t's own location, as UTC midnight.
// Dates from DATE columns and "today" in the business timezone then compare directly.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(raw string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(raw))
}

// MonthWindow returns [start-of-month, start-of-next-month) for the given month.
func MonthWindow(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// SameDate reports whether two timestamps fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
