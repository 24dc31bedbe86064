package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

func invalid(format string, args ...interface{}) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf(format, args...))
}

func internal(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func parseDateField(raw, field string) (time.Time, error) {
	date, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, invalid("%s must be a YYYY-MM-DD date", field)
	}
	return date, nil
}

func parseOptionalDate(raw *string, field string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	date, err := parseDateField(*raw, field)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

func parseWeekdays(raw []string) (models.WeekdaySet, error) {
	days := make(models.WeekdaySet, 0, len(raw))
	for _, item := range raw {
		day, err := models.ParseWeekday(item)
		if err != nil {
			return nil, invalid("%v", err)
		}
		days = append(days, day)
	}
	if err := days.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	return days, nil
}

func normaliseClock(raw string) (string, error) {
	minutes, err := models.ParseClock(raw)
	if err != nil {
		return "", invalid("start_time must be HH:MM")
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}

func requireNonNegative(value decimal.Decimal, field string) error {
	if value.IsNegative() {
		return invalid("%s must not be negative", field)
	}
	return nil
}

func requirePositive(value decimal.Decimal, field string) error {
	if !value.IsPositive() {
		return invalid("%s must be greater than zero", field)
	}
	return nil
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
