package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("create booking: %w", Clone(ErrBookingConflict, "hall taken"))

	assert.ErrorIs(t, err, ErrBookingConflict)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Equal(t, ErrInternal.Message, got.Message)
	assert.Nil(t, FromError(nil))
}

func TestValidationListsFieldViolations(t *testing.T) {
	payload := struct {
		Amount string `validate:"required"`
		Note   string `validate:"max=3"`
	}{Note: "too long"}

	got := Validation(validator.New().Struct(payload), "invalid payment payload")

	assert.Equal(t, ErrValidation.Code, got.Code)
	assert.Equal(t, http.StatusBadRequest, got.Status)
	violations, ok := got.Details.([]FieldViolation)
	require.True(t, ok)
	assert.ElementsMatch(t, []FieldViolation{
		{Field: "Amount", Rule: "required"},
		{Field: "Note", Rule: "max", Param: "3"},
	}, violations)
}

func TestValidationWithoutValidatorErrors(t *testing.T) {
	got := Validation(errors.New("EOF"), "invalid body")

	assert.Nil(t, got.Details)
	assert.Equal(t, "invalid body: EOF", got.Error())
}
