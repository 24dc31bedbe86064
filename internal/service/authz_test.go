package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/edu-center-api/internal/models"
)

func TestSettlementRoleMatrix(t *testing.T) {
	cases := []struct {
		role     models.UserRole
		moderate bool
		create   bool
		view     bool
	}{
		{models.RoleOwner, true, true, true},
		{models.RoleManager, true, true, true},
		{models.RoleAdmin, true, true, true},
		{models.RoleSpaceManager, false, true, true},
		{models.RoleReadOnly, false, false, true},
		{models.RoleTeacher, false, false, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			assert.Equal(t, tc.moderate, CanModerateSettlement(tc.role))
			assert.Equal(t, tc.create, CanCreateSettlement(tc.role))
			assert.Equal(t, tc.view, CanViewSettlements(tc.role))
		})
	}
	assert.True(t, CanOperateFrontDesk(models.RoleSpaceManager))
	assert.False(t, CanManageBookings(models.RoleSpaceManager))
}

func TestSettlementDateAllowed(t *testing.T) {
	today := time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	assert.True(t, SettlementDateAllowed(models.RoleSpaceManager, today, today))
	assert.False(t, SettlementDateAllowed(models.RoleSpaceManager, yesterday, today))
	assert.True(t, SettlementDateAllowed(models.RoleManager, yesterday, today))
	assert.False(t, SettlementDateAllowed(models.RoleReadOnly, today, today))
}
