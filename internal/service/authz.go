package service

import (
	"time"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// Role groups used by both route guards and service-level checks.
var (
	// ModeratorRoles may change any ledger entry directly and review change requests.
	ModeratorRoles = []models.UserRole{models.RoleOwner, models.RoleManager, models.RoleAdmin}
	// FrontDeskRoles run day-to-day operations: registrations, payments, attendance.
	FrontDeskRoles = []models.UserRole{models.RoleOwner, models.RoleManager, models.RoleAdmin, models.RoleSpaceManager}
	// SettlementWriterRoles may record settlement entries.
	SettlementWriterRoles = FrontDeskRoles
	// ReaderRoles may browse ledgers without changing them.
	ReaderRoles = []models.UserRole{models.RoleOwner, models.RoleManager, models.RoleAdmin, models.RoleSpaceManager, models.RoleReadOnly}
)

func hasRole(role models.UserRole, group []models.UserRole) bool {
	for _, r := range group {
		if r == role {
			return true
		}
	}
	return false
}

// CanModerateSettlement reports whether the role edits and deletes settlements
// without approval and may review change requests.
func CanModerateSettlement(role models.UserRole) bool {
	return hasRole(role, ModeratorRoles)
}

// CanCreateSettlement reports whether the role may record a settlement at all.
func CanCreateSettlement(role models.UserRole) bool {
	return hasRole(role, SettlementWriterRoles)
}

// CanViewSettlements reports whether the role may read settlement listings.
func CanViewSettlements(role models.UserRole) bool {
	return hasRole(role, ReaderRoles)
}

// CanManageBookings reports whether the role may create or change bookings and fees.
func CanManageBookings(role models.UserRole) bool {
	return hasRole(role, ModeratorRoles)
}

// CanOperateFrontDesk reports whether the role may register students, take payments
// and mark attendance.
func CanOperateFrontDesk(role models.UserRole) bool {
	return hasRole(role, FrontDeskRoles)
}

// SettlementDateAllowed restricts space managers to the current business day.
func SettlementDateAllowed(role models.UserRole, date, today time.Time) bool {
	if CanModerateSettlement(role) {
		return true
	}
	if role == models.RoleSpaceManager {
		return models.SameDate(date, today)
	}
	return false
}
