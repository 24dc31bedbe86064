package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles issued by the identity service.
type UserRole string

const (
	RoleOwner        UserRole = "owner"
	RoleManager      UserRole = "manager"
	RoleAdmin        UserRole = "admin"
	RoleSpaceManager UserRole = "space_manager"
	RoleReadOnly     UserRole = "read_only"
	RoleTeacher      UserRole = "teacher"
)

// Valid reports whether the role is one the API understands.
func (r UserRole) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleAdmin, RoleSpaceManager, RoleReadOnly, RoleTeacher:
		return true
	default:
		return false
	}
}

// JWTClaims represents the access token payload.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
