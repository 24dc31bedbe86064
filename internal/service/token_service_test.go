package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

func claimsFor(userID string, role models.UserRole, ttl time.Duration) *models.JWTClaims {
	return &models.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "identity"})

	token, err := svc.Sign(claimsFor("user-1", models.RoleSpaceManager, time.Hour))
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleSpaceManager, claims.Role)
	assert.Equal(t, "identity", claims.Issuer)
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "identity"})

	expired, err := svc.Sign(claimsFor("user-1", models.RoleOwner, -time.Minute))
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	foreign, err := NewTokenService(TokenConfig{Secret: "other", Issuer: "identity"}).Sign(claimsFor("user-1", models.RoleOwner, time.Hour))
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	wrongIssuer, err := NewTokenService(TokenConfig{Secret: "secret", Issuer: "elsewhere"}).Sign(claimsFor("user-1", models.RoleOwner, time.Hour))
	require.NoError(t, err)
	_, err = svc.ValidateToken(wrongIssuer)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	unknownRole, err := svc.Sign(claimsFor("user-1", models.UserRole("janitor"), time.Hour))
	require.NoError(t, err)
	_, err = svc.ValidateToken(unknownRole)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
