package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamdesk/config"
	"teamdesk/models"
)

func TestJWTRoundTrip(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	user := &models.User{}
	user.ID = 42

	access, refresh, err := GenerateJWTToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	claims, err := ParseJWTToken(access)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestParseJWTTokenRejectsBadSignature(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 1})
	tokenString, err := forged.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = ParseJWTToken(tokenString)
	assert.Error(t, err)

	_, err = ParseJWTToken("not-a-token")
	assert.Error(t, err)
}
