package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateParseRoundtrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := Generate(42, "admin", time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Subject)
}

func TestParseRejectsExpired(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := Generate(1, "admin", -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	token, err := Generate(1, "admin", time.Hour)
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "other-secret")
	_, err = Parse(token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRejectsForeignIssuer(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   1,
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := foreign.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = Parse(signed)
	assert.ErrorIs(t, err, ErrInvalid)
}
