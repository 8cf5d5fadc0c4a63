package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTUtil_GenerateToken(t *testing.T) {
	jwtUtil := NewJWTUtil("secret", time.Hour, 5*time.Minute)
	userID := "u-1"
	role := "user"

	tokenString, err := jwtUtil.GenerateToken(userID, role)

	assert.NoError(t, err)
	assert.NotEmpty(t, tokenString)

	claims, err := jwtUtil.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, role, claims.Role)
	assert.Equal(t, TokenTypeSession, claims.Type)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJWTUtil_ValidateToken_InvalidToken(t *testing.T) {
	jwtUtil := NewJWTUtil("secret", time.Hour, 5*time.Minute)

	_, err := jwtUtil.ValidateToken("invalid.token.string")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestJWTUtil_ValidateToken_ExpiredToken(t *testing.T) {
	jwtUtil := NewJWTUtil("secret", -time.Hour, 5*time.Minute) // Token expires in the past

	tokenString, err := jwtUtil.GenerateToken("u-1", "user")
	require.NoError(t, err)

	_, err = jwtUtil.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_ValidateToken_WrongSecret(t *testing.T) {
	jwtUtil1 := NewJWTUtil("secret1", time.Hour, 5*time.Minute)
	jwtUtil2 := NewJWTUtil("secret2", time.Hour, 5*time.Minute)

	tokenString, _ := jwtUtil1.GenerateToken("u-1", "user")

	_, err := jwtUtil2.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_ValidateToken_UnsignedToken(t *testing.T) {
	jwtUtil := NewJWTUtil("secret", time.Hour, 5*time.Minute)
	claims := &JWTClaims{
		UserID: "u-1",
		Role:   "admin",
		Type:   TokenTypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwtUtil.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_ValidateToken_InvalidSigningMethod(t *testing.T) {
	jwtUtil := NewJWTUtil("secret", time.Hour, 5*time.Minute)
	claims := &JWTClaims{
		UserID: "u-1",
		Role:   "user",
		Type:   TokenTypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS384, claims)
	tokenString, _ := token.SignedString([]byte("secret"))

	_, err := jwtUtil.ValidateToken(tokenString)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected signing method")
}

func TestJWTUtil_ValidateToken_MissingExpiry(t *testing.T) {
	jwtUtil := NewJWTUtil("secret", time.Hour, 5*time.Minute)
	claims := &JWTClaims{UserID: "u-1", Role: "admin", Type: TokenTypeSession}
	tokenString, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))

	_, err := jwtUtil.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_ResetToken(t *testing.T) {
	jwtUtil := NewJWTUtil("secret", time.Hour, 5*time.Minute)

	tokenString, jti, expiresAt, err := jwtUtil.GenerateResetToken("u-7", "user")
	require.NoError(t, err)
	assert.NotEmpty(t, jti)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

	claims, err := jwtUtil.ValidateResetToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "u-7", claims.UserID)
	assert.Equal(t, jti, claims.ID)

	// A reset token is not a session token.
	_, err = jwtUtil.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_SessionTokenRejectedForReset(t *testing.T) {
	jwtUtil := NewJWTUtil("secret", time.Hour, 5*time.Minute)

	tokenString, _ := jwtUtil.GenerateToken("u-1", "user")

	_, err := jwtUtil.ValidateResetToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_ResetTokenExpiresAfterTTL(t *testing.T) {
	jwtUtil := NewJWTUtil("secret", time.Hour, 5*time.Minute)
	issued := time.Now()
	jwtUtil.now = func() time.Time { return issued }

	tokenString, _, _, err := jwtUtil.GenerateResetToken("u-1", "user")
	require.NoError(t, err)

	jwtUtil.now = func() time.Time { return issued.Add(4 * time.Minute) }
	_, err = jwtUtil.ValidateResetToken(tokenString)
	assert.NoError(t, err)

	jwtUtil.now = func() time.Time { return issued.Add(6 * time.Minute) }
	_, err = jwtUtil.ValidateResetToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
