package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeSession = "session"
	TokenTypeReset   = "reset"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// JWTClaims custom claims for JWT
type JWTClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTUtil provides JWT generation and validation for session and reset tokens
type JWTUtil struct {
	secretKey  string
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// NewJWTUtil creates a new JWTUtil
func NewJWTUtil(secretKey string, sessionTTL, resetTTL time.Duration) *JWTUtil {
	return &JWTUtil{secretKey: secretKey, sessionTTL: sessionTTL, resetTTL: resetTTL, now: time.Now}
}

// SessionTTL returns the configured session token lifetime
func (ju *JWTUtil) SessionTTL() time.Duration {
	return ju.sessionTTL
}

// GenerateToken generates a new session token
func (ju *JWTUtil) GenerateToken(userID, role string) (string, error) {
	token, _, err := ju.sign(userID, role, TokenTypeSession, "", ju.sessionTTL)
	return token, err
}

// GenerateResetToken mints a short-lived password reset token. The returned jti
// identifies the token in the consumed-token ledger.
func (ju *JWTUtil) GenerateResetToken(userID, role string) (string, string, time.Time, error) {
	jti := uuid.NewString()
	token, expiresAt, err := ju.sign(userID, role, TokenTypeReset, jti, ju.resetTTL)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

func (ju *JWTUtil) sign(userID, role, tokenType, jti string, ttl time.Duration) (string, time.Time, error) {
	now := ju.now()
	expiresAt := now.Add(ttl)
	claims := &JWTClaims{
		UserID: userID,
		Role:   role,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID,
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(ju.secretKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken validates a session token
func (ju *JWTUtil) ValidateToken(tokenString string) (*JWTClaims, error) {
	return ju.validate(tokenString, TokenTypeSession)
}

// ValidateResetToken validates a password reset token
func (ju *JWTUtil) ValidateResetToken(tokenString string) (*JWTClaims, error) {
	return ju.validate(tokenString, TokenTypeReset)
}

func (ju *JWTUtil) validate(tokenString, wantType string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(ju.secretKey), nil
	}, jwt.WithTimeFunc(ju.now), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: failed to parse token: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Type != wantType {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrTokenInvalid, wantType, claims.Type)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrTokenInvalid)
	}
	return claims, nil
}
