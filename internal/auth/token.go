package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vida-health/vida/internal/models"
)

// Claims carried by a patient session token.
type Claims struct {
	PatientID string `json:"patient_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates patient session tokens.
type TokenManager struct {
	secret []byte
	expiry time.Duration
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// GenerateToken creates a signed session token for a patient.
func (tm *TokenManager) GenerateToken(patientID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		PatientID: patientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a session token.
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrUnauthorized
	}
	return claims, nil
}
