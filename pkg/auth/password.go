package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// HashPassword hashes a password with bcrypt after basic length checks.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLen {
		return "", fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}
	if len(password) > MaxPasswordLen {
		return "", fmt.Errorf("password must be at most %d characters", MaxPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a password against its bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
