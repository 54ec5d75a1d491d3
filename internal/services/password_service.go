package services

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
)

const (
	// DefaultBcryptCost is used when no cost is configured
	DefaultBcryptCost = 12
	minPasswordLength = 8
	maxPasswordLength = 72
)

// PasswordService handles password hashing
type PasswordService struct {
	cost int
}

// NewPasswordService creates a new password service. A cost outside bcrypt's range falls back to the default.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordService{cost: cost}
}

// ValidatePassword checks length limits
func (ps *PasswordService) ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return apperrors.Validation("invalid password",
			apperrors.Field("password", "password must be at least 8 characters long"))
	}
	if len(password) > maxPasswordLength {
		return apperrors.Validation("invalid password",
			apperrors.Field("password", "password must be at most 72 bytes long"))
	}
	return nil
}

// HashPassword hashes a password using bcrypt
func (ps *PasswordService) HashPassword(password string) (string, error) {
	if err := ps.ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), ps.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword compares a password with its hash
func (ps *PasswordService) VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
