package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by numeric id
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmailOrPhone returns the oldest user matching either contact, or gorm.ErrRecordNotFound
func (r *UserRepository) FindByEmailOrPhone(ctx context.Context, email, phone string) (*models.User, error) {
	var user models.User
	query := r.db.WithContext(ctx)
	switch {
	case email != "" && phone != "":
		query = query.Where("email = ? OR phone = ?", email, phone)
	case email != "":
		query = query.Where("email = ?", email)
	case phone != "":
		query = query.Where("phone = ?", phone)
	default:
		return nil, gorm.ErrRecordNotFound
	}
	if err := query.Order("id ASC").First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListAssignableAgents returns active agents with a verified email
func (r *UserRepository) ListAssignableAgents(ctx context.Context) ([]models.User, error) {
	var agents []models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND status = ? AND email_verified_at IS NOT NULL", models.RoleAgent, models.UserStatusActive).
		Order("id ASC").
		Find(&agents).Error
	return agents, err
}

// SetVerificationCredentials replaces the pending email token and phone code
func (r *UserRepository) SetVerificationCredentials(ctx context.Context, id uint, token string, tokenExpiry time.Time, code string, codeExpiry time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"email_verification_token":      token,
		"email_verification_expires_at": tokenExpiry,
		"phone_verification_code":       code,
		"phone_verification_expires_at": codeExpiry,
	}).Error
}
