package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/models"
)

// PropertyRepository reads listings and maintains their enquiry counters
type PropertyRepository struct {
	db *gorm.DB
}

// NewPropertyRepository creates a new property repository
func NewPropertyRepository(db *gorm.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// GetByID retrieves a property
func (r *PropertyRepository) GetByID(ctx context.Context, id uint) (*models.Property, error) {
	var property models.Property
	if err := r.db.WithContext(ctx).First(&property, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &property, nil
}

// IncrementInquiries bumps inquiries_count and reports whether the property exists
func (r *PropertyRepository) IncrementInquiries(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ?", id).
		UpdateColumn("inquiries_count", gorm.Expr("inquiries_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
