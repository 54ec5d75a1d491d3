package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/models"
)

// NotificationRepository writes the per-channel notification ledger
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch records several ledger entries
func (r *NotificationRepository) CreateBatch(ctx context.Context, entries []*models.EnquiryNotification) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(entries, 50).Error
}

// ListByEnquiry returns the ledger of one enquiry in write order
func (r *NotificationRepository) ListByEnquiry(ctx context.Context, enquiryID uint) ([]models.EnquiryNotification, error) {
	var entries []models.EnquiryNotification
	err := r.db.WithContext(ctx).
		Where("enquiry_id = ?", enquiryID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

