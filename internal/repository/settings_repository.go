package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tesseract-hub/enquiry-service/internal/models"
)

// SettingsRepository reads and writes system settings
type SettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns a setting value and whether it exists
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var setting models.SystemSetting
	err := r.db.WithContext(ctx).First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

// GetBool returns a boolean setting, or defaultValue when absent or unparsable
func (r *SettingsRepository) GetBool(ctx context.Context, key string, defaultValue bool) (bool, error) {
	value, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return defaultValue, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue, nil
	}
	return b, nil
}

// Set upserts a setting
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.SystemSetting{Key: key, Value: value}).Error
}
