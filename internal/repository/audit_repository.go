package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/models"
)

// AuditRepository handles database operations for audit logs
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create creates a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// GetByID retrieves an audit log by ID
func (r *AuditRepository) GetByID(ctx context.Context, id uint) (*models.AuditLog, error) {
	var log models.AuditLog
	if err := r.db.WithContext(ctx).First(&log, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// List retrieves audit logs with filtering and pagination, newest first
func (r *AuditRepository) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := r.applyFilters(r.db.WithContext(ctx).Model(&models.AuditLog{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := models.NormalizePage(filter.Page, filter.Limit)
	err := query.
		Order("created_at DESC, id DESC").
		Offset(models.Offset(page, limit)).
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *AuditRepository) applyFilters(query *gorm.DB, filter models.AuditLogFilter) *gorm.DB {
	if filter.TableName != "" {
		query = query.Where("table_name = ?", filter.TableName)
	}
	if filter.RecordID != nil {
		query = query.Where("record_id = ?", *filter.RecordID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.LawfulPurpose != "" {
		query = query.Where("lawful_purpose = ?", filter.LawfulPurpose)
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at <= ?", *filter.ToDate)
	}
	return query
}

// sweepable restricts a query to records the retention sweep may delete at now
func sweepable(query *gorm.DB, now time.Time) *gorm.DB {
	return query.
		Where("retention_expires_at <= ?", now).
		Where("lawful_purpose <> ?", models.PurposeLegalObligation).
		Where("severity IN ?", []models.AuditSeverity{models.SeverityLow, models.SeverityMedium})
}

// DeleteExpired removes records past retention, sparing legal obligations and high severities
func (r *AuditRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := sweepable(r.db.WithContext(ctx), now).Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}

// ExtendRetention moves the expiry of a record and records the legal hold reason
func (r *AuditRepository) ExtendRetention(ctx context.Context, id uint, expiresAt time.Time, reason string) error {
	return r.db.WithContext(ctx).Model(&models.AuditLog{}).Where("id = ?", id).Updates(map[string]interface{}{
		"retention_expires_at": expiresAt,
		"legal_hold_reason":    reason,
	}).Error
}

// ComplianceCounts aggregates the figures behind a compliance report
func (r *AuditRepository) ComplianceCounts(ctx context.Context, now time.Time) (*models.ComplianceReport, error) {
	db := r.db.WithContext(ctx)
	report := &models.ComplianceReport{
		GeneratedAt:     now,
		ByLawfulPurpose: make(map[models.LawfulPurpose]models.PurposeShare),
		BySeverity:      make(map[models.AuditSeverity]int64),
	}

	if err := db.Model(&models.AuditLog{}).Count(&report.TotalRecords).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.AuditLog{}).
		Where("lawful_purpose IS NULL OR lawful_purpose = ''").
		Count(&report.MissingLawfulPurpose).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.AuditLog{}).
		Where("retention_expires_at IS NULL").
		Count(&report.MissingRetention).Error; err != nil {
		return nil, err
	}
	if err := sweepable(db.Model(&models.AuditLog{}), now).Count(&report.EligibleForDeletion).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.AuditLog{}).
		Where("legal_hold_reason IS NOT NULL").
		Count(&report.UnderLegalHold).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.AuditLog{}).
		Where("data_subject_notified = ?", true).
		Count(&report.DataSubjectNotified).Error; err != nil {
		return nil, err
	}

	var purposes []struct {
		LawfulPurpose models.LawfulPurpose
		Count         int64
	}
	if err := db.Model(&models.AuditLog{}).
		Select("lawful_purpose, COUNT(*) AS count").
		Group("lawful_purpose").
		Scan(&purposes).Error; err != nil {
		return nil, err
	}
	for _, row := range purposes {
		report.ByLawfulPurpose[row.LawfulPurpose] = models.PurposeShare{Count: row.Count}
	}

	var severities []struct {
		Severity models.AuditSeverity
		Count    int64
	}
	if err := db.Model(&models.AuditLog{}).
		Select("severity, COUNT(*) AS count").
		Group("severity").
		Scan(&severities).Error; err != nil {
		return nil, err
	}
	for _, row := range severities {
		report.BySeverity[row.Severity] = row.Count
	}

	return report, nil
}
