package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
	"github.com/tesseract-hub/enquiry-service/internal/database"
	"github.com/tesseract-hub/enquiry-service/internal/metrics"
	"github.com/tesseract-hub/enquiry-service/internal/models"
	"github.com/tesseract-hub/enquiry-service/internal/policy"
	"github.com/tesseract-hub/enquiry-service/internal/repository"
)

const (
	actionAuditCleanup      = "dpdpa_audit_cleanup"
	actionRetentionExtended = "legal_hold_retention_extended"
	tableAuditLogs          = "audit_logs"
)

// AuditEntry is an action to be considered for the audit log
type AuditEntry struct {
	Action      string
	TableName   string
	RecordID    *uint
	UserID      *uint
	OldValues   map[string]interface{}
	NewValues   map[string]interface{}
	IPAddress   string
	UserAgent   string
	Description string
	Severity    models.AuditSeverity
}

// RecordResult reports what happened to an audit entry
type RecordResult struct {
	ID      uint   `json:"id,omitempty"`
	Skipped bool   `json:"skipped"`
	Failed  bool   `json:"failed,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// SweepResult reports a retention sweep
type SweepResult struct {
	DeletedCount int64     `json:"deleted_count"`
	Cutoff       time.Time `json:"cutoff"`
	AuditID      uint      `json:"audit_id,omitempty"`
}

// AuditService writes classified audit records and enforces their retention.
// Failed writes go to the fallback logger and never fail the caller.
type AuditService struct {
	store     *database.Store
	sanitizer *policy.Sanitizer
	publisher EventPublisher
	fallback  *logrus.Logger
	logger    *logrus.Logger
}

// NewAuditService creates a new audit service. A nil fallback logs failed writes to stderr.
func NewAuditService(store *database.Store, sanitizer *policy.Sanitizer, publisher EventPublisher, fallback, logger *logrus.Logger) *AuditService {
	if fallback == nil {
		fallback = newJSONLogger(os.Stderr)
	}
	return &AuditService{
		store:     store,
		sanitizer: sanitizer,
		publisher: publisher,
		fallback:  fallback,
		logger:    logger,
	}
}

// NewAuditFallbackLogger opens the fallback stream. An empty path means stderr.
func NewAuditFallbackLogger(path string) (*logrus.Logger, io.Closer, error) {
	if path == "" {
		return newJSONLogger(os.Stderr), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit fallback log: %w", err)
	}
	return newJSONLogger(f), f, nil
}

func newJSONLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	return l
}

// Record writes entry outside any enclosing transaction
func (s *AuditService) Record(ctx context.Context, kind policy.ActionKind, entry AuditEntry) RecordResult {
	return s.RecordInTx(ctx, s.store.DB(), kind, entry)
}

// RecordInTx writes entry through a savepoint of tx so a failed write leaves tx usable
func (s *AuditService) RecordInTx(ctx context.Context, tx *gorm.DB, kind policy.ActionKind, entry AuditEntry) RecordResult {
	sensitivity := policy.SensitivityOf(kind, entry.Action)
	if !sensitivity.Relevant {
		metrics.AuditRecords.WithLabelValues("skipped").Inc()
		return RecordResult{Skipped: true, Reason: sensitivity.Reason}
	}

	log, err := s.buildRecord(kind, entry, time.Now().UTC())
	if err == nil {
		err = tx.Transaction(func(sp *gorm.DB) error {
			return repository.NewAuditRepository(sp).Create(ctx, log)
		})
	}
	if err != nil {
		metrics.AuditRecords.WithLabelValues("failed").Inc()
		s.fallback.WithFields(logrus.Fields{
			"action":         entry.Action,
			"kind":           kind,
			"table_name":     entry.TableName,
			"record_id":      entry.RecordID,
			"user_id":        entry.UserID,
			"severity":       entry.Severity,
			"description":    entry.Description,
			"new_values":     s.sanitizer.Sanitize(entry.NewValues),
			"lawful_purpose": policy.LawfulPurposeOf(entry.Action, entry.Severity),
		}).WithError(err).Error("Audit record write failed")
		return RecordResult{Failed: true, Reason: err.Error()}
	}

	metrics.AuditRecords.WithLabelValues("written").Inc()
	if log.IsHighSeverity() {
		s.alert(log)
	}
	return RecordResult{ID: log.ID}
}

func (s *AuditService) buildRecord(kind policy.ActionKind, entry AuditEntry, now time.Time) (*models.AuditLog, error) {
	severity := entry.Severity
	if !severity.IsValid() {
		severity = models.SeverityLow
	}
	purpose := policy.LawfulPurposeOf(entry.Action, severity)

	oldValues, err := s.encode(entry.OldValues)
	if err != nil {
		return nil, err
	}
	newValues, err := s.encode(entry.NewValues)
	if err != nil {
		return nil, err
	}

	return &models.AuditLog{
		UserID:              entry.UserID,
		Action:              entry.Action,
		TargetTable:         entry.TableName,
		RecordID:            entry.RecordID,
		OldValues:           oldValues,
		NewValues:           newValues,
		IPAddress:           entry.IPAddress,
		UserAgent:           entry.UserAgent,
		Description:         entry.Description,
		Severity:            severity,
		LawfulPurpose:       purpose,
		DataSubjectNotified: policy.ShouldNotifyDataSubject(entry.Action, kind),
		RetentionExpiresAt:  policy.RetentionExpiry(purpose, severity, now),
		CreatedAt:           now,
	}, nil
}

func (s *AuditService) encode(values map[string]interface{}) (datatypes.JSON, error) {
	if values == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s.sanitizer.Sanitize(values))
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit values: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func (s *AuditService) alert(log *models.AuditLog) {
	s.logger.WithFields(logrus.Fields{
		"audit_id":       log.ID,
		"action":         log.Action,
		"table_name":     log.TargetTable,
		"record_id":      log.RecordID,
		"user_id":        log.UserID,
		"severity":       log.Severity,
		"lawful_purpose": log.LawfulPurpose,
	}).Warn("High severity audit event")

	if s.publisher != nil {
		alert := map[string]interface{}{
			"audit_id":   log.ID,
			"action":     log.Action,
			"table_name": log.TargetTable,
			"record_id":  log.RecordID,
			"severity":   log.Severity,
		}
		go publish(s.publisher, s.logger, subjectAuditAlert+string(log.Severity), alert)
	}
}

// ListAuditTrail returns a page of audit records, newest first
func (s *AuditService) ListAuditTrail(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, models.Pagination, error) {
	if filter.Severity != "" && !filter.Severity.IsValid() {
		return nil, models.Pagination{}, apperrors.Validation("validation failed",
			apperrors.Field("severity", "must be one of low, medium, high, critical"))
	}
	logs, total, err := repository.NewAuditRepository(s.store.DB()).List(ctx, filter)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list audit trail")
		return nil, models.Pagination{}, apperrors.FromDB(err, "failed to list audit trail")
	}
	return logs, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// GetRecord retrieves a single audit record
func (s *AuditService) GetRecord(ctx context.Context, id uint) (*models.AuditLog, error) {
	log, err := repository.NewAuditRepository(s.store.DB()).GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.FromDB(err, "failed to get audit record")
	}
	return log, nil
}

// SweepExpired deletes records past retention, except legal obligations and
// high severities, and records the sweep itself as a compliance record.
func (s *AuditService) SweepExpired(ctx context.Context, actor *Actor) (*SweepResult, error) {
	now := time.Now().UTC()
	var result SweepResult

	err := s.store.WithinTx(ctx, func(tx *gorm.DB) error {
		result = SweepResult{Cutoff: now}

		deleted, err := repository.NewAuditRepository(tx).DeleteExpired(ctx, now)
		if err != nil {
			return err
		}
		result.DeletedCount = deleted

		entry := AuditEntry{
			Action:      actionAuditCleanup,
			TableName:   tableAuditLogs,
			Description: fmt.Sprintf("Retention sweep deleted %d expired audit records", deleted),
			Severity:    models.SeverityMedium,
			NewValues: map[string]interface{}{
				"deleted_count": deleted,
				"cutoff":        now.Format(time.RFC3339),
			},
		}
		if actor != nil {
			entry.UserID = actor.userID()
			entry.IPAddress = actor.IPAddress
			entry.UserAgent = actor.UserAgent
		}
		result.AuditID = s.RecordInTx(ctx, tx, policy.KindCompliance, entry).ID
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Error("Audit retention sweep failed")
		return nil, err
	}

	metrics.AuditSweepDeleted.Add(float64(result.DeletedCount))
	s.logger.WithFields(logrus.Fields{
		"deleted": result.DeletedCount,
		"cutoff":  now,
	}).Info("Audit retention sweep completed")
	return &result, nil
}

// ExtendRetention places a record on legal hold by pushing its expiry days
// past the later of its current expiry and now.
func (s *AuditService) ExtendRetention(ctx context.Context, id uint, input ExtendRetentionInput, actor *Actor) (*models.AuditLog, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	var updated *models.AuditLog
	err := s.store.WithinTx(ctx, func(tx *gorm.DB) error {
		repo := repository.NewAuditRepository(tx)
		record, err := repo.GetByID(ctx, id)
		if err != nil {
			return apperrors.FromDB(err, "failed to get audit record")
		}

		base := record.RetentionExpiresAt
		if base.Before(now) {
			base = now
		}
		expiresAt := base.AddDate(0, 0, input.Days)
		if err := repo.ExtendRetention(ctx, id, expiresAt, input.Reason); err != nil {
			return err
		}

		s.RecordInTx(ctx, tx, policy.KindCompliance, AuditEntry{
			Action:      actionRetentionExtended,
			TableName:   tableAuditLogs,
			RecordID:    &record.ID,
			UserID:      actor.userID(),
			IPAddress:   actorIP(actor),
			UserAgent:   actorUserAgent(actor),
			Description: input.Reason,
			Severity:    models.SeverityMedium,
			OldValues:   map[string]interface{}{"retention_expires_at": record.RetentionExpiresAt.Format(time.RFC3339)},
			NewValues: map[string]interface{}{
				"retention_expires_at": expiresAt.Format(time.RFC3339),
				"days":                 input.Days,
			},
		})

		updated, err = repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ComplianceReport summarises the DPDPA posture of the audit log
func (s *AuditService) ComplianceReport(ctx context.Context) (*models.ComplianceReport, error) {
	report, err := repository.NewAuditRepository(s.store.DB()).ComplianceCounts(ctx, time.Now().UTC())
	if err != nil {
		s.logger.WithError(err).Error("Failed to build compliance report")
		return nil, apperrors.FromDB(err, "failed to build compliance report")
	}

	for _, purpose := range models.LawfulPurposes {
		share := report.ByLawfulPurpose[purpose]
		share.Percentage = percentage(share.Count, report.TotalRecords)
		report.ByLawfulPurpose[purpose] = share
	}
	report.Compliant = report.MissingLawfulPurpose == 0 && report.MissingRetention == 0
	return report, nil
}

func percentage(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*10000) / 100
}

func actorIP(a *Actor) string {
	if a == nil {
		return ""
	}
	return a.IPAddress
}

func actorUserAgent(a *Actor) string {
	if a == nil {
		return ""
	}
	return a.UserAgent
}
