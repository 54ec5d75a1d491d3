package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
	"github.com/tesseract-hub/enquiry-service/internal/models"
	"github.com/tesseract-hub/enquiry-service/internal/policy"
	"github.com/tesseract-hub/enquiry-service/internal/services"
)

func seedAuditLogs(t *testing.T, db *gorm.DB, n int, purpose models.LawfulPurpose, severity models.AuditSeverity, expiresAt time.Time) {
	t.Helper()
	logs := make([]models.AuditLog, n)
	for i := range logs {
		logs[i] = models.AuditLog{
			Action:             "seeded_action",
			TargetTable:        "enquiries",
			Severity:           severity,
			LawfulPurpose:      purpose,
			RetentionExpiresAt: expiresAt,
			CreatedAt:          expiresAt.AddDate(0, -1, 0),
		}
	}
	require.NoError(t, db.CreateInBatches(logs, 50).Error)
}

func countAuditLogs(t *testing.T, db *gorm.DB, where ...interface{}) int64 {
	t.Helper()
	var n int64
	query := db.Model(&models.AuditLog{})
	if len(where) > 0 {
		query = query.Where(where[0], where[1:]...)
	}
	require.NoError(t, query.Count(&n).Error)
	return n
}

func TestRecordSkipsIrrelevantActions(t *testing.T) {
	env := newTestEnv(t)

	result := env.audit.Record(context.Background(), policy.KindUserAction, services.AuditEntry{
		Action:   "enquiry_viewed",
		Severity: models.SeverityLow,
	})

	assert.True(t, result.Skipped)
	assert.NotEmpty(t, result.Reason)
	assert.Zero(t, result.ID)
	assert.Equal(t, int64(0), countAuditLogs(t, env.db))
}

func TestRecordClassifiesAndSanitizes(t *testing.T) {
	env := newTestEnv(t)
	userID := uint(42)

	result := env.audit.Record(context.Background(), policy.KindSecurityEvent, services.AuditEntry{
		Action:    "login_failure",
		TableName: "users",
		RecordID:  &userID,
		UserID:    &userID,
		Severity:  models.SeverityHigh,
		NewValues: map[string]interface{}{
			"email":    "a@x.test",
			"attempts": 3,
			"profile":  map[string]interface{}{"phone": "9876543210", "city": "Kochi"},
		},
	})
	require.False(t, result.Skipped)
	require.False(t, result.Failed)
	require.NotZero(t, result.ID)

	record, err := env.audit.GetRecord(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurposeLegitimateInterest, record.LawfulPurpose)
	assert.False(t, record.DataSubjectNotified)
	assert.True(t, record.RetentionExpiresAt.After(record.CreatedAt))
	assert.WithinDuration(t, record.CreatedAt.AddDate(0, 3, 0), record.RetentionExpiresAt, time.Minute)

	values := string(record.NewValues)
	assert.NotContains(t, values, "a@x.test")
	assert.NotContains(t, values, "9876543210")
	assert.Contains(t, values, "HASH_")
	assert.Contains(t, values, "Kochi")
}

func TestRecordAdminActionNotifiesDataSubject(t *testing.T) {
	env := newTestEnv(t)

	result := env.audit.Record(context.Background(), policy.KindAdminAction, services.AuditEntry{
		Action:   "agent_account_suspended",
		Severity: models.SeverityMedium,
	})
	require.NotZero(t, result.ID)

	record, err := env.audit.GetRecord(context.Background(), result.ID)
	require.NoError(t, err)
	assert.True(t, record.DataSubjectNotified)
	assert.Equal(t, models.SeverityMedium, record.Severity)
}

func TestRecordFailureGoesToFallback(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Migrator().DropTable(&models.AuditLog{}))

	result := env.audit.Record(context.Background(), policy.KindSecurityEvent, services.AuditEntry{
		Action:    "bot_detected",
		Severity:  models.SeverityLow,
		NewValues: map[string]interface{}{"email": "bot@x.test"},
	})

	assert.True(t, result.Failed)
	assert.Contains(t, env.fallback.String(), "Audit record write failed")
	assert.Contains(t, env.fallback.String(), "bot_detected")
	assert.NotContains(t, env.fallback.String(), "bot@x.test")
}

func TestSweepExpired(t *testing.T) {
	env := newTestEnv(t)
	past := time.Now().UTC().Add(-time.Hour)
	seedAuditLogs(t, env.db, 100, models.PurposeLegitimateInterest, models.SeverityLow, past)
	seedAuditLogs(t, env.db, 10, models.PurposeLegalObligation, models.SeverityLow, past)

	result, err := env.audit.SweepExpired(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(100), result.DeletedCount)
	assert.Equal(t, int64(10), countAuditLogs(t, env.db, "action = ?", "seeded_action"))
	assert.Equal(t, int64(11), countAuditLogs(t, env.db))

	sweep, err := env.audit.GetRecord(context.Background(), result.AuditID)
	require.NoError(t, err)
	assert.Equal(t, "dpdpa_audit_cleanup", sweep.Action)
	assert.Equal(t, models.PurposeLegalObligation, sweep.LawfulPurpose)
	assert.Contains(t, string(sweep.NewValues), `"deleted_count":100`)
}

func TestSweepSparesHighSeverityAndUnexpired(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	seedAuditLogs(t, env.db, 3, models.PurposeLegitimateInterest, models.SeverityHigh, now.Add(-time.Hour))
	seedAuditLogs(t, env.db, 2, models.PurposeContractPerformance, models.SeverityMedium, now.Add(-time.Hour))
	seedAuditLogs(t, env.db, 4, models.PurposeLegitimateInterest, models.SeverityLow, now.Add(time.Hour))

	result, err := env.audit.SweepExpired(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.DeletedCount)
	assert.Equal(t, int64(7), countAuditLogs(t, env.db, "action = ?", "seeded_action"))
}

func TestExtendRetention(t *testing.T) {
	env := newTestEnv(t)
	admin := adminActor(t, env.db)
	now := time.Now().UTC()
	seedAuditLogs(t, env.db, 1, models.PurposeLegitimateInterest, models.SeverityLow, now.Add(-24*time.Hour))
	seedAuditLogs(t, env.db, 1, models.PurposeLegitimateInterest, models.SeverityLow, now.AddDate(0, 0, 10))

	var logs []models.AuditLog
	require.NoError(t, env.db.Order("id ASC").Find(&logs).Error)
	require.Len(t, logs, 2)

	expired, err := env.audit.ExtendRetention(context.Background(), logs[0].ID,
		services.ExtendRetentionInput{Days: 30, Reason: "Court order 17/2026"}, admin)
	require.NoError(t, err)
	assert.WithinDuration(t, now.AddDate(0, 0, 30), expired.RetentionExpiresAt, time.Minute)
	require.NotNil(t, expired.LegalHoldReason)
	assert.Equal(t, "Court order 17/2026", *expired.LegalHoldReason)

	future, err := env.audit.ExtendRetention(context.Background(), logs[1].ID,
		services.ExtendRetentionInput{Days: 30, Reason: "Court order 17/2026"}, admin)
	require.NoError(t, err)
	assert.WithinDuration(t, now.AddDate(0, 0, 40), future.RetentionExpiresAt, time.Minute)

	assert.Equal(t, int64(2), countAuditLogs(t, env.db, "action = ?", "legal_hold_retention_extended"))

	_, err = env.audit.ExtendRetention(context.Background(), logs[0].ID,
		services.ExtendRetentionInput{Days: 0, Reason: "x"}, admin)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = env.audit.ExtendRetention(context.Background(), 9999,
		services.ExtendRetentionInput{Days: 1, Reason: "missing record"}, admin)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestComplianceReport(t *testing.T) {
	env := newTestEnv(t)
	future := time.Now().UTC().AddDate(0, 1, 0)
	seedAuditLogs(t, env.db, 2, models.PurposeLegitimateInterest, models.SeverityLow, future)
	seedAuditLogs(t, env.db, 1, models.PurposeLegalObligation, models.SeverityCritical, time.Now().UTC().Add(-time.Hour))

	report, err := env.audit.ComplianceReport(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.TotalRecords)
	assert.Zero(t, report.MissingLawfulPurpose)
	assert.Zero(t, report.MissingRetention)
	assert.Zero(t, report.EligibleForDeletion)
	assert.True(t, report.Compliant)
	assert.Equal(t, 66.67, report.ByLawfulPurpose[models.PurposeLegitimateInterest].Percentage)
	assert.Equal(t, 33.33, report.ByLawfulPurpose[models.PurposeLegalObligation].Percentage)
	assert.Equal(t, int64(0), report.ByLawfulPurpose[models.PurposeContractPerformance].Count)
	assert.Equal(t, int64(1), report.BySeverity[models.SeverityCritical])
}

func TestListAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	seedAuditLogs(t, env.db, 25, models.PurposeLegitimateInterest, models.SeverityLow, time.Now().UTC().AddDate(0, 1, 0))

	logs, page, err := env.audit.ListAuditTrail(context.Background(), models.AuditLogFilter{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, logs, 10)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 3, page.Pages)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)

	_, _, err = env.audit.ListAuditTrail(context.Background(), models.AuditLogFilter{Severity: "severe"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}
