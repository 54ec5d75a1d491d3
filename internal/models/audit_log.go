package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditSeverity represents the severity/importance of the audit event
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// LawfulPurpose is the DPDPA legal basis for retaining a record
type LawfulPurpose string

const (
	PurposeLegitimateInterest  LawfulPurpose = "legitimate_interest"
	PurposeLegalObligation     LawfulPurpose = "legal_obligation"
	PurposeContractPerformance LawfulPurpose = "contract_performance"
)

// LawfulPurposes lists every purpose in report order
var LawfulPurposes = []LawfulPurpose{
	PurposeLegitimateInterest,
	PurposeLegalObligation,
	PurposeContractPerformance,
}

// IsValid reports whether s is a known severity
func (s AuditSeverity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AuditLog represents a single audit log entry
type AuditLog struct {
	ID     uint  `json:"id" gorm:"primaryKey"`
	UserID *uint `json:"user_id" gorm:"index:idx_audit_logs_user_created,priority:1"`

	Action      string `json:"action" gorm:"type:varchar(100);not null;index"`
	TargetTable string `json:"table_name" gorm:"column:table_name;type:varchar(64);index:idx_audit_logs_table_record,priority:1"`
	RecordID    *uint  `json:"record_id" gorm:"index:idx_audit_logs_table_record,priority:2"`

	// Changes tracking, PII hashed
	OldValues datatypes.JSON `json:"old_values" gorm:"type:jsonb"`
	NewValues datatypes.JSON `json:"new_values" gorm:"type:jsonb"`

	IPAddress   string        `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent   string        `json:"user_agent" gorm:"type:text"`
	Description string        `json:"description" gorm:"type:text"`
	Severity    AuditSeverity `json:"severity" gorm:"type:varchar(20);not null;default:'low';index"`

	// DPDPA
	LawfulPurpose       LawfulPurpose `json:"lawful_purpose" gorm:"type:varchar(32);not null;index"`
	DataSubjectNotified bool          `json:"data_subject_notified" gorm:"not null;default:false"`
	RetentionExpiresAt  time.Time     `json:"retention_expires_at" gorm:"not null;index"`
	LegalHoldReason     *string       `json:"legal_hold_reason,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_audit_logs_user_created,priority:2"`
}

// TableName specifies the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// IsHighSeverity checks if the event is high severity
func (a *AuditLog) IsHighSeverity() bool {
	return a.Severity == SeverityHigh || a.Severity == SeverityCritical
}

// IsSweepable reports whether the retention sweep may delete the record at now
func (a *AuditLog) IsSweepable(now time.Time) bool {
	return a.LawfulPurpose != PurposeLegalObligation &&
		(a.Severity == SeverityLow || a.Severity == SeverityMedium) &&
		!a.RetentionExpiresAt.After(now)
}

// AuditLogFilter represents filter criteria for the audit trail
type AuditLogFilter struct {
	TableName     string
	RecordID      *uint
	UserID        *uint
	Action        string
	Severity      AuditSeverity
	LawfulPurpose LawfulPurpose
	FromDate      *time.Time
	ToDate        *time.Time
	Page          int
	Limit         int
}

// PurposeShare is one row of the compliance breakdown
type PurposeShare struct {
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ComplianceReport summarises audit log DPDPA posture
type ComplianceReport struct {
	GeneratedAt          time.Time                      `json:"generated_at"`
	TotalRecords         int64                          `json:"total_records"`
	MissingLawfulPurpose int64                          `json:"missing_lawful_purpose"`
	MissingRetention     int64                          `json:"missing_retention"`
	EligibleForDeletion  int64                          `json:"eligible_for_deletion"`
	UnderLegalHold       int64                          `json:"under_legal_hold"`
	DataSubjectNotified  int64                          `json:"data_subject_notified"`
	ByLawfulPurpose      map[LawfulPurpose]PurposeShare `json:"by_lawful_purpose"`
	BySeverity           map[AuditSeverity]int64        `json:"by_severity"`
	Compliant            bool                           `json:"compliant"`
}
