// Package policy holds the pure rules that decide which actions are audited,
// under which DPDPA lawful purpose, for how long, and with which values hashed.
package policy

import (
	"regexp"
	"strings"
	"time"

	"github.com/tesseract-hub/enquiry-service/internal/models"
)

// ActionKind is the class of actor behind an auditable action
type ActionKind string

const (
	KindAdminAction   ActionKind = "admin_action"
	KindSecurityEvent ActionKind = "security_event"
	KindUserAction    ActionKind = "user_action"
	KindCompliance    ActionKind = "compliance"
)

// IsValid reports whether k is a known kind
func (k ActionKind) IsValid() bool {
	switch k {
	case KindAdminAction, KindSecurityEvent, KindUserAction, KindCompliance:
		return true
	}
	return false
}

var adminActionMarkers = []string{
	"suspended", "banned", "deleted", "password_reset_forced", "locked", "rejected", "removed",
	"investigation", "breach", "spam", "moderation", "fraud", "violation",
}

var securityEvents = map[string]struct{}{
	"login_failure":            {},
	"suspicious_login":         {},
	"account_lockout":          {},
	"password_reset_abuse":     {},
	"multiple_failed_attempts": {},
	"suspicious_registration":  {},
	"bot_detected":             {},
	"scraping_detected":        {},
	"rate_limit_exceeded":      {},
	"injection_attempt":        {},
	"unauthorized_access":      {},
	"data_breach":              {},
	"fake_listing_attempt":     {},
	"spam_posting":             {},
}

var userActionMarkers = []string{
	"security", "password", "verification", "suspicious", "data_access", "spam", "abuse", "violation",
	"scraping", "bot",
}

// visible to the data subject when performed by an admin
var subjectVisibleMarkers = []string{"suspended", "banned", "deleted", "rejected", "locked", "forced"}

var (
	legalObligationPattern     = regexp.MustCompile(`(?i)legal|compliance|data_deletion|audit_cleanup|dpdpa`)
	contractPerformancePattern = regexp.MustCompile(`(?i)service|commission|assign`)
)

// Sensitivity is the outcome of the audit relevance check
type Sensitivity struct {
	Relevant bool
	Reason   string
}

// SensitivityOf decides whether an action of the given kind is written to the audit log
func SensitivityOf(kind ActionKind, action string) Sensitivity {
	action = strings.ToLower(strings.TrimSpace(action))
	switch kind {
	case KindCompliance:
		return Sensitivity{Relevant: true}
	case KindAdminAction:
		if containsAny(action, adminActionMarkers) {
			return Sensitivity{Relevant: true}
		}
		return Sensitivity{Reason: "admin action is not security relevant"}
	case KindSecurityEvent:
		if _, ok := securityEvents[action]; ok {
			return Sensitivity{Relevant: true}
		}
		return Sensitivity{Reason: "not a recognised security event"}
	case KindUserAction:
		if containsAny(action, userActionMarkers) {
			return Sensitivity{Relevant: true}
		}
		return Sensitivity{Reason: "user action is not security relevant"}
	default:
		return Sensitivity{Reason: "unknown action kind"}
	}
}

// LawfulPurposeOf classifies the legal basis for keeping a record of action
func LawfulPurposeOf(action string, severity models.AuditSeverity) models.LawfulPurpose {
	switch {
	case legalObligationPattern.MatchString(action):
		return models.PurposeLegalObligation
	case contractPerformancePattern.MatchString(action):
		return models.PurposeContractPerformance
	default:
		return models.PurposeLegitimateInterest
	}
}

// ShouldNotifyDataSubject reports whether the affected user must be told about the action
func ShouldNotifyDataSubject(action string, kind ActionKind) bool {
	if kind != KindAdminAction {
		return false
	}
	return containsAny(strings.ToLower(action), subjectVisibleMarkers)
}

// RetentionExpiry returns when a record created at now becomes eligible for deletion
func RetentionExpiry(purpose models.LawfulPurpose, severity models.AuditSeverity, now time.Time) time.Time {
	switch purpose {
	case models.PurposeLegalObligation:
		return now.AddDate(7, 0, 0)
	case models.PurposeContractPerformance:
		return now.AddDate(1, 0, 0)
	}
	switch severity {
	case models.SeverityCritical:
		return now.AddDate(0, 6, 0)
	case models.SeverityHigh:
		return now.AddDate(0, 3, 0)
	default:
		return now.AddDate(0, 1, 0)
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
