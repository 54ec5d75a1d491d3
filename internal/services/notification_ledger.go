package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/enquiry-service/internal/models"
	"github.com/tesseract-hub/enquiry-service/internal/repository"
)

// Delivery is one dispatched notification and who it was for
type Delivery struct {
	Audience  models.NotificationAudience `json:"audience"`
	Template  string                      `json:"template"`
	Email     ChannelOutcome              `json:"email"`
	SMS       ChannelOutcome              `json:"sms"`
	Recipient Recipient                   `json:"-"`
}

// NotificationSummary aggregates deliveries per channel for API responses
type NotificationSummary struct {
	Email ChannelOutcome `json:"email"`
	SMS   ChannelOutcome `json:"sms"`
}

// Summarize folds deliveries into one outcome per channel. A channel counts as
// sent only when every attempted delivery on it was sent.
func Summarize(deliveries []Delivery) NotificationSummary {
	var summary NotificationSummary
	emails := make([]ChannelOutcome, 0, len(deliveries))
	sms := make([]ChannelOutcome, 0, len(deliveries))
	for _, d := range deliveries {
		emails = append(emails, d.Email)
		sms = append(sms, d.SMS)
	}
	summary.Email = foldOutcomes(emails)
	summary.SMS = foldOutcomes(sms)
	return summary
}

func foldOutcomes(outcomes []ChannelOutcome) ChannelOutcome {
	var folded ChannelOutcome
	var errs, ids []string
	allSent := true
	for _, o := range outcomes {
		if !o.Attempted {
			continue
		}
		folded.Attempted = true
		if !o.Sent {
			allSent = false
		}
		if o.Error != "" {
			errs = append(errs, o.Error)
		}
		if o.MessageID != "" {
			ids = append(ids, o.MessageID)
		}
	}
	folded.Sent = folded.Attempted && allSent
	folded.Error = strings.Join(errs, "; ")
	folded.MessageID = strings.Join(ids, ",")
	return folded
}

// NotificationLedger persists delivery outcomes. Writes are best-effort.
type NotificationLedger struct {
	repo   *repository.NotificationRepository
	logger *logrus.Logger
}

// NewNotificationLedger creates a ledger writer
func NewNotificationLedger(repo *repository.NotificationRepository, logger *logrus.Logger) *NotificationLedger {
	return &NotificationLedger{repo: repo, logger: logger}
}

// Record writes one row per attempted channel of each delivery
func (l *NotificationLedger) Record(ctx context.Context, enquiryID *uint, deliveries []Delivery) {
	var entries []*models.EnquiryNotification
	for _, d := range deliveries {
		if d.Email.Attempted {
			entries = append(entries, ledgerEntry(enquiryID, d, ChannelEmail, MaskEmail(d.Recipient.Email), d.Email))
		}
		if d.SMS.Attempted {
			entries = append(entries, ledgerEntry(enquiryID, d, ChannelSMS, MaskPhone(d.Recipient.Phone), d.SMS))
		}
	}
	if err := l.repo.CreateBatch(ctx, entries); err != nil {
		l.logger.WithError(err).WithField("entries", len(entries)).Error("Failed to record notification ledger")
	}
}

func ledgerEntry(enquiryID *uint, d Delivery, channel Channel, recipient string, o ChannelOutcome) *models.EnquiryNotification {
	return &models.EnquiryNotification{
		EnquiryID: enquiryID,
		UserID:    d.Recipient.UserID,
		Audience:  d.Audience,
		Template:  d.Template,
		Channel:   string(channel),
		Recipient: recipient,
		Sent:      o.Sent,
		Error:     o.Error,
		MessageID: o.MessageID,
	}
}
