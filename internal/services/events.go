package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/enquiry-service/internal/models"
)

// Event subjects
const (
	SubjectEnquiryCreated  = "enquiry.created"
	SubjectEnquiryAssigned = "enquiry.assigned"
	SubjectEnquiryUpdated  = "enquiry.updated"
	subjectAuditAlert      = "audit.alert."
)

// EventPublisher publishes domain events. Implemented by the NATS publisher.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// EnquiryEvent is the payload of enquiry lifecycle events. It carries no submitter PII.
type EnquiryEvent struct {
	EnquiryID    uint                   `json:"enquiry_id"`
	TicketNumber string                 `json:"ticket_number"`
	Status       models.EnquiryStatus   `json:"status"`
	Priority     models.EnquiryPriority `json:"priority"`
	AssignedTo   *uint                  `json:"assigned_to,omitempty"`
	PropertyID   *uint                  `json:"property_id,omitempty"`
	Source       string                 `json:"source"`
	ActorID      *uint                  `json:"actor_id,omitempty"`
}

func newEnquiryEvent(e *models.Enquiry, actor *Actor) EnquiryEvent {
	event := EnquiryEvent{
		EnquiryID:    e.ID,
		TicketNumber: e.TicketNumber,
		Status:       e.Status,
		Priority:     e.Priority,
		AssignedTo:   e.AssignedTo,
		PropertyID:   e.PropertyID,
		Source:       e.Source,
	}
	if actor != nil {
		id := actor.UserID
		event.ActorID = &id
	}
	return event
}

// publish is fire-and-forget; failures are logged
func publish(publisher EventPublisher, logger *logrus.Logger, subject string, data interface{}) {
	if publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := publisher.Publish(ctx, subject, data); err != nil {
		logger.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
	}
}
