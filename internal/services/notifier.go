package services

import (
	"context"

	"github.com/tesseract-hub/enquiry-service/internal/models"
)

// AudienceRequest is a dispatch request tagged with who it addresses
type AudienceRequest struct {
	Audience models.NotificationAudience
	DispatchRequest
}

// Notifier dispatches notifications and records the outcomes in the ledger
type Notifier struct {
	dispatcher *NotificationDispatcher
	ledger     *NotificationLedger
}

// NewNotifier creates a notifier. A nil ledger disables recording.
func NewNotifier(dispatcher *NotificationDispatcher, ledger *NotificationLedger) *Notifier {
	return &Notifier{dispatcher: dispatcher, ledger: ledger}
}

// Deliver sends every request independently and records the outcomes.
// It is called after commit and outlives cancellation of the request context.
func (n *Notifier) Deliver(ctx context.Context, enquiryID *uint, reqs []AudienceRequest) []Delivery {
	if len(reqs) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	plain := make([]DispatchRequest, len(reqs))
	for i := range reqs {
		plain[i] = reqs[i].DispatchRequest
	}
	results := n.dispatcher.DispatchBulk(ctx, plain)

	deliveries := make([]Delivery, len(reqs))
	for i, res := range results {
		deliveries[i] = Delivery{
			Audience:  reqs[i].Audience,
			Template:  res.Template,
			Email:     res.Email,
			SMS:       res.SMS,
			Recipient: reqs[i].Recipient,
		}
	}
	if n.ledger != nil {
		n.ledger.Record(ctx, enquiryID, deliveries)
	}
	return deliveries
}
