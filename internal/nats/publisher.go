package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Event is the envelope of every published message
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// Publisher publishes domain events to JetStream
type Publisher struct {
	client *Client
	logger *logrus.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(client *Client, logger *logrus.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// Publish sends data on subject. A disconnected client skips silently.
func (p *Publisher) Publish(ctx context.Context, subject string, data interface{}) error {
	if p.client == nil || !p.client.IsConnected() {
		p.logger.WithField("subject", subject).Debug("NATS not connected, skipping event publish")
		return nil
	}

	payload, err := json.Marshal(Event{
		ID:         uuid.NewString(),
		Type:       subject,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := p.client.JetStream().Publish(subject, payload, nats.Context(ctx))
	if err != nil {
		p.logger.WithField("subject", subject).WithError(err).Error("Failed to publish event")
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"subject":  subject,
		"sequence": ack.Sequence,
		"stream":   ack.Stream,
	}).Debug("Published event")
	return nil
}
