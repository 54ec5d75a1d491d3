package services

import (
	"context"
)

// Channel names a notification channel
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Provider represents a notification transport
type Provider interface {
	Send(ctx context.Context, message *Message) (*SendResult, error)
	GetName() string
	SupportsChannel() Channel
}

// Message represents a message to be sent
type Message struct {
	To       string
	Subject  string
	Body     string
	BodyHTML string
	FromName string
	ReplyTo  string
	Headers  map[string]string
	// Template is the notification template name, used by transports with server-side templates
	Template string
	// Vars are the template variables, passed through to server-side templates
	Vars map[string]string
}

// SendResult represents the result of a send operation
type SendResult struct {
	ProviderID   string
	ProviderName string
	Success      bool
	Error        error
	ProviderData map[string]interface{}
}

func failed(provider string, err error) (*SendResult, error) {
	return &SendResult{
		ProviderName: provider,
		Success:      false,
		Error:        err,
	}, err
}
