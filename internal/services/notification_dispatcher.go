package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
	"github.com/tesseract-hub/enquiry-service/internal/config"
	"github.com/tesseract-hub/enquiry-service/internal/metrics"
	"github.com/tesseract-hub/enquiry-service/internal/templates"
)

// ChannelSet selects the channels of a dispatch
type ChannelSet struct {
	Email bool
	SMS   bool
}

// AllChannels sends on email and SMS
var AllChannels = ChannelSet{Email: true, SMS: true}

// Recipient is who a notification is addressed to
type Recipient struct {
	UserID *uint
	Name   string
	Email  string
	Phone  string
}

// ChannelOutcome is the result of one channel of a dispatch
type ChannelOutcome struct {
	Attempted bool   `json:"attempted"`
	Sent      bool   `json:"sent"`
	Error     string `json:"error,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// DispatchRequest is one notification to one recipient
type DispatchRequest struct {
	Channels  ChannelSet
	Template  string
	Recipient Recipient
	Vars      map[string]string
}

// DispatchResult holds per-channel outcomes of one request
type DispatchResult struct {
	Template string         `json:"template"`
	Email    ChannelOutcome `json:"email"`
	SMS      ChannelOutcome `json:"sms"`
}

// NotificationDispatcher renders templates and sends them over email and SMS.
// Transport errors are reported in the result, never returned.
type NotificationDispatcher struct {
	email        Provider
	sms          Provider
	branding     templates.Branding
	emailTimeout time.Duration
	smsTimeout   time.Duration
	logger       *logrus.Logger
}

// NewNotificationDispatcher creates a dispatcher. A nil provider marks the channel unconfigured.
func NewNotificationDispatcher(email, sms Provider, cfg config.NotificationConfig, logger *logrus.Logger) *NotificationDispatcher {
	emailTimeout, smsTimeout := cfg.EmailTimeout, cfg.SMSTimeout
	if emailTimeout <= 0 {
		emailTimeout = 15 * time.Second
	}
	if smsTimeout <= 0 {
		smsTimeout = 15 * time.Second
	}
	return &NotificationDispatcher{
		email: email,
		sms:   sms,
		branding: templates.Branding{
			CompanyName:  cfg.CompanyName,
			FrontendURL:  cfg.FrontendURL,
			SupportEmail: cfg.SupportEmail,
		},
		emailTimeout: emailTimeout,
		smsTimeout:   smsTimeout,
		logger:       logger,
	}
}

// Dispatch sends one notification on the requested channels concurrently
func (d *NotificationDispatcher) Dispatch(ctx context.Context, req DispatchRequest) DispatchResult {
	result := DispatchResult{Template: req.Template}

	tmpl, ok := templates.Lookup(req.Template)
	if !ok {
		err := fmt.Sprintf("unknown template %q", req.Template)
		if req.Channels.Email {
			result.Email = ChannelOutcome{Attempted: true, Error: err}
		}
		if req.Channels.SMS {
			result.SMS = ChannelOutcome{Attempted: true, Error: err}
		}
		return result
	}
	tctx := templates.NewContext(d.branding, req.Recipient.Name, req.Vars)

	var wg sync.WaitGroup
	if req.Channels.Email {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result.Email = d.sendEmail(ctx, tmpl, tctx, req)
		}()
	}
	if req.Channels.SMS {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result.SMS = d.sendSMS(ctx, tmpl, tctx, req)
		}()
	}
	wg.Wait()
	return result
}

// DispatchBulk sends each request independently; one failure never affects the others
func (d *NotificationDispatcher) DispatchBulk(ctx context.Context, reqs []DispatchRequest) []DispatchResult {
	results := make([]DispatchResult, len(reqs))
	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.Dispatch(ctx, reqs[i])
		}(i)
	}
	wg.Wait()
	return results
}

func (d *NotificationDispatcher) sendEmail(ctx context.Context, tmpl templates.Template, tctx templates.Context, req DispatchRequest) ChannelOutcome {
	if req.Recipient.Email == "" {
		return ChannelOutcome{Error: "recipient has no email address"}
	}
	if tmpl.Email == nil {
		return ChannelOutcome{Error: "template has no email variant"}
	}
	if d.email == nil {
		return d.outcome(ChannelEmail, req, nil, fmt.Errorf("email transport not configured"))
	}

	content, err := tmpl.Email(tctx)
	if err != nil {
		return d.outcome(ChannelEmail, req, nil, fmt.Errorf("failed to render email: %w", err))
	}
	res, err := sendWithDeadline(ctx, d.emailTimeout, d.email, &Message{
		To:       req.Recipient.Email,
		Subject:  content.Subject,
		Body:     content.Text,
		BodyHTML: content.HTML,
		ReplyTo:  d.branding.SupportEmail,
		Template: req.Template,
		Vars:     req.Vars,
	})
	return d.outcome(ChannelEmail, req, res, err)
}

func (d *NotificationDispatcher) sendSMS(ctx context.Context, tmpl templates.Template, tctx templates.Context, req DispatchRequest) ChannelOutcome {
	if req.Recipient.Phone == "" {
		return ChannelOutcome{Error: "recipient has no phone number"}
	}
	if tmpl.SMS == nil {
		return ChannelOutcome{Error: "template has no sms variant"}
	}
	mobile, err := NormalizeIndianMobile(req.Recipient.Phone)
	if err != nil {
		return d.outcome(ChannelSMS, req, nil, err)
	}
	if d.sms == nil {
		return d.outcome(ChannelSMS, req, nil, fmt.Errorf("sms transport not configured"))
	}

	body, err := tmpl.SMS(tctx)
	if err != nil {
		return d.outcome(ChannelSMS, req, nil, fmt.Errorf("failed to render sms: %w", err))
	}
	res, err := sendWithDeadline(ctx, d.smsTimeout, d.sms, &Message{
		To:       mobile,
		Body:     body,
		Template: req.Template,
		Vars:     req.Vars,
	})
	return d.outcome(ChannelSMS, req, res, err)
}

func (d *NotificationDispatcher) outcome(channel Channel, req DispatchRequest, res *SendResult, err error) ChannelOutcome {
	if err == nil && res != nil && !res.Success {
		err = res.Error
		if err == nil {
			err = fmt.Errorf("%s transport reported failure", channel)
		}
	}

	fields := logrus.Fields{
		"channel":  channel,
		"template": req.Template,
	}
	if channel == ChannelEmail {
		fields["recipient"] = MaskEmail(req.Recipient.Email)
	} else {
		fields["recipient"] = MaskPhone(req.Recipient.Phone)
	}

	if err != nil {
		if !apperrors.Is(err, apperrors.KindValidation) {
			err = apperrors.Wrap(err, apperrors.KindExternalService, fmt.Sprintf("%s delivery failed", channel))
		}
		metrics.NotificationsSent.WithLabelValues(string(channel), "failed").Inc()
		d.logger.WithFields(fields).WithError(err).Warn("Notification delivery failed")
		return ChannelOutcome{Attempted: true, Error: err.Error()}
	}

	metrics.NotificationsSent.WithLabelValues(string(channel), "sent").Inc()
	fields["provider"] = res.ProviderName
	d.logger.WithFields(fields).Debug("Notification delivered")
	return ChannelOutcome{Attempted: true, Sent: true, MessageID: res.ProviderID}
}

// sendWithDeadline bounds a transport call even when the transport ignores its context
func sendWithDeadline(ctx context.Context, timeout time.Duration, provider Provider, message *Message) (*SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type sendOutcome struct {
		result *SendResult
		err    error
	}
	done := make(chan sendOutcome, 1)
	go func() {
		result, err := provider.Send(ctx, message)
		done <- sendOutcome{result, err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s exceeded %s deadline: %w", provider.GetName(), timeout, ctx.Err())
	}
}
