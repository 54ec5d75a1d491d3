package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/tesseract-hub/enquiry-service/internal/config"
)

// SMTPProvider implements email sending via SMTP
type SMTPProvider struct {
	host     string
	port     string
	secure   bool
	username string
	password string
	from     string
	fromName string
	timeout  time.Duration
}

// NewSMTPProvider creates a new SMTP email provider
func NewSMTPProvider(cfg config.SMTPConfig) *SMTPProvider {
	return &SMTPProvider{
		host:     cfg.Host,
		port:     fmt.Sprintf("%d", cfg.Port),
		secure:   cfg.Secure,
		username: cfg.User,
		password: cfg.Pass,
		from:     cfg.FromEmail,
		fromName: cfg.FromName,
		timeout:  10 * time.Second,
	}
}

// buildMessage renders RFC 5322 headers and a multipart body; it returns the Message-ID
func (p *SMTPProvider) buildMessage(message *Message) (string, []byte) {
	fromName := p.fromName
	if message.FromName != "" {
		fromName = message.FromName
	}
	from := p.from
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, p.from)
	}

	domain := p.host
	if at := strings.LastIndex(p.from, "@"); at >= 0 {
		domain = p.from[at+1:]
	}
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
	boundary := "enq-" + strings.ReplaceAll(uuid.NewString(), "-", "")

	headers := map[string]string{
		"From":         from,
		"To":           message.To,
		"Subject":      message.Subject,
		"MIME-Version": "1.0",
		"Message-ID":   messageID,
		"Date":         time.Now().Format(time.RFC1123Z),
		"Content-Type": fmt.Sprintf("multipart/alternative; boundary=%q", boundary),
	}
	if message.ReplyTo != "" {
		headers["Reply-To"] = message.ReplyTo
	}
	for key, value := range message.Headers {
		headers[key] = value
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, headers[k])
	}
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, message.Body)
	if message.BodyHTML != "" {
		fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, message.BodyHTML)
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return messageID, []byte(b.String())
}

// Send sends an email via SMTP. SMTP_SECURE selects implicit TLS, otherwise STARTTLS is used when offered.
func (p *SMTPProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	messageID, body := p.buildMessage(message)
	addr := net.JoinHostPort(p.host, p.port)

	dialer := &net.Dialer{Timeout: p.timeout}
	var conn net.Conn
	var err error
	if p.secure {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: p.host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return failed("SMTP", fmt.Errorf("failed to connect to %s: %w", addr, err))
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, p.host)
	if err != nil {
		return failed("SMTP", err)
	}
	defer client.Quit()

	if !p.secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: p.host}); err != nil {
				return failed("SMTP", fmt.Errorf("starttls failed: %w", err))
			}
		}
	}
	if p.username != "" {
		if err := client.Auth(smtp.PlainAuth("", p.username, p.password, p.host)); err != nil {
			return failed("SMTP", fmt.Errorf("authentication failed: %w", err))
		}
	}
	if err := client.Mail(p.from); err != nil {
		return failed("SMTP", err)
	}
	if err := client.Rcpt(message.To); err != nil {
		return failed("SMTP", err)
	}
	w, err := client.Data()
	if err != nil {
		return failed("SMTP", err)
	}
	if _, err := w.Write(body); err != nil {
		return failed("SMTP", err)
	}
	if err := w.Close(); err != nil {
		return failed("SMTP", err)
	}

	return &SendResult{
		ProviderID:   messageID,
		ProviderName: "SMTP",
		Success:      true,
	}, nil
}

// GetName returns the provider name
func (p *SMTPProvider) GetName() string {
	return "SMTP"
}

// SupportsChannel returns the supported channel
func (p *SMTPProvider) SupportsChannel() Channel {
	return ChannelEmail
}

// SendGridProvider implements email sending via SendGrid
type SendGridProvider struct {
	from     string
	fromName string
	client   *sendgrid.Client
}

// NewSendGridProvider creates a new SendGrid email provider
func NewSendGridProvider(cfg config.SendGridConfig) *SendGridProvider {
	return &SendGridProvider{
		from:     cfg.FromEmail,
		fromName: cfg.FromName,
		client:   sendgrid.NewSendClient(cfg.APIKey),
	}
}

// Send sends an email via SendGrid
func (p *SendGridProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	fromName := p.fromName
	if message.FromName != "" {
		fromName = message.FromName
	}
	from := mail.NewEmail(fromName, p.from)
	to := mail.NewEmail("", message.To)
	m := mail.NewSingleEmail(from, message.Subject, to, message.Body, message.BodyHTML)

	if message.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail("", message.ReplyTo))
	}
	if len(message.Headers) > 0 {
		m.Headers = message.Headers
	}

	// Transactional mail: no link rewriting or open pixels
	trackingSettings := mail.NewTrackingSettings()
	clickTracking := mail.NewClickTrackingSetting()
	clickTracking.SetEnable(false)
	clickTracking.SetEnableText(false)
	trackingSettings.SetClickTracking(clickTracking)
	openTracking := mail.NewOpenTrackingSetting()
	openTracking.SetEnable(false)
	trackingSettings.SetOpenTracking(openTracking)
	m.SetTrackingSettings(trackingSettings)

	response, err := p.client.SendWithContext(ctx, m)
	if err != nil {
		return failed("SendGrid", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		var messageID string
		if ids, ok := response.Headers["X-Message-Id"]; ok && len(ids) > 0 {
			messageID = ids[0]
		}
		return &SendResult{
			ProviderID:   messageID,
			ProviderName: "SendGrid",
			Success:      true,
			ProviderData: map[string]interface{}{
				"status_code": response.StatusCode,
			},
		}, nil
	}

	return failed("SendGrid", fmt.Errorf("SendGrid API error: %d - %s", response.StatusCode, response.Body))
}

// GetName returns the provider name
func (p *SendGridProvider) GetName() string {
	return "SendGrid"
}

// SupportsChannel returns the supported channel
func (p *SendGridProvider) SupportsChannel() Channel {
	return ChannelEmail
}
