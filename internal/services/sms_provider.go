package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tesseract-hub/enquiry-service/internal/config"
)

// MSG91Provider implements SMS sending via MSG91. Templates with a flow id
// go through the v5 flow API; everything else uses the plain sendhttp route.
type MSG91Provider struct {
	authKey     string
	senderID    string
	route       string
	country     string
	baseURL     string
	templateIDs map[string]string
	client      *http.Client
}

// msg91Response is the v5 API envelope
type msg91Response struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewMSG91Provider creates a new MSG91 SMS provider
func NewMSG91Provider(cfg config.MSG91Config) *MSG91Provider {
	return &MSG91Provider{
		authKey:     cfg.AuthKey,
		senderID:    cfg.SenderID,
		route:       cfg.Route,
		country:     cfg.Country,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		templateIDs: cfg.TemplateIDs,
		client:      &http.Client{Timeout: 20 * time.Second},
	}
}

// Send sends an SMS. message.To must be a normalized 10-digit mobile number.
func (p *MSG91Provider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	mobile := p.country + message.To
	if templateID := p.templateIDs[message.Template]; templateID != "" {
		return p.sendFlow(ctx, templateID, mobile, message.Vars)
	}
	return p.sendText(ctx, mobile, message.Body)
}

func (p *MSG91Provider) sendFlow(ctx context.Context, templateID, mobile string, vars map[string]string) (*SendResult, error) {
	recipient := map[string]string{"mobiles": mobile}
	for k, v := range vars {
		recipient[k] = v
	}
	payload, err := json.Marshal(map[string]interface{}{
		"template_id": templateID,
		"short_url":   "0",
		"recipients":  []map[string]string{recipient},
	})
	if err != nil {
		return failed("MSG91", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/v5/flow/", bytes.NewReader(payload))
	if err != nil {
		return failed("MSG91", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("authkey", p.authKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return failed("MSG91", err)
	}
	defer resp.Body.Close()

	var body msg91Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return failed("MSG91", fmt.Errorf("invalid MSG91 response (status %d): %w", resp.StatusCode, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || body.Type != "success" {
		return failed("MSG91", fmt.Errorf("MSG91 API error: %d - %s", resp.StatusCode, body.Message))
	}
	return &SendResult{
		ProviderID:   body.Message,
		ProviderName: "MSG91",
		Success:      true,
		ProviderData: map[string]interface{}{"template_id": templateID},
	}, nil
}

func (p *MSG91Provider) sendText(ctx context.Context, mobile, text string) (*SendResult, error) {
	params := url.Values{}
	params.Set("authkey", p.authKey)
	params.Set("mobiles", mobile)
	params.Set("message", text)
	params.Set("sender", p.senderID)
	params.Set("route", p.route)
	params.Set("country", p.country)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/sendhttp.php?"+params.Encode(), nil)
	if err != nil {
		return failed("MSG91", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return failed("MSG91", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return failed("MSG91", err)
	}
	requestID := strings.TrimSpace(string(raw))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || requestID == "" || strings.Contains(strings.ToLower(requestID), "error") {
		return failed("MSG91", fmt.Errorf("MSG91 API error: %d - %s", resp.StatusCode, requestID))
	}
	return &SendResult{
		ProviderID:   requestID,
		ProviderName: "MSG91",
		Success:      true,
	}, nil
}

// GetName returns the provider name
func (p *MSG91Provider) GetName() string {
	return "MSG91"
}

// SupportsChannel returns the supported channel
func (p *MSG91Provider) SupportsChannel() Channel {
	return ChannelSMS
}
