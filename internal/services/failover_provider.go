package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FailoverProvider tries providers of one channel in order until one succeeds
type FailoverProvider struct {
	channel    Channel
	providers  []Provider
	maxRetries int
	retryDelay time.Duration
	logger     *logrus.Logger
}

// FailoverConfig configures the failover behavior
type FailoverConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// NewFailoverProvider creates a failover chain. The first provider is primary.
func NewFailoverProvider(channel Channel, providers []Provider, cfg *FailoverConfig, logger *logrus.Logger) *FailoverProvider {
	if cfg == nil {
		cfg = &FailoverConfig{MaxRetries: 0, RetryDelay: time.Second}
	}

	validProviders := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			validProviders = append(validProviders, p)
		}
	}

	return &FailoverProvider{
		channel:    channel,
		providers:  validProviders,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// NewChannelFailover chains providers for one channel. Each provider is tried
// exactly once; redelivery belongs to the caller.
func NewChannelFailover(channel Channel, providers []Provider, logger *logrus.Logger) *FailoverProvider {
	return NewFailoverProvider(channel, providers, &FailoverConfig{MaxRetries: 0}, logger)
}

// Send sends with automatic failover
func (f *FailoverProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	if len(f.providers) == 0 {
		return failed(f.GetName(), fmt.Errorf("no %s providers configured", f.channel))
	}

	startTime := time.Now()
	var lastError error
	var allErrors []string

	for i, provider := range f.providers {
		providerName := provider.GetName()

		for attempt := 0; attempt <= f.maxRetries; attempt++ {
			if ctx.Err() != nil {
				return failed(f.GetName(), ctx.Err())
			}
			if attempt > 0 {
				select {
				case <-time.After(f.retryDelay):
				case <-ctx.Done():
					return failed(f.GetName(), ctx.Err())
				}
			}

			result, err := provider.Send(ctx, message)
			if err == nil && result != nil && result.Success {
				if i > 0 || attempt > 0 {
					f.logger.WithFields(logrus.Fields{
						"channel":  f.channel,
						"provider": providerName,
						"attempts": i + attempt + 1,
						"duration": time.Since(startTime).String(),
					}).Info("Notification sent via fallback provider")
				}
				return result, nil
			}

			if err == nil && result != nil {
				err = result.Error
			}
			if err == nil {
				err = fmt.Errorf("send failed without error")
			}
			lastError = err
			allErrors = append(allErrors, fmt.Sprintf("%s: %v", providerName, err))
			f.logger.WithFields(logrus.Fields{
				"channel":  f.channel,
				"provider": providerName,
				"attempt":  attempt + 1,
			}).WithError(err).Warn("Notification provider failed")
		}
	}

	errorSummary := strings.Join(allErrors, "; ")
	return &SendResult{
		ProviderName: f.GetName(),
		Success:      false,
		Error:        lastError,
		ProviderData: map[string]interface{}{
			"all_errors": allErrors,
			"duration":   time.Since(startTime).String(),
		},
	}, fmt.Errorf("all %s providers failed: %s", f.channel, errorSummary)
}

// GetName returns the provider name
func (f *FailoverProvider) GetName() string {
	if len(f.providers) == 0 {
		return "Failover(none)"
	}
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.GetName()
	}
	return fmt.Sprintf("Failover(%s)", strings.Join(names, "->"))
}

// SupportsChannel returns the supported channel
func (f *FailoverProvider) SupportsChannel() Channel {
	return f.channel
}
