package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerProvider guards a provider with a circuit breaker so a dead transport fails fast
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps next in a circuit breaker
func NewBreakerProvider(next Provider, logger *logrus.Logger) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("notify-%s", next.GetName()),
		MaxRequests: 3,                // Allow 3 requests in half-open state
		Interval:    30 * time.Second, // Clear counts after 30 seconds
		Timeout:     60 * time.Second, // Stay open for 60 seconds before half-open
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if 5 consecutive failures or 50% failure rate with at least 10 requests
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from":            from.String(),
				"to":              to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}
	return &BreakerProvider{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Send forwards to the wrapped provider unless the breaker is open
func (b *BreakerProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		result, err := b.next.Send(ctx, message)
		if err == nil && result != nil && !result.Success {
			err = result.Error
			if err == nil {
				err = fmt.Errorf("%s reported failure", b.next.GetName())
			}
		}
		return result, err
	})
	if err != nil {
		if result, ok := out.(*SendResult); ok && result != nil {
			return result, err
		}
		return failed(b.next.GetName(), err)
	}
	return out.(*SendResult), nil
}

// GetName returns the wrapped provider name
func (b *BreakerProvider) GetName() string {
	return b.next.GetName()
}

// SupportsChannel returns the wrapped provider channel
func (b *BreakerProvider) SupportsChannel() Channel {
	return b.next.SupportsChannel()
}

// State exposes the breaker state for health reporting
func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}
