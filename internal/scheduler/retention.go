package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/enquiry-service/internal/config"
	"github.com/tesseract-hub/enquiry-service/internal/services"
)

const (
	defaultSchedule = "0 0 3 * * *" // 3 AM daily (with seconds)
	sweepTimeout    = 10 * time.Minute
)

// Sweeper deletes audit records past retention
type Sweeper interface {
	SweepExpired(ctx context.Context, actor *services.Actor) (*services.SweepResult, error)
}

// RetentionScheduler runs the audit retention sweep on a cron schedule
type RetentionScheduler struct {
	sweeper Sweeper
	config  config.AuditConfig
	logger  *logrus.Logger
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	lastRun *services.SweepResult
	lastErr error
}

// NewRetentionScheduler creates a new retention scheduler
func NewRetentionScheduler(sweeper Sweeper, cfg config.AuditConfig, logger *logrus.Logger) *RetentionScheduler {
	return &RetentionScheduler{
		sweeper: sweeper,
		config:  cfg,
		logger:  logger,
	}
}

// normalizeSchedule converts a 5-field cron expression to the 6-field form robfig/cron expects WithSeconds
func normalizeSchedule(schedule string) string {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return defaultSchedule
	}
	if len(strings.Fields(schedule)) == 5 {
		return "0 " + schedule
	}
	return schedule
}

// Start starts the scheduler. It is a no-op when the sweep is disabled.
func (s *RetentionScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if !s.config.SweepEnabled {
		s.logger.Info("Audit retention sweep is disabled")
		return nil
	}

	s.cron = cron.New(cron.WithSeconds())
	schedule := normalizeSchedule(s.config.SweepSchedule)
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		s.logger.WithError(err).WithField("schedule", schedule).Error("Failed to schedule audit retention sweep")
		return err
	}

	s.cron.Start()
	s.running = true
	s.logger.WithField("schedule", schedule).Info("Audit retention scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("Audit retention scheduler stopped")
}

// RunNow runs one sweep synchronously
func (s *RetentionScheduler) RunNow(ctx context.Context) (*services.SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.sweeper.SweepExpired(ctx, nil)

	s.mu.Lock()
	s.lastRun, s.lastErr = result, err
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).Error("Scheduled audit retention sweep failed")
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"deleted":  result.DeletedCount,
		"duration": time.Since(start).String(),
	}).Info("Scheduled audit retention sweep completed")
	return result, nil
}

func (s *RetentionScheduler) run() {
	_, _ = s.RunNow(context.Background())
}

// IsRunning returns whether the scheduler is running
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStats returns scheduler statistics
func (s *RetentionScheduler) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"running":  s.running,
		"enabled":  s.config.SweepEnabled,
		"schedule": normalizeSchedule(s.config.SweepSchedule),
	}
	if s.cron != nil && s.running {
		if entries := s.cron.Entries(); len(entries) > 0 {
			stats["next_run"] = entries[0].Next.Format(time.RFC3339)
		}
	}
	if s.lastRun != nil {
		stats["last_deleted"] = s.lastRun.DeletedCount
		stats["last_cutoff"] = s.lastRun.Cutoff.Format(time.RFC3339)
	}
	if s.lastErr != nil {
		stats["last_error"] = s.lastErr.Error()
	}
	return stats
}
