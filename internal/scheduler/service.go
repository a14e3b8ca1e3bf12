package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/vkpulse/vkpulse/internal/analysis"
	"github.com/vkpulse/vkpulse/internal/config"
)

// Service triggers analysis runs on the configured cadence.
type Service struct {
	config   *config.Config
	analysis *analysis.Service
	cron     *cron.Cron
}

// NewService creates a scheduler driving the given analysis service.
func NewService(cfg *config.Config, analysisService *analysis.Service) *Service {
	return &Service{
		config:   cfg,
		analysis: analysisService,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start registers the scheduled run and starts the cron loop. When no
// default groups are configured there is nothing to run, so Start logs a
// warning and returns without starting anything.
func (s *Service) Start() error {
	if len(s.config.Groups) == 0 {
		logrus.Warn("Scheduler disabled: no VK groups configured")
		return nil
	}

	var cronExpression string

	switch s.config.ReportSchedule {
	case "daily":
		// Run daily at 9 AM
		cronExpression = "0 0 9 * * *"
	case "weekly":
		// Run weekly on Monday at 9 AM
		cronExpression = "0 0 9 * * MON"
	default:
		cronExpression = "0 0 9 * * MON"
	}

	_, err := s.cron.AddFunc(cronExpression, s.runOnce)
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s schedule over a %d-day window",
		s.config.ReportSchedule, s.config.WindowDays)
	return nil
}

func (s *Service) runOnce() {
	logrus.Info("Starting scheduled analysis run")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if _, err := s.analysis.RunTrailingWindow(ctx); err != nil {
		logrus.Errorf("Scheduled analysis run failed: %v", err)
	}
}

// Stop stops the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
