package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// retentionJobTimeout bounds one scheduled sweep
const retentionJobTimeout = 5 * time.Minute

// CronService manages scheduled background jobs
type CronService struct {
	cron         *cron.Cron
	retention    *RetentionService
	schedule     string
	initialDelay time.Duration
	logger       *logrus.Logger

	mu           sync.Mutex
	initialTimer *time.Timer
	running      bool
}

// NewCronService creates a new CronService. schedule is a robfig/cron spec
// such as "@every 24h"; the first sweep runs initialDelay after Start.
func NewCronService(retention *RetentionService, schedule string, initialDelay time.Duration, logger *logrus.Logger) *CronService {
	cronLogger := cron.PrintfLogger(logger)
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))

	return &CronService{
		cron:         c,
		retention:    retention,
		schedule:     schedule,
		initialDelay: initialDelay,
		logger:       logger,
	}
}

// Start schedules the retention sweep and starts the scheduler
func (s *CronService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.retentionJob); err != nil {
		return fmt.Errorf("failed to schedule retention job: %w", err)
	}
	s.cron.Start()

	if s.initialDelay >= 0 {
		s.initialTimer = time.AfterFunc(s.initialDelay, s.retentionJob)
	}
	s.running = true

	s.logger.WithFields(logrus.Fields{
		"schedule":      s.schedule,
		"initial_delay": s.initialDelay.String(),
	}).Info("Cron service started")
	return nil
}

// Stop stops all cron jobs and waits for a running job to finish
func (s *CronService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	if s.initialTimer != nil {
		s.initialTimer.Stop()
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// retentionJob never panics out of the scheduler; errors are logged and the
// next tick tries again
func (s *CronService) retentionJob() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Retention job panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), retentionJobTimeout)
	defer cancel()

	start := time.Now()
	deleted, err := s.retention.RunSweep(ctx)
	if err != nil {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"deleted":  deleted,
		"duration": time.Since(start).String(),
	}).Debug("Scheduled retention sweep done")
}

// RunRetentionNow runs the sweep immediately on the caller's context
func (s *CronService) RunRetentionNow(ctx context.Context) (int64, error) {
	return s.retention.RunSweep(ctx)
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	entries := s.cron.Entries()
	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":        running,
		"schedule":       s.schedule,
		"window_days":    int(s.retention.Window() / (24 * time.Hour)),
		"job_count":      len(entries),
		"jobs":           jobs,
		"last_retention": s.retention.LastSweep(),
	}
}
