package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRetentionDays is how long cancelled bookings are kept
const DefaultRetentionDays = 7

// CancelledBookingPurger deletes cancelled bookings older than a cutoff
type CancelledBookingPurger interface {
	DeleteCancelledBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SweepResult describes the most recent retention sweep
type SweepResult struct {
	RanAt   time.Time `json:"ran_at"`
	Cutoff  time.Time `json:"cutoff"`
	Deleted int64     `json:"deleted"`
	Error   string    `json:"error,omitempty"`
}

// RetentionService permanently deletes bookings that have been cancelled for
// longer than the retention window. It only touches terminal rows and takes no lock.
type RetentionService struct {
	store  CancelledBookingPurger
	window time.Duration
	logger *logrus.Logger
	now    func() time.Time

	mu   sync.RWMutex
	last *SweepResult
}

// NewRetentionService creates a new RetentionService
func NewRetentionService(store CancelledBookingPurger, windowDays int, logger *logrus.Logger) *RetentionService {
	if windowDays <= 0 {
		windowDays = DefaultRetentionDays
	}
	return &RetentionService{
		store:  store,
		window: time.Duration(windowDays) * 24 * time.Hour,
		logger: logger,
		now:    time.Now,
	}
}

// RunSweep deletes every cancelled booking whose cancelled_at is older than
// the window and returns how many were removed. Safe to call at any time.
func (s *RetentionService) RunSweep(ctx context.Context) (int64, error) {
	ranAt := s.now()
	cutoff := ranAt.Add(-s.window)

	deleted, err := s.store.DeleteCancelledBefore(ctx, cutoff)

	result := &SweepResult{RanAt: ranAt, Cutoff: cutoff, Deleted: deleted}
	if err != nil {
		result.Error = err.Error()
	}
	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).WithField("cutoff", cutoff).Error("Retention sweep failed")
		return 0, storageError(err, nil)
	}

	s.logger.WithFields(logrus.Fields{
		"cutoff":  cutoff,
		"deleted": deleted,
	}).Info("Retention sweep finished")
	return deleted, nil
}

// LastSweep returns the result of the most recent sweep, or nil
func (s *RetentionService) LastSweep() *SweepResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	copied := *s.last
	return &copied
}

// Window returns the retention window
func (s *RetentionService) Window() time.Duration {
	return s.window
}
