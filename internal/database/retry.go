package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/islandtrails/excursion-backend/internal/config"
	"github.com/lib/pq"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

// ErrStorageUnavailable is returned once transient storage failures exhaust their retries
var ErrStorageUnavailable = errors.New("storage unavailable")

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 100 * time.Millisecond
	defaultQueryTimeout   = 5 * time.Second
)

// Retrier applies a per-attempt timeout and bounded exponential backoff to
// storage calls. Only transient failures are retried.
type Retrier struct {
	attempts  uint64
	baseDelay time.Duration
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewRetrier builds a retrier from database configuration, filling defaults
func NewRetrier(cfg config.DatabaseConfig, logger *logrus.Logger) *Retrier {
	r := &Retrier{
		attempts:  uint64(cfg.RetryAttempts),
		baseDelay: cfg.RetryBaseDelay,
		timeout:   cfg.QueryTimeout,
		logger:    logger,
	}
	if cfg.RetryAttempts <= 0 {
		r.attempts = defaultRetryAttempts
	}
	if r.baseDelay <= 0 {
		r.baseDelay = defaultRetryBaseDelay
	}
	if r.timeout <= 0 {
		r.timeout = defaultQueryTimeout
	}
	return r
}

// Do runs fn with retries. op names the operation for logs and errors.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.NewExponential(r.baseDelay)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(r.attempts-1, backoff) // attempts counts the first try

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if IsTransient(ctx, err) {
			if r.logger != nil {
				r.logger.WithError(err).WithFields(logrus.Fields{
					"operation": op,
					"attempt":   attempt,
				}).Warn("Transient storage error, retrying")
			}
			return retry.RetryableError(err)
		}
		return err
	})

	if err != nil && IsTransient(ctx, err) {
		return fmt.Errorf("%w: %s failed after %d attempts: %v", ErrStorageUnavailable, op, attempt, err)
	}
	return err
}

// IsTransient reports whether err is a network-level or concurrency failure
// worth retrying. Cancellation of the caller's own context is never transient.
func IsTransient(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" { // connection_exception
			return true
		}
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"53300", // too_many_connections
			"57P01", // admin_shutdown
			"57P02", // crash_shutdown
			"57P03": // cannot_connect_now
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
