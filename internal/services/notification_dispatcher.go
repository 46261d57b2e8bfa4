package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/islandtrails/excursion-backend/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// NoticeKind identifies a booking lifecycle notification
type NoticeKind string

const (
	NoticeBookingConfirmed NoticeKind = "booking_confirmed"
	NoticeBookingRejected  NoticeKind = "booking_rejected"
	NoticeBookingCancelled NoticeKind = "booking_cancelled"
)

// Notice is the payload handed to notification providers after a status change commits
type Notice struct {
	Kind          NoticeKind           `json:"kind"`
	BookingID     uuid.UUID            `json:"booking_id"`
	RequesterID   uuid.UUID            `json:"requester_id"`
	DestinationID uuid.UUID            `json:"destination_id"`
	StartDate     models.Date          `json:"start_date"`
	EndDate       models.Date          `json:"end_date"`
	Mode          models.BookingMode   `json:"mode"`
	PartySize     int                  `json:"party_size"`
	Status        models.BookingStatus `json:"status"`
	TotalPrice    float64              `json:"total_price"`
	Reason        *string              `json:"reason,omitempty"`
	ContactName   *string              `json:"contact_name,omitempty"`
	ContactPhone  *string              `json:"contact_phone,omitempty"`
	ContactEmail  *string              `json:"contact_email,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// NewNotice builds a notice from the committed booking
func NewNotice(kind NoticeKind, b *models.Booking, at time.Time) Notice {
	return Notice{
		Kind:          kind,
		BookingID:     b.ID,
		RequesterID:   b.RequesterID,
		DestinationID: b.DestinationID,
		StartDate:     b.StartDate,
		EndDate:       b.EndDate,
		Mode:          b.Mode,
		PartySize:     b.PartySize,
		Status:        b.Status,
		TotalPrice:    b.TotalPrice,
		Reason:        b.RejectionReason,
		ContactName:   b.ContactName,
		ContactPhone:  b.ContactPhone,
		ContactEmail:  b.ContactEmail,
		OccurredAt:    at,
	}
}

// Text renders the traveller-facing message
func (n Notice) Text() string {
	dates := models.DateRange{Start: n.StartDate, End: n.EndDate}.String()
	ref := strings.ToUpper(n.BookingID.String()[:8])

	switch n.Kind {
	case NoticeBookingConfirmed:
		return fmt.Sprintf("Your excursion booking %s for %s (%d guest(s)) is confirmed. Total: LKR %.2f", ref, dates, n.PartySize, n.TotalPrice)
	case NoticeBookingRejected:
		msg := fmt.Sprintf("Sorry, your excursion booking %s for %s could not be accepted.", ref, dates)
		if n.Reason != nil && *n.Reason != "" {
			msg += " Reason: " + *n.Reason
		}
		return msg
	case NoticeBookingCancelled:
		return fmt.Sprintf("Your excursion booking %s for %s has been cancelled.", ref, dates)
	}
	return fmt.Sprintf("Booking %s for %s is now %s.", ref, dates, n.Status)
}

// Notifier accepts notices for asynchronous delivery
type Notifier interface {
	Dispatch(n Notice) bool
}

// NotificationProvider delivers a notice over one channel
type NotificationProvider interface {
	Name() string
	Send(ctx context.Context, n Notice) error
}

// DispatcherConfig tunes the worker pool
type DispatcherConfig struct {
	Workers       int
	QueueSize     int
	Timeout       time.Duration // per notice, across all providers
	RatePerSecond float64       // <= 0 disables throttling
}

// NotificationDispatcher delivers notices on a bounded queue drained by a
// fixed worker pool. Delivery runs on its own background context so it never
// depends on the request that triggered it; failures are logged only.
type NotificationDispatcher struct {
	providers []NotificationProvider
	queue     chan Notice
	workers   int
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *logrus.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewNotificationDispatcher creates a dispatcher; call Start before Dispatch
func NewNotificationDispatcher(cfg DispatcherConfig, logger *logrus.Logger, providers ...NotificationProvider) *NotificationDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &NotificationDispatcher{
		providers: providers,
		queue:     make(chan Notice, cfg.QueueSize),
		workers:   cfg.Workers,
		timeout:   cfg.Timeout,
		limiter:   rate.NewLimiter(limit, cfg.Workers),
		logger:    logger,
	}
}

// Start launches the workers. They exit when the queue is closed by Stop or ctx is done.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.Name())
	}
	d.logger.WithFields(logrus.Fields{
		"workers":   d.workers,
		"providers": names,
	}).Info("Starting notification dispatcher")

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx, i+1)
	}
}

// Stop closes the queue, lets the workers drain it and waits for them
func (d *NotificationDispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Notification dispatcher stopped")
}

// Dispatch enqueues n without blocking. It returns false when the notice was dropped.
func (d *NotificationDispatcher) Dispatch(n Notice) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.WithField("booking_id", n.BookingID).Warn("Notification dispatcher stopped, dropping notice")
		return false
	}

	select {
	case d.queue <- n:
		return true
	default:
		d.logger.WithFields(logrus.Fields{
			"booking_id": n.BookingID,
			"kind":       n.Kind,
		}).Warn("Notification queue full, dropping notice")
		return false
	}
}

func (d *NotificationDispatcher) work(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			d.logger.WithField("worker_id", id).Debug("Notification worker stopped by context")
			return
		case n, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(n)
		}
	}
}

func (d *NotificationDispatcher) deliver(n Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	log := d.logger.WithFields(logrus.Fields{
		"booking_id": n.BookingID,
		"kind":       n.Kind,
	})

	if err := d.limiter.Wait(ctx); err != nil {
		log.WithError(err).Warn("Notification throttled past its deadline, dropping")
		return
	}

	for _, p := range d.providers {
		if err := p.Send(ctx, n); err != nil {
			log.WithError(err).WithField("provider", p.Name()).Error("Failed to deliver notification")
			continue
		}
		log.WithField("provider", p.Name()).Debug("Notification delivered")
	}
}
