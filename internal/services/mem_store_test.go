package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/islandtrails/excursion-backend/internal/database"
	"github.com/islandtrails/excursion-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// memStore is an in-memory BookingStore, DestinationStore and ApprovalLocker
type memStore struct {
	mu           sync.Mutex
	approvalMu   sync.Mutex
	bookings     map[uuid.UUID]models.Booking
	destinations map[uuid.UUID]models.Destination
	failWith     error
}

func newMemStore() *memStore {
	return &memStore{
		bookings:     make(map[uuid.UUID]models.Booking),
		destinations: make(map[uuid.UUID]models.Destination),
	}
}

func (s *memStore) addDestination(d models.Destination) models.Destination {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	s.destinations[d.ID] = d
	return d
}

func (s *memStore) put(b models.Booking) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.RequesterID == uuid.Nil {
		b.RequesterID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	s.bookings[b.ID] = b
	return b
}

func (s *memStore) get(id uuid.UUID) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *memStore) WithApprovalLock(ctx context.Context, fn func(ctx context.Context, store BookingStore) error) error {
	s.approvalMu.Lock()
	defer s.approvalMu.Unlock()
	return fn(ctx, s)
}

func (s *memStore) GetDestination(ctx context.Context, id uuid.UUID) (*models.Destination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	d, ok := s.destinations[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &d, nil
}

func (s *memStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	s.bookings[booking.ID] = *booking
	return nil
}

func (s *memStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	b, ok := s.bookings[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &b, nil
}

func (s *memStore) filter(keep func(b models.Booking) bool) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := []models.Booking{}
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ListActiveBookingsAtDestination(ctx context.Context, destinationID uuid.UUID, rng models.DateRange) ([]models.Booking, error) {
	return s.filter(func(b models.Booking) bool {
		return b.IsActive() && b.DestinationID == destinationID && b.Range().Overlaps(rng)
	})
}

func (s *memStore) ListActiveBookingsOverlapping(ctx context.Context, rng models.DateRange, excludeID uuid.UUID) ([]models.Booking, error) {
	return s.filter(func(b models.Booking) bool {
		return b.IsActive() && b.ID != excludeID && b.Range().Overlaps(rng)
	})
}

func (s *memStore) ListActiveBookingsForRequester(ctx context.Context, requesterID, destinationID uuid.UUID, rng models.DateRange) ([]models.Booking, error) {
	return s.filter(func(b models.Booking) bool {
		return b.IsActive() && b.RequesterID == requesterID && b.DestinationID == destinationID && b.Range().Overlaps(rng)
	})
}

func (s *memStore) ListBookingsByRequester(ctx context.Context, requesterID uuid.UUID) ([]models.Booking, error) {
	return s.filter(func(b models.Booking) bool { return b.RequesterID == requesterID })
}

func (s *memStore) ListBookingsByStatus(ctx context.Context, status models.BookingStatus, limit int) ([]models.Booking, error) {
	out, err := s.filter(func(b models.Booking) bool { return status == "" || b.Status == status })
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.BookingStatus, to models.BookingStatus, at time.Time, reason *string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	b, ok := s.bookings[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	allowed := false
	for _, st := range from {
		if b.Status == st {
			allowed = true
		}
	}
	if !allowed {
		return nil, database.ErrStatusConflict
	}

	b.Status = to
	b.UpdatedAt = at
	switch to {
	case models.BookingStatusCancelled:
		b.CancelledAt = &at
	case models.BookingStatusRejected:
		b.RejectedAt = &at
	case models.BookingStatusCompleted:
		b.CompletedAt = &at
	}
	if reason != nil {
		b.RejectionReason = reason
	}
	s.bookings[id] = b
	return &b, nil
}

func (s *memStore) DeleteCancelledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	var deleted int64
	for id, b := range s.bookings {
		if b.Status == models.BookingStatusCancelled && b.CancelledAt != nil && b.CancelledAt.Before(cutoff) {
			delete(s.bookings, id)
			deleted++
		}
	}
	return deleted, nil
}

// recordingNotifier collects dispatched notices
type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *recordingNotifier) Dispatch(notice Notice) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return true
}

func (n *recordingNotifier) kinds() []NoticeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]NoticeKind, 0, len(n.notices))
	for _, notice := range n.notices {
		kinds = append(kinds, notice.Kind)
	}
	return kinds
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
