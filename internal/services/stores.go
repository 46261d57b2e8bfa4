package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/islandtrails/excursion-backend/internal/database"
	"github.com/islandtrails/excursion-backend/internal/models"
)

// BookingStore is the booking persistence the engine needs: filtered reads and
// conditional status writes. *database.BookingRepository implements it.
type BookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListActiveBookingsAtDestination(ctx context.Context, destinationID uuid.UUID, rng models.DateRange) ([]models.Booking, error)
	ListActiveBookingsOverlapping(ctx context.Context, rng models.DateRange, excludeID uuid.UUID) ([]models.Booking, error)
	ListActiveBookingsForRequester(ctx context.Context, requesterID, destinationID uuid.UUID, rng models.DateRange) ([]models.Booking, error)
	ListBookingsByRequester(ctx context.Context, requesterID uuid.UUID) ([]models.Booking, error)
	ListBookingsByStatus(ctx context.Context, status models.BookingStatus, limit int) ([]models.Booking, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []models.BookingStatus, to models.BookingStatus, at time.Time, reason *string) (*models.Booking, error)
	DeleteCancelledBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DestinationStore looks up destinations
type DestinationStore interface {
	GetDestination(ctx context.Context, id uuid.UUID) (*models.Destination, error)
}

// ApprovalLocker runs fn with exclusive access to approvals. Only one fn runs
// at a time system-wide, and the store passed to fn sees a consistent view
// until fn returns.
type ApprovalLocker interface {
	WithApprovalLock(ctx context.Context, fn func(ctx context.Context, store BookingStore) error) error
}

type postgresApprovalLocker struct {
	repo *database.BookingRepository
}

// NewPostgresApprovalLocker backs approvals with a READ COMMITTED transaction
// that takes a Postgres advisory lock before its first read
func NewPostgresApprovalLocker(repo *database.BookingRepository) ApprovalLocker {
	return &postgresApprovalLocker{repo: repo}
}

func (l *postgresApprovalLocker) WithApprovalLock(ctx context.Context, fn func(ctx context.Context, store BookingStore) error) error {
	return l.repo.InApprovalTx(ctx, func(ctx context.Context, tx *database.BookingRepository) error {
		return fn(ctx, tx)
	})
}
