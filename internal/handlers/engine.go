package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/islandtrails/excursion-backend/internal/models"
	"github.com/islandtrails/excursion-backend/internal/services"
)

// BookingEngine is the booking service surface used by the HTTP layer.
// *services.BookingService implements it.
type BookingEngine interface {
	GetDestination(ctx context.Context, destinationID uuid.UUID) (*models.Destination, error)
	CheckAvailability(ctx context.Context, destinationID uuid.UUID, start, end models.Date) (*services.Snapshot, error)
	Quote(ctx context.Context, destinationID uuid.UUID, mode models.BookingMode, partySize int) (*services.Quote, error)
	CreateBooking(ctx context.Context, in services.CreateBookingInput) (*models.Booking, error)
	GetBooking(ctx context.Context, requesterID uuid.UUID, isAdmin bool, bookingID uuid.UUID) (*models.Booking, error)
	ListMyBookings(ctx context.Context, requesterID uuid.UUID) ([]models.Booking, error)
	ListBookings(ctx context.Context, status string, limit int) ([]models.Booking, error)
	ApproveBooking(ctx context.Context, bookingID, adminID uuid.UUID) (*models.Booking, error)
	RejectBooking(ctx context.Context, bookingID, adminID uuid.UUID, reason *string) (*models.Booking, error)
	CancelBooking(ctx context.Context, requesterID, bookingID uuid.UUID) (*models.Booking, error)
	CompleteBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
}

// RetentionRunner triggers and reports the cancelled-booking cleanup.
// *services.CronService implements it.
type RetentionRunner interface {
	RunRetentionNow(ctx context.Context) (int64, error)
	GetJobStatus() map[string]interface{}
}
