package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/islandtrails/excursion-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const bookingColumns = `
	id, requester_id, destination_id, start_date, end_date, mode, party_size, status,
	price_per_head, exclusive_price, total_price,
	contact_name, contact_phone, contact_email, notes, rejection_reason,
	created_at, updated_at, cancelled_at, rejected_at, completed_at`

// runFunc executes one storage call; the pool-backed repository retries, the tx-bound one does not
type runFunc func(ctx context.Context, op string, fn func(ctx context.Context) error) error

func runOnce(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// BookingRepository handles database operations for the bookings table
type BookingRepository struct {
	db  sqlx.ExtContext
	run runFunc
	pg  *PostgresDB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *PostgresDB) *BookingRepository {
	return &BookingRepository{db: db.DB, run: db.retrier.Do, pg: db}
}

// InApprovalTx runs fn with a repository bound to an approval transaction.
// See PostgresDB.InApprovalTx for the locking and retry guarantees.
func (r *BookingRepository) InApprovalTx(ctx context.Context, fn func(ctx context.Context, tx *BookingRepository) error) error {
	if r.pg == nil {
		return fmt.Errorf("approval transaction requires a pool-backed repository")
	}
	return r.pg.InApprovalTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, &BookingRepository{db: tx, run: runOnce})
	})
}

// CreateBooking inserts a new booking
func (r *BookingRepository) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, requester_id, destination_id, start_date, end_date, mode, party_size, status,
			price_per_head, exclusive_price, total_price,
			contact_name, contact_phone, contact_email, notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		RETURNING created_at, updated_at
	`

	// Generate ID if not provided
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}

	err := r.run(ctx, "create booking", func(ctx context.Context) error {
		return r.db.QueryRowxContext(ctx, query,
			booking.ID, booking.RequesterID, booking.DestinationID, booking.StartDate, booking.EndDate,
			booking.Mode, booking.PartySize, booking.Status,
			booking.PricePerHead, booking.ExclusivePrice, booking.TotalPrice,
			booking.ContactName, booking.ContactPhone, booking.ContactEmail, booking.Notes,
		).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	})
	if err != nil {
		if isUniqueViolation(err, "bookings_pkey") {
			// A retried insert whose earlier attempt committed before the reply was lost
			existing, getErr := r.GetBooking(ctx, booking.ID)
			if getErr == nil && existing.RequesterID == booking.RequesterID {
				booking.CreatedAt, booking.UpdatedAt = existing.CreatedAt, existing.UpdatedAt
				return nil
			}
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == constraint
}

// GetBooking retrieves a booking by ID
func (r *BookingRepository) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var booking models.Booking
	err := r.run(ctx, "get booking", func(ctx context.Context) error {
		return sqlx.GetContext(ctx, r.db, &booking, query, id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// ListActiveBookingsAtDestination returns confirmed/completed bookings at a destination overlapping rng
func (r *BookingRepository) ListActiveBookingsAtDestination(ctx context.Context, destinationID uuid.UUID, rng models.DateRange) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE destination_id = $1
		  AND status IN ('confirmed', 'completed')
		  AND start_date <= $3
		  AND end_date >= $2
		ORDER BY start_date, created_at
	`
	return r.selectBookings(ctx, "list active bookings at destination", query, destinationID, rng.Start, rng.End)
}

// ListActiveBookingsOverlapping returns every confirmed/completed booking overlapping rng,
// across all destinations, except excludeID
func (r *BookingRepository) ListActiveBookingsOverlapping(ctx context.Context, rng models.DateRange, excludeID uuid.UUID) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status IN ('confirmed', 'completed')
		  AND start_date <= $2
		  AND end_date >= $1
		  AND id <> $3
		ORDER BY start_date, created_at
	`
	return r.selectBookings(ctx, "list overlapping active bookings", query, rng.Start, rng.End, excludeID)
}

// ListActiveBookingsForRequester returns a requester's confirmed/completed bookings at a destination overlapping rng
func (r *BookingRepository) ListActiveBookingsForRequester(ctx context.Context, requesterID, destinationID uuid.UUID, rng models.DateRange) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE requester_id = $1
		  AND destination_id = $2
		  AND status IN ('confirmed', 'completed')
		  AND start_date <= $4
		  AND end_date >= $3
		ORDER BY start_date
	`
	return r.selectBookings(ctx, "list requester active bookings", query, requesterID, destinationID, rng.Start, rng.End)
}

// ListBookingsByRequester returns all bookings of a requester, newest first
func (r *BookingRepository) ListBookingsByRequester(ctx context.Context, requesterID uuid.UUID) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`
	return r.selectBookings(ctx, "list requester bookings", query, requesterID)
}

// ListBookingsByStatus returns bookings with the given status (all when empty), oldest first
func (r *BookingRepository) ListBookingsByStatus(ctx context.Context, status models.BookingStatus, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at
		LIMIT $2
	`
	return r.selectBookings(ctx, "list bookings by status", query, string(status), limit)
}

// TransitionStatus moves a booking to status `to` only if its current status is one of `from`.
// Returns ErrNotFound when the booking does not exist and ErrStatusConflict when it exists
// in another status.
func (r *BookingRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.BookingStatus, to models.BookingStatus, at time.Time, reason *string) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $2,
			updated_at = $3,
			cancelled_at = CASE WHEN $2 = 'cancelled' THEN $3 ELSE cancelled_at END,
			rejected_at = CASE WHEN $2 = 'rejected' THEN $3 ELSE rejected_at END,
			completed_at = CASE WHEN $2 = 'completed' THEN $3 ELSE completed_at END,
			rejection_reason = COALESCE($4, rejection_reason)
		WHERE id = $1
		  AND status = ANY($5)
		RETURNING ` + bookingColumns

	fromStrings := make([]string, len(from))
	for i, s := range from {
		fromStrings[i] = string(s)
	}

	var booking models.Booking
	err := r.run(ctx, "transition booking status", func(ctx context.Context) error {
		return r.db.QueryRowxContext(ctx, query, id, string(to), at, reason, pq.Array(fromStrings)).StructScan(&booking)
	})
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	// Nothing matched: distinguish a missing row from a status race
	if _, getErr := r.GetBooking(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrStatusConflict
}

// DeleteCancelledBefore permanently deletes cancelled bookings whose cancelled_at is before cutoff
func (r *BookingRepository) DeleteCancelledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM bookings
		WHERE status = 'cancelled'
		  AND cancelled_at IS NOT NULL
		  AND cancelled_at < $1
	`

	var deleted int64
	err := r.run(ctx, "delete cancelled bookings", func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, cutoff)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete cancelled bookings: %w", err)
	}
	return deleted, nil
}

func (r *BookingRepository) selectBookings(ctx context.Context, op, query string, args ...interface{}) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.run(ctx, op, func(ctx context.Context) error {
		bookings = bookings[:0]
		return sqlx.SelectContext(ctx, r.db, &bookings, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}
