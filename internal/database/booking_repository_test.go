package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/islandtrails/excursion-backend/internal/config"
	"github.com/islandtrails/excursion-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingColumnNames = []string{
	"id", "requester_id", "destination_id", "start_date", "end_date", "mode", "party_size", "status",
	"price_per_head", "exclusive_price", "total_price",
	"contact_name", "contact_phone", "contact_email", "notes", "rejection_reason",
	"created_at", "updated_at", "cancelled_at", "rejected_at", "completed_at",
}

func setupBookingRepositoryTest(t *testing.T) (*BookingRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	retrier := NewRetrier(config.DatabaseConfig{
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
		QueryTimeout:   time.Second,
	}, nil)
	pg := NewPostgresDB(sqlx.NewDb(db, "sqlmock"), retrier)

	return NewBookingRepository(pg), mock, func() { db.Close() }
}

func bookingRow(rows *sqlmock.Rows, b models.Booking) *sqlmock.Rows {
	return rows.AddRow(
		b.ID.String(), b.RequesterID.String(), b.DestinationID.String(),
		b.StartDate.String(), b.EndDate.String(), string(b.Mode), b.PartySize, string(b.Status),
		b.PricePerHead, b.ExclusivePrice, b.TotalPrice,
		nil, nil, nil, nil, nil,
		b.CreatedAt, b.UpdatedAt, nil, nil, nil,
	)
}

func sampleBooking(status models.BookingStatus) models.Booking {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return models.Booking{
		ID:            uuid.New(),
		RequesterID:   uuid.New(),
		DestinationID: uuid.New(),
		StartDate:     models.MustParseDate("2025-03-10"),
		EndDate:       models.MustParseDate("2025-03-12"),
		Mode:          models.BookingModeJoiner,
		PartySize:     4,
		Status:        status,
		PricePerHead:  2000,
		TotalPrice:    8000,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestBookingRepository_CreateBooking(t *testing.T) {
	repo, mock, cleanup := setupBookingRepositoryTest(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		b := sampleBooking(models.BookingStatusPending)
		b.ID = uuid.Nil
		now := time.Now()

		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		err := repo.CreateBooking(ctx, &b)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, b.ID)
		assert.Equal(t, now, b.CreatedAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		b := sampleBooking(models.BookingStatusPending)

		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnError(fmt.Errorf("insert or update on table violates foreign key constraint"))

		err := repo.CreateBooking(ctx, &b)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create booking")
		assert.False(t, errors.Is(err, ErrStorageUnavailable))

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_CreateBooking_RetryAfterLostReply(t *testing.T) {
	ctx := context.Background()

	t.Run("Reads Back Own Row", func(t *testing.T) {
		repo, mock, cleanup := setupBookingRepositoryTest(t)
		defer cleanup()
		b := sampleBooking(models.BookingStatusPending)
		created := b.CreatedAt

		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnError(&pq.Error{Code: "08006"})
		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "bookings_pkey"})
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(b.ID).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), b))

		insert := b
		insert.CreatedAt = time.Time{}
		err := repo.CreateBooking(ctx, &insert)
		require.NoError(t, err)
		assert.Equal(t, created, insert.CreatedAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Foreign Row Is Still An Error", func(t *testing.T) {
		repo, mock, cleanup := setupBookingRepositoryTest(t)
		defer cleanup()
		b := sampleBooking(models.BookingStatusPending)
		other := b
		other.RequesterID = uuid.New()

		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "bookings_pkey"})
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(b.ID).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), other))

		err := repo.CreateBooking(ctx, &b)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create booking")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_GetBooking(t *testing.T) {
	repo, mock, cleanup := setupBookingRepositoryTest(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		b := sampleBooking(models.BookingStatusConfirmed)

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(b.ID).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), b))

		got, err := repo.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
		assert.Equal(t, b.DestinationID, got.DestinationID)
		assert.Equal(t, "2025-03-10", got.StartDate.String())
		assert.Equal(t, "2025-03-12", got.EndDate.String())
		assert.Equal(t, models.BookingModeJoiner, got.Mode)
		assert.Equal(t, models.BookingStatusConfirmed, got.Status)
		assert.Equal(t, 4, got.PartySize)
		assert.Nil(t, got.CancelledAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		id := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames))

		got, err := repo.GetBooking(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, got)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_ListActiveBookingsAtDestination(t *testing.T) {
	repo, mock, cleanup := setupBookingRepositoryTest(t)
	defer cleanup()

	b1 := sampleBooking(models.BookingStatusConfirmed)
	b2 := sampleBooking(models.BookingStatusCompleted)
	b2.DestinationID = b1.DestinationID
	rng := models.DateRange{Start: models.MustParseDate("2025-03-11"), End: models.MustParseDate("2025-03-20")}

	rows := sqlmock.NewRows(bookingColumnNames)
	bookingRow(rows, b1)
	bookingRow(rows, b2)

	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE destination_id = (.+) AND status IN \('confirmed', 'completed'\)`).
		WithArgs(b1.DestinationID, rng.Start, rng.End).
		WillReturnRows(rows)

	got, err := repo.ListActiveBookingsAtDestination(context.Background(), b1.DestinationID, rng)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b1.ID, got[0].ID)
	assert.Equal(t, models.BookingStatusCompleted, got[1].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ListActiveBookingsOverlapping(t *testing.T) {
	repo, mock, cleanup := setupBookingRepositoryTest(t)
	defer cleanup()

	exclude := uuid.New()
	rng := models.DateRange{Start: models.MustParseDate("2025-03-10"), End: models.MustParseDate("2025-03-10")}

	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE status IN (.+) AND id <>`).
		WithArgs(rng.Start, rng.End, exclude).
		WillReturnRows(sqlmock.NewRows(bookingColumnNames))

	got, err := repo.ListActiveBookingsOverlapping(context.Background(), rng, exclude)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_TransitionStatus(t *testing.T) {
	repo, mock, cleanup := setupBookingRepositoryTest(t)
	defer cleanup()
	ctx := context.Background()
	at := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		b := sampleBooking(models.BookingStatusConfirmed)

		mock.ExpectQuery(`UPDATE bookings SET status`).
			WithArgs(b.ID, "confirmed", at, nil, sqlmock.AnyArg()).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), b))

		got, err := repo.TransitionStatus(ctx, b.ID, []models.BookingStatus{models.BookingStatusPending}, models.BookingStatusConfirmed, at, nil)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusConfirmed, got.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Status Changed Concurrently", func(t *testing.T) {
		b := sampleBooking(models.BookingStatusConfirmed)

		mock.ExpectQuery(`UPDATE bookings SET status`).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames))
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(b.ID).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), b))

		got, err := repo.TransitionStatus(ctx, b.ID, []models.BookingStatus{models.BookingStatusPending}, models.BookingStatusConfirmed, at, nil)
		assert.ErrorIs(t, err, ErrStatusConflict)
		assert.Nil(t, got)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		id := uuid.New()

		mock.ExpectQuery(`UPDATE bookings SET status`).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames))
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames))

		got, err := repo.TransitionStatus(ctx, id, []models.BookingStatus{models.BookingStatusPending}, models.BookingStatusCancelled, at, nil)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, got)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_DeleteCancelledBefore(t *testing.T) {
	repo, mock, cleanup := setupBookingRepositoryTest(t)
	defer cleanup()

	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM bookings WHERE status = 'cancelled'`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.DeleteCancelledBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Retry(t *testing.T) {
	ctx := context.Background()

	t.Run("Transient Error Is Retried", func(t *testing.T) {
		repo, mock, cleanup := setupBookingRepositoryTest(t)
		defer cleanup()
		b := sampleBooking(models.BookingStatusPending)

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WillReturnError(&pq.Error{Code: "57P01"})
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), b))

		got, err := repo.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Exhausted Retries Surface As Unavailable", func(t *testing.T) {
		repo, mock, cleanup := setupBookingRepositoryTest(t)
		defer cleanup()

		for i := 0; i < 3; i++ {
			mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
				WillReturnError(&pq.Error{Code: "08006"})
		}

		got, err := repo.GetBooking(ctx, uuid.New())
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ErrStorageUnavailable)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Logical Error Is Not Retried", func(t *testing.T) {
		repo, mock, cleanup := setupBookingRepositoryTest(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WillReturnError(&pq.Error{Code: "42P01"}) // undefined_table

		_, err := repo.GetBooking(ctx, uuid.New())
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrStorageUnavailable))

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_InApprovalTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Locks Before Reading Then Commits", func(t *testing.T) {
		repo, mock, cleanup := setupBookingRepositoryTest(t)
		defer cleanup()
		b := sampleBooking(models.BookingStatusPending)

		mock.ExpectBegin()
		mock.ExpectExec(`SET TRANSACTION ISOLATION LEVEL READ COMMITTED`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WithArgs(approvalLockKey).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(b.ID).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), b))
		mock.ExpectCommit()

		err := repo.InApprovalTx(ctx, func(ctx context.Context, tx *BookingRepository) error {
			got, err := tx.GetBooking(ctx, b.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, b.ID, got.ID)
			return nil
		})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Lock Failure Skips Reads", func(t *testing.T) {
		repo, mock, cleanup := setupBookingRepositoryTest(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`SET TRANSACTION ISOLATION LEVEL READ COMMITTED`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WillReturnError(&pq.Error{Code: "55P03"})
		mock.ExpectRollback()

		calls := 0
		err := repo.InApprovalTx(ctx, func(ctx context.Context, tx *BookingRepository) error {
			calls++
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to acquire approval lock")
		assert.Equal(t, 0, calls)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rolls Back On Domain Error Without Retry", func(t *testing.T) {
		repo, mock, cleanup := setupBookingRepositoryTest(t)
		defer cleanup()
		domainErr := errors.New("capacity exceeded")

		mock.ExpectBegin()
		mock.ExpectExec(`SET TRANSACTION ISOLATION LEVEL READ COMMITTED`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		calls := 0
		err := repo.InApprovalTx(ctx, func(ctx context.Context, tx *BookingRepository) error {
			calls++
			return domainErr
		})
		assert.ErrorIs(t, err, domainErr)
		assert.Equal(t, 1, calls)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Deadlock Retries Whole Transaction", func(t *testing.T) {
		repo, mock, cleanup := setupBookingRepositoryTest(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`SET TRANSACTION ISOLATION LEVEL READ COMMITTED`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40P01"})

		mock.ExpectBegin()
		mock.ExpectExec(`SET TRANSACTION ISOLATION LEVEL READ COMMITTED`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		calls := 0
		err := repo.InApprovalTx(ctx, func(ctx context.Context, tx *BookingRepository) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsTransient(t *testing.T) {
	ctx := context.Background()

	assert.True(t, IsTransient(ctx, &pq.Error{Code: "40001"}))
	assert.True(t, IsTransient(ctx, &pq.Error{Code: "40P01"}))
	assert.True(t, IsTransient(ctx, &pq.Error{Code: "08003"}))
	assert.True(t, IsTransient(ctx, fmt.Errorf("wrapped: %w", &pq.Error{Code: "57P03"})))
	assert.True(t, IsTransient(ctx, context.DeadlineExceeded))

	assert.False(t, IsTransient(ctx, nil))
	assert.False(t, IsTransient(ctx, sql.ErrNoRows))
	assert.False(t, IsTransient(ctx, &pq.Error{Code: "23505"}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, IsTransient(cancelled, &pq.Error{Code: "40001"}))
}
