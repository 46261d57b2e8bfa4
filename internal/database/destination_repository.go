package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/islandtrails/excursion-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// DestinationRepository reads destinations. Destinations are maintained by the
// administration backend, so there are no write methods here.
type DestinationRepository struct {
	db  sqlx.QueryerContext
	run runFunc
}

// NewDestinationRepository creates a new DestinationRepository
func NewDestinationRepository(db *PostgresDB) *DestinationRepository {
	return &DestinationRepository{db: db.DB, run: db.retrier.Do}
}

// GetDestination retrieves a destination by ID
func (r *DestinationRepository) GetDestination(ctx context.Context, id uuid.UUID) (*models.Destination, error) {
	query := `
		SELECT id, name, description, joiner_capacity, base_price, trip_days,
			   joiner_enabled, exclusive_enabled, is_active, created_at, updated_at
		FROM destinations
		WHERE id = $1
	`

	var destination models.Destination
	err := r.run(ctx, "get destination", func(ctx context.Context) error {
		return sqlx.GetContext(ctx, r.db, &destination, query, id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get destination: %w", err)
	}
	return &destination, nil
}
