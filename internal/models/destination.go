package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultJoinerCapacity is the joiner pool size when a destination does not set one
const DefaultJoinerCapacity = 14

// Destination is a site offering excursions. It is maintained by the
// administration backend; the booking engine only reads it.
type Destination struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Description      *string   `json:"description,omitempty" db:"description"`
	JoinerCapacity   int       `json:"joiner_capacity" db:"joiner_capacity"`
	BasePrice        float64   `json:"base_price" db:"base_price"` // per head, one day
	TripDays         int       `json:"trip_days" db:"trip_days"`
	JoinerEnabled    bool      `json:"joiner_enabled" db:"joiner_enabled"`
	ExclusiveEnabled bool      `json:"exclusive_enabled" db:"exclusive_enabled"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Capacity returns the joiner capacity, falling back to the default
func (d *Destination) Capacity() int {
	if d.JoinerCapacity <= 0 {
		return DefaultJoinerCapacity
	}
	return d.JoinerCapacity
}

// ModeEnabled reports whether the destination accepts bookings in mode m
func (d *Destination) ModeEnabled(m BookingMode) bool {
	switch m {
	case BookingModeJoiner:
		return d.JoinerEnabled
	case BookingModeExclusive:
		return d.ExclusiveEnabled
	}
	return false
}
