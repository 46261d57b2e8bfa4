package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingMode is how a party occupies a destination
type BookingMode string

const (
	BookingModeJoiner    BookingMode = "joiner"    // shares the destination's daily capacity
	BookingModeExclusive BookingMode = "exclusive" // takes the whole destination for the range
)

// IsValid reports whether m is a known mode
func (m BookingMode) IsValid() bool {
	return m == BookingModeJoiner || m == BookingModeExclusive
}

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// ActiveBookingStatuses are the only statuses that consume capacity
var ActiveBookingStatuses = []BookingStatus{BookingStatusConfirmed, BookingStatusCompleted}

// IsValid reports whether s is a known status
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusRejected,
		BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// IsActive reports whether a booking in this status occupies its destination
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusConfirmed || s == BookingStatusCompleted
}

// IsTerminal reports whether no further transition is allowed
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusRejected || s == BookingStatusCancelled || s == BookingStatusCompleted
}

// Party size bounds
const (
	MinPartySize = 1
	MaxPartySize = 20
)

// Booking is a request to occupy a destination's daily slot for a date range
type Booking struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	RequesterID   uuid.UUID     `json:"requester_id" db:"requester_id"`
	DestinationID uuid.UUID     `json:"destination_id" db:"destination_id"`
	StartDate     Date          `json:"start_date" db:"start_date"`
	EndDate       Date          `json:"end_date" db:"end_date"`
	Mode          BookingMode   `json:"mode" db:"mode"`
	PartySize     int           `json:"party_size" db:"party_size"`
	Status        BookingStatus `json:"status" db:"status"`

	// Quoted once at creation and never re-derived
	PricePerHead   float64 `json:"price_per_head" db:"price_per_head"`
	ExclusivePrice float64 `json:"exclusive_price" db:"exclusive_price"`
	TotalPrice     float64 `json:"total_price" db:"total_price"`

	ContactName  *string `json:"contact_name,omitempty" db:"contact_name"`
	ContactPhone *string `json:"contact_phone,omitempty" db:"contact_phone"`
	ContactEmail *string `json:"contact_email,omitempty" db:"contact_email"`
	Notes        *string `json:"notes,omitempty" db:"notes"`

	RejectionReason *string `json:"rejection_reason,omitempty" db:"rejection_reason"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Range returns the booking's inclusive date range
func (b *Booking) Range() DateRange {
	return DateRange{Start: b.StartDate, End: b.EndDate}
}

// IsActive reports whether the booking counts toward occupancy
func (b *Booking) IsActive() bool {
	return b.Status.IsActive()
}

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

// CreateBookingRequest is the body of POST /bookings
type CreateBookingRequest struct {
	DestinationID uuid.UUID   `json:"destination_id" binding:"required"`
	StartDate     Date        `json:"start_date"`
	EndDate       Date        `json:"end_date"`
	PartySize     int         `json:"party_size" binding:"required"`
	Mode          BookingMode `json:"mode" binding:"required"`
	ContactName   *string     `json:"contact_name,omitempty"`
	ContactPhone  *string     `json:"contact_phone,omitempty"`
	ContactEmail  *string     `json:"contact_email,omitempty"`
	Notes         *string     `json:"notes,omitempty"`
}

// Validate checks the request shape; capacity is checked by the booking service
func (r *CreateBookingRequest) Validate() error {
	if r.DestinationID == uuid.Nil {
		return errors.New("destination_id is required")
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return errors.New("start_date and end_date are required")
	}
	if r.PartySize < MinPartySize || r.PartySize > MaxPartySize {
		return errors.New("party_size must be between 1 and 20")
	}
	if !r.Mode.IsValid() {
		return errors.New("mode must be 'joiner' or 'exclusive'")
	}
	if r.ContactEmail != nil && *r.ContactEmail != "" && !strings.Contains(*r.ContactEmail, "@") {
		return errors.New("contact_email is not a valid email address")
	}
	return nil
}

// RejectBookingRequest is the optional body of POST /admin/bookings/:id/reject
type RejectBookingRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// BookingListResponse wraps a list of bookings
type BookingListResponse struct {
	Bookings []Booking `json:"bookings"`
	Count    int       `json:"count"`
}
