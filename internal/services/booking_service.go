package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/islandtrails/excursion-backend/internal/database"
	"github.com/islandtrails/excursion-backend/internal/models"
	"github.com/islandtrails/excursion-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

const maxRejectionReasonLength = 500

// MaxSnapshotDays caps availability queries whatever MaxRangeDays allows
const MaxSnapshotDays = 366

// BookingServiceConfig holds booking engine settings
type BookingServiceConfig struct {
	Policy       ResourcePolicy
	Location     *time.Location // decides what "today" is
	MaxRangeDays int            // 0 means no limit on booking length
}

// CreateBookingInput is a traveller's booking request
type CreateBookingInput struct {
	RequesterID   uuid.UUID
	DestinationID uuid.UUID
	StartDate     models.Date
	EndDate       models.Date
	PartySize     int
	Mode          models.BookingMode
	ContactName   *string
	ContactPhone  *string
	ContactEmail  *string
	Notes         *string
}

// BookingService runs the booking lifecycle: availability, creation and the
// pending -> confirmed/rejected/cancelled/completed state machine.
// Occupancy is always recomputed from the active bookings; nothing is cached.
type BookingService struct {
	bookings     BookingStore
	destinations DestinationStore
	approvals    ApprovalLocker
	notifier     Notifier
	detector     *ConflictDetector
	pricing      PricingEngine
	contacts     *validator.ContactValidator
	config       BookingServiceConfig
	logger       *logrus.Logger
	now          func() time.Time
}

// NewBookingService creates a new BookingService. notifier may be nil.
func NewBookingService(
	bookings BookingStore,
	destinations DestinationStore,
	approvals ApprovalLocker,
	notifier Notifier,
	config BookingServiceConfig,
	logger *logrus.Logger,
) *BookingService {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &BookingService{
		bookings:     bookings,
		destinations: destinations,
		approvals:    approvals,
		notifier:     notifier,
		detector:     NewConflictDetector(config.Policy),
		contacts:     validator.NewContactValidator(),
		config:       config,
		logger:       logger,
		now:          time.Now,
	}
}

// Policy returns the active single-resource policy
func (s *BookingService) Policy() ResourcePolicy {
	return s.detector.Policy
}

func (s *BookingService) today() models.Date {
	return models.Today(s.now(), s.config.Location)
}

// ============================================================================
// READ-ONLY OPERATIONS
// ============================================================================

// GetDestination returns a destination by id
func (s *BookingService) GetDestination(ctx context.Context, destinationID uuid.UUID) (*models.Destination, error) {
	dest, err := s.destinations.GetDestination(ctx, destinationID)
	if err != nil {
		return nil, storageError(err, destinationNotFound())
	}
	return dest, nil
}

// CheckAvailability returns the per-day occupancy of a destination over [start, end]
func (s *BookingService) CheckAvailability(ctx context.Context, destinationID uuid.UUID, start, end models.Date) (*Snapshot, error) {
	rng, err := s.parseRange(start, end)
	if err != nil {
		return nil, err
	}
	if rng.Days() > MaxSnapshotDays {
		return nil, newBookingError(KindValidation, CodeRangeTooLong,
			"availability range spans %d days, at most %d allowed", rng.Days(), MaxSnapshotDays)
	}

	dest, err := s.destinations.GetDestination(ctx, destinationID)
	if err != nil {
		return nil, storageError(err, destinationNotFound())
	}

	active, err := s.bookings.ListActiveBookingsAtDestination(ctx, dest.ID, rng)
	if err != nil {
		return nil, storageError(err, nil)
	}

	snapshot := CalculateAvailability(dest.Capacity(), active, rng)
	snapshot.DestinationID = dest.ID.String()
	return snapshot, nil
}

// Quote prices a prospective booking without creating it
func (s *BookingService) Quote(ctx context.Context, destinationID uuid.UUID, mode models.BookingMode, partySize int) (*Quote, error) {
	if err := validateModeAndParty(mode, partySize); err != nil {
		return nil, err
	}

	dest, err := s.destinations.GetDestination(ctx, destinationID)
	if err != nil {
		return nil, storageError(err, destinationNotFound())
	}
	if !dest.ModeEnabled(mode) {
		return nil, newBookingError(KindValidation, CodeModeDisabled, "%s bookings are not offered at this destination", mode)
	}

	quote := s.pricing.Quote(dest, mode, partySize)
	return &quote, nil
}

// GetBooking returns a booking visible to the caller. Travellers only see
// their own bookings; anything else is reported as not found.
func (s *BookingService) GetBooking(ctx context.Context, requesterID uuid.UUID, isAdmin bool, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storageError(err, bookingNotFound())
	}
	if !isAdmin && booking.RequesterID != requesterID {
		return nil, bookingNotFound()
	}
	return booking, nil
}

// ListMyBookings returns the caller's bookings, newest first
func (s *BookingService) ListMyBookings(ctx context.Context, requesterID uuid.UUID) ([]models.Booking, error) {
	bookings, err := s.bookings.ListBookingsByRequester(ctx, requesterID)
	if err != nil {
		return nil, storageError(err, nil)
	}
	return bookings, nil
}

// ListBookings returns bookings filtered by status (all when empty) for administrators
func (s *BookingService) ListBookings(ctx context.Context, status string, limit int) ([]models.Booking, error) {
	st := models.BookingStatus(status)
	if status != "" && !st.IsValid() {
		return nil, newBookingError(KindValidation, CodeInvalidRequest, "unknown booking status %q", status)
	}
	bookings, err := s.bookings.ListBookingsByStatus(ctx, st, limit)
	if err != nil {
		return nil, storageError(err, nil)
	}
	return bookings, nil
}

// ============================================================================
// CREATE
// ============================================================================

// CreateBooking validates a request against current occupancy and stores it
// as pending. It never produces any other status; capacity is enforced again
// at approval.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if in.RequesterID == uuid.Nil {
		return nil, newBookingError(KindValidation, CodeInvalidRequest, "requester is required")
	}
	if err := validateModeAndParty(in.Mode, in.PartySize); err != nil {
		return nil, err
	}
	rng, err := s.parseRange(in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	if rng.Start.Before(s.today()) {
		return nil, newBookingError(KindValidation, CodeStartInPast, "start date %s is in the past", rng.Start)
	}

	phone, email, err := s.normalizeContact(in.ContactPhone, in.ContactEmail)
	if err != nil {
		return nil, err
	}

	dest, err := s.destinations.GetDestination(ctx, in.DestinationID)
	if err != nil {
		return nil, storageError(err, destinationNotFound())
	}
	if !dest.IsActive {
		return nil, newBookingError(KindValidation, CodeDestinationClosed, "destination is not accepting bookings")
	}
	if !dest.ModeEnabled(in.Mode) {
		return nil, newBookingError(KindValidation, CodeModeDisabled, "%s bookings are not offered at this destination", in.Mode)
	}

	// A requester may not hold two overlapping active bookings at one destination
	own, err := s.bookings.ListActiveBookingsForRequester(ctx, in.RequesterID, dest.ID, rng)
	if err != nil {
		return nil, storageError(err, nil)
	}
	if len(own) > 0 {
		first := own[0].StartDate
		if first.Before(rng.Start) {
			first = rng.Start
		}
		return nil, conflictOn(first, CodeDuplicateBooking,
			"you already have an active booking at this destination for %s", own[0].Range())
	}

	active, err := s.bookings.ListActiveBookingsAtDestination(ctx, dest.ID, rng)
	if err != nil {
		return nil, storageError(err, nil)
	}
	if err := ValidateBooking(CalculateAvailability(dest.Capacity(), active, rng), in.Mode, in.PartySize); err != nil {
		return nil, err
	}

	quote := s.pricing.Quote(dest, in.Mode, in.PartySize)
	booking := &models.Booking{
		ID:             uuid.New(),
		RequesterID:    in.RequesterID,
		DestinationID:  dest.ID,
		StartDate:      rng.Start,
		EndDate:        rng.End,
		Mode:           in.Mode,
		PartySize:      in.PartySize,
		Status:         models.BookingStatusPending,
		PricePerHead:   quote.PricePerHead,
		ExclusivePrice: quote.ExclusivePrice,
		TotalPrice:     quote.TotalPrice,
		ContactName:    trimmedOrNil(in.ContactName),
		ContactPhone:   phone,
		ContactEmail:   email,
		Notes:          trimmedOrNil(in.Notes),
	}

	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		return nil, storageError(err, nil)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"destination_id": booking.DestinationID,
		"range":          rng.String(),
		"mode":           booking.Mode,
		"party_size":     booking.PartySize,
	}).Info("Booking created")

	return booking, nil
}

// ============================================================================
// STATE TRANSITIONS
// ============================================================================

// ApproveBooking confirms a pending booking. The single-resource rule and the
// destination capacity are checked against the active bookings inside the
// approval lock, so two overlapping approvals can never both succeed.
// On any failure the booking stays pending.
func (s *BookingService) ApproveBooking(ctx context.Context, bookingID, adminID uuid.UUID) (*models.Booking, error) {
	var approved *models.Booking

	err := s.approvals.WithApprovalLock(ctx, func(ctx context.Context, store BookingStore) error {
		booking, err := store.GetBooking(ctx, bookingID)
		if err != nil {
			return storageError(err, bookingNotFound())
		}
		if booking.Status != models.BookingStatusPending {
			return invalidTransition(booking.Status, models.BookingStatusConfirmed)
		}

		others, err := store.ListActiveBookingsOverlapping(ctx, booking.Range(), booking.ID)
		if err != nil {
			return err
		}
		if err := s.detector.Check(booking, others); err != nil {
			return err
		}

		dest, err := s.destinations.GetDestination(ctx, booking.DestinationID)
		if err != nil {
			return storageError(err, destinationNotFound())
		}
		active, err := store.ListActiveBookingsAtDestination(ctx, booking.DestinationID, booking.Range())
		if err != nil {
			return err
		}
		if err := ValidateBooking(CalculateAvailability(dest.Capacity(), active, booking.Range()), booking.Mode, booking.PartySize); err != nil {
			return err
		}

		approved, err = store.TransitionStatus(ctx, booking.ID,
			[]models.BookingStatus{models.BookingStatusPending}, models.BookingStatusConfirmed, s.now(), nil)
		return err
	})
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", bookingID).Info("Booking approval refused")
		return nil, transitionError(err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": approved.ID,
		"admin_id":   adminID,
		"policy":     s.detector.Policy,
	}).Info("Booking approved")

	s.notify(NoticeBookingConfirmed, approved)
	return approved, nil
}

// RejectBooking moves a pending booking to rejected with an optional reason
func (s *BookingService) RejectBooking(ctx context.Context, bookingID, adminID uuid.UUID, reason *string) (*models.Booking, error) {
	reason = trimmedOrNil(reason)
	if reason != nil && len(*reason) > maxRejectionReasonLength {
		return nil, newBookingError(KindValidation, CodeInvalidRequest, "reason must be at most %d characters", maxRejectionReasonLength)
	}

	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storageError(err, bookingNotFound())
	}
	if booking.Status != models.BookingStatusPending {
		return nil, invalidTransition(booking.Status, models.BookingStatusRejected)
	}

	rejected, err := s.bookings.TransitionStatus(ctx, booking.ID,
		[]models.BookingStatus{models.BookingStatusPending}, models.BookingStatusRejected, s.now(), reason)
	if err != nil {
		return nil, transitionError(err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": rejected.ID,
		"admin_id":   adminID,
	}).Info("Booking rejected")

	s.notify(NoticeBookingRejected, rejected)
	return rejected, nil
}

// CancelBooking cancels the requester's own pending or confirmed booking.
// Someone else's booking is reported as not found and left untouched.
func (s *BookingService) CancelBooking(ctx context.Context, requesterID, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storageError(err, bookingNotFound())
	}
	if booking.RequesterID != requesterID {
		return nil, bookingNotFound()
	}
	if booking.Status != models.BookingStatusPending && booking.Status != models.BookingStatusConfirmed {
		return nil, invalidTransition(booking.Status, models.BookingStatusCancelled)
	}

	cancelled, err := s.bookings.TransitionStatus(ctx, booking.ID,
		[]models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed},
		models.BookingStatusCancelled, s.now(), nil)
	if err != nil {
		return nil, transitionError(err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":      cancelled.ID,
		"previous_status": booking.Status,
	}).Info("Booking cancelled")

	s.notify(NoticeBookingCancelled, cancelled)
	return cancelled, nil
}

// CompleteBooking marks a confirmed booking completed once its last day has passed.
// A completed booking still counts toward occupancy.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storageError(err, bookingNotFound())
	}
	if booking.Status != models.BookingStatusConfirmed {
		return nil, invalidTransition(booking.Status, models.BookingStatusCompleted)
	}
	if !booking.EndDate.Before(s.today()) {
		return nil, newBookingError(KindInvalidState, CodeTripNotFinished,
			"trip ends on %s and cannot be completed yet", booking.EndDate)
	}

	completed, err := s.bookings.TransitionStatus(ctx, booking.ID,
		[]models.BookingStatus{models.BookingStatusConfirmed}, models.BookingStatusCompleted, s.now(), nil)
	if err != nil {
		return nil, transitionError(err)
	}

	s.logger.WithField("booking_id", completed.ID).Info("Booking completed")
	return completed, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *BookingService) notify(kind NoticeKind, booking *models.Booking) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(NewNotice(kind, booking, s.now()))
}

func (s *BookingService) parseRange(start, end models.Date) (models.DateRange, error) {
	rng, err := models.NewDateRange(start, end)
	if err != nil {
		return models.DateRange{}, newBookingError(KindValidation, CodeInvalidRequest, "%s", err.Error())
	}
	if s.config.MaxRangeDays > 0 && rng.Days() > s.config.MaxRangeDays {
		return models.DateRange{}, newBookingError(KindValidation, CodeRangeTooLong,
			"date range spans %d days, at most %d allowed", rng.Days(), s.config.MaxRangeDays)
	}
	return rng, nil
}

func (s *BookingService) normalizeContact(phone, email *string) (*string, *string, error) {
	var outPhone, outEmail *string

	if p := trimmedOrNil(phone); p != nil {
		normalized, err := s.contacts.ValidatePhone(*p)
		if err != nil {
			return nil, nil, newBookingError(KindValidation, CodeInvalidRequest, "contact_phone: %s", err.Error())
		}
		outPhone = &normalized
	}
	if e := trimmedOrNil(email); e != nil {
		normalized, err := s.contacts.ValidateEmail(*e)
		if err != nil {
			return nil, nil, newBookingError(KindValidation, CodeInvalidRequest, "contact_email: %s", err.Error())
		}
		outEmail = &normalized
	}
	return outPhone, outEmail, nil
}

func validateModeAndParty(mode models.BookingMode, partySize int) error {
	if !mode.IsValid() {
		return newBookingError(KindValidation, CodeInvalidRequest, "mode must be 'joiner' or 'exclusive'")
	}
	if partySize < models.MinPartySize || partySize > models.MaxPartySize {
		return newBookingError(KindValidation, CodeInvalidRequest,
			"party size must be between %d and %d", models.MinPartySize, models.MaxPartySize)
	}
	return nil
}

func invalidTransition(from, to models.BookingStatus) *BookingError {
	return newBookingError(KindInvalidState, CodeInvalidTransition, "cannot move a %s booking to %s", from, to)
}

// transitionError maps a lost conditional update to an invalid-state error
func transitionError(err error) error {
	if errors.Is(err, database.ErrStatusConflict) {
		return newBookingError(KindInvalidState, CodeInvalidTransition, "booking status changed concurrently, reload and retry")
	}
	return storageError(err, bookingNotFound())
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
