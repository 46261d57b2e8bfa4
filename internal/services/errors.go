package services

import (
	"errors"
	"fmt"

	"github.com/islandtrails/excursion-backend/internal/database"
	"github.com/islandtrails/excursion-backend/internal/models"
)

// ErrorKind classifies booking engine failures so callers can tell
// "try again" apart from "this will never work"
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"    // bad input shape
	KindConflict     ErrorKind = "conflict"      // capacity, exclusivity or single-resource rule
	KindNotFound     ErrorKind = "not_found"     // unknown booking or destination
	KindForbidden    ErrorKind = "forbidden"     // actor may not perform the operation
	KindInvalidState ErrorKind = "invalid_state" // transition not allowed from current status
	KindUnavailable  ErrorKind = "unavailable"   // storage retries exhausted
)

// Error codes returned to API clients
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeStartInPast        = "START_DATE_IN_PAST"
	CodeRangeTooLong       = "RANGE_TOO_LONG"
	CodeModeDisabled       = "MODE_DISABLED"
	CodeDestinationClosed  = "DESTINATION_INACTIVE"
	CodeDuplicateBooking   = "DUPLICATE_BOOKING"
	CodeExclusiveClaimed   = "DATE_EXCLUSIVELY_CLAIMED"
	CodeJoinersPresent     = "JOINERS_PRESENT"
	CodeCapacityExceeded   = "CAPACITY_EXCEEDED"
	CodeResourceCommitted  = "SINGLE_RESOURCE_COMMITTED"
	CodeBookingNotFound    = "BOOKING_NOT_FOUND"
	CodeDestinationUnknown = "DESTINATION_NOT_FOUND"
	CodeInvalidTransition  = "INVALID_STATUS_TRANSITION"
	CodeTripNotFinished    = "TRIP_NOT_FINISHED"
	CodeStorageUnavailable = "SERVICE_UNAVAILABLE"
)

// BookingError is the typed error returned by the booking engine
type BookingError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Date    *models.Date // offending date for capacity rejections
}

func (e *BookingError) Error() string {
	if e.Date != nil {
		return fmt.Sprintf("%s (%s)", e.Message, e.Date)
	}
	return e.Message
}

func newBookingError(kind ErrorKind, code, format string, args ...interface{}) *BookingError {
	return &BookingError{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func conflictOn(day models.Date, code, format string, args ...interface{}) *BookingError {
	d := day
	return &BookingError{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...), Date: &d}
}

// KindOf returns the kind of a BookingError anywhere in err's chain, or "" for other errors
func KindOf(err error) ErrorKind {
	var bookingErr *BookingError
	if errors.As(err, &bookingErr) {
		return bookingErr.Kind
	}
	return ""
}

// storageError converts storage sentinels into booking errors; other errors pass through
func storageError(err error, notFound *BookingError) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, database.ErrStorageUnavailable):
		return &BookingError{
			Kind:    KindUnavailable,
			Code:    CodeStorageUnavailable,
			Message: "booking storage is temporarily unavailable, please try again",
		}
	}
	return err
}

func bookingNotFound() *BookingError {
	return newBookingError(KindNotFound, CodeBookingNotFound, "booking not found")
}

func destinationNotFound() *BookingError {
	return newBookingError(KindNotFound, CodeDestinationUnknown, "destination not found")
}
