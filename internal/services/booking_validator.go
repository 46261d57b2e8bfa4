package services

import "github.com/islandtrails/excursion-backend/internal/models"

// ValidateBooking checks a request against a snapshot day by day and reports
// the first day that fails. Exclusive requests need a completely clean range;
// joiner requests need enough remaining seats on every day.
func ValidateBooking(snapshot *Snapshot, mode models.BookingMode, partySize int) error {
	for _, day := range snapshot.Days {
		if day.Exclusive {
			return conflictOn(day.Date, CodeExclusiveClaimed,
				"destination is exclusively booked on %s", day.Date)
		}

		switch mode {
		case models.BookingModeExclusive:
			if day.Occupied > 0 {
				return conflictOn(day.Date, CodeJoinersPresent,
					"exclusive booking requires an empty destination, %d seat(s) already taken on %s", day.Occupied, day.Date)
			}
		default:
			if day.Remaining < partySize {
				return conflictOn(day.Date, CodeCapacityExceeded,
					"only %d seat(s) left on %s, party of %d requested", day.Remaining, day.Date, partySize)
			}
		}
	}
	return nil
}
