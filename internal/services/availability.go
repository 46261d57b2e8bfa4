package services

import "github.com/islandtrails/excursion-backend/internal/models"

// DayOccupancy is the joiner usage of one calendar day
type DayOccupancy struct {
	Date      models.Date `json:"date"`
	Occupied  int         `json:"occupied"`
	Remaining int         `json:"remaining"`
	Exclusive bool        `json:"exclusive"`
}

// Snapshot is the per-day occupancy of a destination over a range.
// It is recomputed from the active bookings on every request and never stored.
type Snapshot struct {
	DestinationID string           `json:"destination_id,omitempty"`
	Capacity      int              `json:"capacity"`
	Range         models.DateRange `json:"range"`
	Days          []DayOccupancy   `json:"days"`
}

// Day returns the entry for d, or nil when d is outside the range
func (s *Snapshot) Day(d models.Date) *DayOccupancy {
	if !s.Range.Contains(d) {
		return nil
	}
	return &s.Days[d.DaysSince(s.Range.Start)]
}

// CalculateAvailability folds the active bookings of one destination into a
// per-day snapshot of rng. Each booking is applied over its own days, clipped
// to rng. Non-active bookings are ignored.
func CalculateAvailability(capacity int, active []models.Booking, rng models.DateRange) *Snapshot {
	snapshot := &Snapshot{
		Capacity: capacity,
		Range:    rng,
		Days:     make([]DayOccupancy, 0, rng.Days()),
	}
	rng.Each(func(day models.Date) {
		snapshot.Days = append(snapshot.Days, DayOccupancy{Date: day, Remaining: capacity})
	})

	for i := range active {
		b := &active[i]
		if !b.IsActive() || !b.Range().Overlaps(rng) {
			continue
		}
		b.Range().Each(func(day models.Date) {
			entry := snapshot.Day(day)
			if entry == nil {
				return
			}
			switch b.Mode {
			case models.BookingModeExclusive:
				entry.Exclusive = true
				entry.Remaining = 0
			default:
				entry.Occupied += b.PartySize
				if !entry.Exclusive {
					entry.Remaining = max(0, capacity-entry.Occupied)
				}
			}
		})
	}

	return snapshot
}
