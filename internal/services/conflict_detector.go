package services

import (
	"fmt"

	"github.com/islandtrails/excursion-backend/internal/models"
)

// ResourcePolicy scopes the single-resource rule: one transport/guide slot
// can serve one committed trip window at a time
type ResourcePolicy string

const (
	// PolicyCrossDestination ignores bookings at the approving booking's own
	// destination; those are arbitrated by the joiner capacity check, so joiner
	// pooling stays reachable
	PolicyCrossDestination ResourcePolicy = "cross_destination"

	// PolicyGlobal allows one active booking per date system-wide, whatever the
	// destination or mode
	PolicyGlobal ResourcePolicy = "global"
)

// ParseResourcePolicy parses the BOOKING_RESOURCE_POLICY value
func ParseResourcePolicy(s string) (ResourcePolicy, error) {
	switch ResourcePolicy(s) {
	case PolicyCrossDestination, PolicyGlobal:
		return ResourcePolicy(s), nil
	case "":
		return PolicyCrossDestination, nil
	}
	return "", fmt.Errorf("unknown resource policy %q", s)
}

// Conflict describes the active booking that blocks an approval
type Conflict struct {
	BookingID     string
	DestinationID string
	Range         models.DateRange
}

// ConflictDetector enforces the single-resource rule at approval time
type ConflictDetector struct {
	Policy ResourcePolicy
}

// NewConflictDetector creates a detector for policy
func NewConflictDetector(policy ResourcePolicy) *ConflictDetector {
	if policy == "" {
		policy = PolicyCrossDestination
	}
	return &ConflictDetector{Policy: policy}
}

// Detect returns the first active booking in others that blocks target, or nil.
// target itself is always skipped.
func (d *ConflictDetector) Detect(target *models.Booking, others []models.Booking) *Conflict {
	for i := range others {
		other := &others[i]
		if other.ID == target.ID || !other.IsActive() {
			continue
		}
		if d.Policy == PolicyCrossDestination && other.DestinationID == target.DestinationID {
			continue
		}
		if other.Range().Overlaps(target.Range()) {
			return &Conflict{
				BookingID:     other.ID.String(),
				DestinationID: other.DestinationID.String(),
				Range:         other.Range(),
			}
		}
	}
	return nil
}

// Check is Detect as an error
func (d *ConflictDetector) Check(target *models.Booking, others []models.Booking) error {
	conflict := d.Detect(target, others)
	if conflict == nil {
		return nil
	}
	first := conflict.Range.Start
	if first.Before(target.StartDate) {
		first = target.StartDate
	}
	return conflictOn(first, CodeResourceCommitted,
		"single resource already committed for these dates (%s)", conflict.Range)
}
