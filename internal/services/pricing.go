package services

import "github.com/islandtrails/excursion-backend/internal/models"

// Quote is the frozen price of a booking request
type Quote struct {
	Mode           models.BookingMode `json:"mode"`
	PartySize      int                `json:"party_size"`
	TripDays       int                `json:"trip_days"`
	PricePerHead   float64            `json:"price_per_head"`
	ExclusivePrice float64            `json:"exclusive_price"`
	TotalPrice     float64            `json:"total_price"`
}

// extraDayRate is the share of the base price charged for each day after the first
const extraDayRate = 0.5

// PricingEngine derives booking prices. It is pure; prices are computed once
// at creation and stored on the booking.
type PricingEngine struct{}

// JoinerPricePerHead returns the per-head price for a trip of tripDays days
func (PricingEngine) JoinerPricePerHead(basePrice float64, tripDays int) float64 {
	if basePrice <= 0 {
		return 0
	}
	if tripDays <= 1 {
		return basePrice
	}
	return basePrice * (1 + extraDayRate*float64(tripDays-1))
}

// ExclusivePrice is the price of taking the whole joiner pool
func (PricingEngine) ExclusivePrice(perHead float64, capacity int) float64 {
	if perHead <= 0 || capacity <= 0 {
		return 0
	}
	return perHead * float64(capacity)
}

// TotalPrice is what the party pays for the booking
func (PricingEngine) TotalPrice(mode models.BookingMode, perHead, exclusivePrice float64, partySize int) float64 {
	if mode == models.BookingModeExclusive {
		return exclusivePrice
	}
	return perHead * float64(partySize)
}

// Quote composes the three prices for a destination
func (p PricingEngine) Quote(dest *models.Destination, mode models.BookingMode, partySize int) Quote {
	perHead := p.JoinerPricePerHead(dest.BasePrice, dest.TripDays)
	exclusive := p.ExclusivePrice(perHead, dest.Capacity())
	return Quote{
		Mode:           mode,
		PartySize:      partySize,
		TripDays:       dest.TripDays,
		PricePerHead:   perHead,
		ExclusivePrice: exclusive,
		TotalPrice:     p.TotalPrice(mode, perHead, exclusive, partySize),
	}
}
