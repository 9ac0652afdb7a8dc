package model

import "time"

// TicketCategory is a per-passenger-type price line for a tour
// (adult, child, ...).  Prices are stored in cents; the net amount a
// tourist actually pays is derived from the list price and the referral
// discount at quote/booking time.
//
// Fields:
//
//	ID         – primary key identifier.
//	TourID     – owning tour.
//	Name       – display name of the passenger type.
//	PriceCents – list price in cents for one passenger.
//	CreatedAt  – creation timestamp.
type TicketCategory struct {
	ID         uint64    // ticket_categories.id
	TourID     uint64    // ticket_categories.tour_id
	Name       string    // ticket_categories.name
	PriceCents int64     // ticket_categories.price_cents
	CreatedAt  time.Time // ticket_categories.created_at
}
