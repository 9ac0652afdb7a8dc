// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingCreatedEvent is published when a tourist's booking has been
// committed. It carries enough information for downstream consumers to
// notify the agency or log the booking without querying the primary
// database.
type BookingCreatedEvent struct {
	PurchaseID  uint64 `json:"purchase_id"`
	UserID      uint64 `json:"user_id"`
	DepartureID uint64 `json:"departure_id"`
	TourID      uint64 `json:"tour_id"`
	TourTitle   string `json:"tour_title"`
	StartsAt    string `json:"starts_at"`
	Qty         uint32 `json:"qty"`
	AmountCents int64  `json:"amount_cents"`
	LandlordID  uint64 `json:"landlord_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// BookingStatusEvent is published when agency staff confirm or reject a
// booking, so the tourist can be notified of the decision.
type BookingStatusEvent struct {
	PurchaseID  uint64 `json:"purchase_id"`
	UserID      uint64 `json:"user_id"`
	TourTitle   string `json:"tour_title"`
	StartsAt    string `json:"starts_at"`
	Qty         uint32 `json:"qty"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
	DecidedAt   string `json:"decided_at"`
}
