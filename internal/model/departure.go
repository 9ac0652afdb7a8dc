package model

import "time"

// Departure is one scheduled, capacity-bounded instance of a Tour.  The
// central inventory invariant is that the summed quantity of active
// purchases referencing a departure never exceeds Capacity; every write
// path that could violate it runs under the departure row lock.
//
// Modifiable flips true→false once wall-clock time passes
// starts_at − tour cutoff; the lifecycle sweeper is the only writer of
// that transition and nothing ever sets it back.
//
// Fields:
//
//	ID         – primary key identifier.
//	TourID     – parent tour.
//	StartsAt   – departure timestamp (UTC, minute resolution).
//	Capacity   – fixed seat count.
//	Modifiable – whether tourist-side changes are still allowed.
//	CreatedAt  – creation timestamp.
//	UpdatedAt  – last update timestamp.
type Departure struct {
	ID         uint64    // departures.id
	TourID     uint64    // departures.tour_id
	StartsAt   time.Time // departures.starts_at
	Capacity   uint32    // departures.capacity
	Modifiable bool      // departures.modifiable
	CreatedAt  time.Time // departures.created_at
	UpdatedAt  time.Time // departures.updated_at
}

// CutoffAt returns the instant after which bookings against the departure
// are locked, given the parent tour's cutoff in hours.
func (d *Departure) CutoffAt(cutoffHours uint32) time.Time {
	return d.StartsAt.Add(-time.Duration(cutoffHours) * time.Hour)
}
