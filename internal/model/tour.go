package model

import "time"

// Repetition types understood by the virtual departure expansion.  A tour
// with RepeatNone only departs when agency staff create explicit rows.
const (
	RepeatNone   = "none"
	RepeatDaily  = "daily"
	RepeatWeekly = "weekly"
)

// Tour represents an agency-owned product that tourists can book.  Pricing
// is carried by its ticket categories; concrete scheduled instances are
// Departure rows, either created by staff or materialized lazily from the
// repetition rule.
//
// Fields:
//
//	ID                – primary key identifier.
//	AgencyID          – owning agency.
//	Title             – display title.
//	Description       – long-form description shown to tourists.
//	Address           – meeting point / location.
//	DurationMinutes   – tour length in minutes.
//	MaxCommissionBP   – maximum landlord commission in basis points
//	                    (100 bp = 1%); also bounds the tourist discount.
//	CutoffHours       – free-cancellation cutoff: hours before departure
//	                    after which bookings lock.
//	RepeatType        – "none", "daily" or "weekly".
//	RepeatWeekdays    – comma-separated weekday numbers (0=Sunday) for
//	                    weekly repetition; empty otherwise.
//	RepeatTime        – departure time of day ("15:04") for repeating tours.
//	CreatedAt         – creation timestamp.
//	UpdatedAt         – last update timestamp.
type Tour struct {
	ID              uint64    // tours.id
	AgencyID        uint64    // tours.agency_id
	Title           string    // tours.title
	Description     string    // tours.description
	Address         string    // tours.address
	DurationMinutes uint32    // tours.duration_minutes
	MaxCommissionBP int64     // tours.max_commission_bp
	CutoffHours     uint32    // tours.free_cancellation_cutoff_h
	RepeatType      string    // tours.repeat_type
	RepeatWeekdays  string    // tours.repeat_weekdays
	RepeatTime      string    // tours.repeat_time
	CreatedAt       time.Time // tours.created_at
	UpdatedAt       time.Time // tours.updated_at
}

// Repeats reports whether the tour has an active repetition rule with a
// usable time of day.
func (t *Tour) Repeats() bool {
	return t.RepeatType != "" && t.RepeatType != RepeatNone && t.RepeatTime != ""
}
