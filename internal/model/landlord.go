package model

import "time"

// Landlord earns referral commissions on bookings made by tourists who
// scanned their QR code.  The commission they choose per tour bounds the
// discount the tourist receives.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – backing user account.
//	Name      – display name.
//	CreatedAt – creation timestamp.
type Landlord struct {
	ID        uint64    // landlords.id
	UserID    uint64    // landlords.user_id
	Name      string    // landlords.name
	CreatedAt time.Time // landlords.created_at
}

// LandlordCommission maps (landlord, tour) to the commission the landlord
// chose, in basis points.  The value is capped at the tour's maximum at
// write time and again defensively at read time, since a tour may lower
// its cap after the row was written.
type LandlordCommission struct {
	LandlordID   uint64 // landlord_commissions.landlord_id
	TourID       uint64 // landlord_commissions.tour_id
	CommissionBP int64  // landlord_commissions.commission_bp
}

// Apartment belongs to a landlord and is the indirection used by the
// booking-time attribution path: a tourist who scanned an apartment QR is
// attributed to that apartment's landlord for a bounded window.
type Apartment struct {
	ID         uint64    // apartments.id
	LandlordID uint64    // apartments.landlord_id
	Name       string    // apartments.name
	CreatedAt  time.Time // apartments.created_at
}
