package model

import "time"

// Purchase statuses.  A purchase starts pending and is decided exactly once
// by agency staff; re-applying the same decision is a no-op and deciding an
// already-decided purchase is a business-rule violation.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
)

// Purchase records one booking transaction against a departure.  It
// aggregates one or more category lines booked together and carries the
// commission percentage that was applied at creation time so later
// modifications reprice with the original terms.
//
// Fields:
//
//	ID               – primary key identifier.
//	UserID           – tourist who made the booking.
//	DepartureID      – departure being booked.
//	LandlordID       – referring landlord, if any (quote-time attribution).
//	ApartmentID      – apartment attribution variant, if any (booking-time
//	                   attribution with a staleness window).
//	Qty              – total passenger quantity across items.
//	AmountGrossCents – sum of list price × qty in cents.
//	AmountCents      – net amount after referral discount in cents.
//	CommissionBP     – commission applied, in basis points.
//	Status           – pending, confirmed or rejected.
//	Viewed           – whether agency staff have opened the booking.
//	StatusChangedAt  – when the status last changed (nullable).
//	CreatedAt        – creation timestamp.
type Purchase struct {
	ID               uint64     // purchases.id
	UserID           uint64     // purchases.user_id
	DepartureID      uint64     // purchases.departure_id
	LandlordID       *uint64    // purchases.landlord_id (nullable)
	ApartmentID      *uint64    // purchases.apartment_id (nullable)
	Qty              uint32     // purchases.qty
	AmountGrossCents int64      // purchases.amount_gross_cents
	AmountCents      int64      // purchases.amount_cents
	CommissionBP     int64      // purchases.commission_bp
	Status           string     // purchases.status
	Viewed           bool       // purchases.viewed
	StatusChangedAt  *time.Time // purchases.status_changed_at (nullable)
	CreatedAt        time.Time  // purchases.created_at
}

// PurchaseItem is one category line inside a purchase.  Each line stores
// its own net amount so a later partial modification can reprice without
// re-deriving the whole booking.  The invariant sum(items.qty) ==
// purchase.qty is maintained by the booking service.
//
// Fields:
//
//	ID          – primary key identifier.
//	PurchaseID  – owning purchase.
//	CategoryID  – ticket category booked.
//	Qty         – passenger count for this line.
//	AmountCents – net amount for this line in cents.
type PurchaseItem struct {
	ID          uint64 // purchase_items.id
	PurchaseID  uint64 // purchase_items.purchase_id
	CategoryID  uint64 // purchase_items.category_id
	Qty         uint32 // purchase_items.qty
	AmountCents int64  // purchase_items.amount_cents
}
