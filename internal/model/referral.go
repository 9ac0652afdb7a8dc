package model

import "time"

// Referral records that a user scanned a landlord's QR code.  Rows are
// upserted on each scan (one row per user/landlord pair with a refreshed
// timestamp); the most recent row by TS decides which landlord a user is
// currently attributed to at quote time.
//
// Fields:
//
//	ID         – primary key identifier.
//	UserID     – scanning user.
//	LandlordID – scanned landlord.
//	TS         – last scan timestamp.
type Referral struct {
	ID         uint64    // referrals.id
	UserID     uint64    // referrals.user_id
	LandlordID uint64    // referrals.landlord_id
	TS         time.Time // referrals.ts
}
