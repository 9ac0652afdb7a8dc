package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/tour-marketplace/internal/model"
)

// ReferralRepo covers the landlord referral surface: scan upserts, the
// latest-scan lookup that drives quote-time attribution, and per-tour
// commission choices.
type ReferralRepo struct {
	db *sql.DB
}

// NewReferralRepo returns a new ReferralRepo bound to the given database.
func NewReferralRepo(db *sql.DB) *ReferralRepo { return &ReferralRepo{db: db} }

// Upsert records a scan of a landlord's QR code.  A repeat scan by the
// same user refreshes the timestamp rather than adding a row, so "latest
// scan wins" reduces to a MAX(ts) lookup.
func (r *ReferralRepo) Upsert(ctx context.Context, userID, landlordID uint64) error {
	const q = `INSERT INTO referrals (user_id, landlord_id, ts)
	           VALUES (?, ?, UTC_TIMESTAMP())
	           ON DUPLICATE KEY UPDATE ts = UTC_TIMESTAMP()`
	_, err := r.db.ExecContext(ctx, q, userID, landlordID)
	return err
}

// LastLandlordID returns the landlord most recently scanned by the user,
// or ErrNotFound when the user has never scanned one.
func (r *ReferralRepo) LastLandlordID(ctx context.Context, userID uint64) (uint64, error) {
	const q = `SELECT landlord_id FROM referrals WHERE user_id = ? ORDER BY ts DESC LIMIT 1`
	var landlordID uint64
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&landlordID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return landlordID, nil
}

// ChosenCommissionBP returns the commission a landlord chose for a tour,
// in basis points.  Absence of a row means the landlord never configured
// this tour, reported as ErrNotFound; callers resolve that to commission
// zero, i.e. the maximum tourist discount.
func (r *ReferralRepo) ChosenCommissionBP(ctx context.Context, landlordID, tourID uint64) (int64, error) {
	const q = `SELECT commission_bp FROM landlord_commissions
	           WHERE landlord_id = ? AND tour_id = ?`
	var bp int64
	err := r.db.QueryRowContext(ctx, q, landlordID, tourID).Scan(&bp)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return bp, nil
}

// SetCommission stores a landlord's commission choice for a tour.  The
// caller validates the value against the tour's cap first.
func (r *ReferralRepo) SetCommission(ctx context.Context, landlordID, tourID uint64, commissionBP int64) error {
	const q = `INSERT INTO landlord_commissions (landlord_id, tour_id, commission_bp)
	           VALUES (?, ?, ?)
	           ON DUPLICATE KEY UPDATE commission_bp = VALUES(commission_bp)`
	_, err := r.db.ExecContext(ctx, q, landlordID, tourID, commissionBP)
	return err
}

// GetLandlord returns a landlord row or ErrNotFound.
func (r *ReferralRepo) GetLandlord(ctx context.Context, landlordID uint64) (*model.Landlord, error) {
	const q = `SELECT id, user_id, name, created_at FROM landlords WHERE id = ?`
	var l model.Landlord
	err := r.db.QueryRowContext(ctx, q, landlordID).Scan(&l.ID, &l.UserID, &l.Name, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetApartment returns an apartment row or ErrNotFound.  The apartment's
// landlord is the attribution target of the booking-time path.
func (r *ReferralRepo) GetApartment(ctx context.Context, apartmentID uint64) (*model.Apartment, error) {
	const q = `SELECT id, landlord_id, name, created_at FROM apartments WHERE id = ?`
	var a model.Apartment
	err := r.db.QueryRowContext(ctx, q, apartmentID).Scan(&a.ID, &a.LandlordID, &a.Name, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LandlordByApartment resolves the landlord owning an apartment, used at
// booking time to attribute the purchase.
func (r *ReferralRepo) LandlordByApartment(ctx context.Context, apartmentID uint64) (uint64, error) {
	const q = `SELECT landlord_id FROM apartments WHERE id = ?`
	var landlordID uint64
	err := r.db.QueryRowContext(ctx, q, apartmentID).Scan(&landlordID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return landlordID, nil
}

// Scan is the most recent referral row for a user, exposed so the tourist
// surface can show who they are currently attributed to.
func (r *ReferralRepo) Scan(ctx context.Context, userID uint64) (*model.Referral, error) {
	const q = `SELECT id, user_id, landlord_id, ts FROM referrals
	           WHERE user_id = ? ORDER BY ts DESC LIMIT 1`
	var ref model.Referral
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&ref.ID, &ref.UserID, &ref.LandlordID, &ref.TS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// LandlordIDForUser maps an authenticated user to their landlord profile,
// or ErrNotFound when the user has none.
func (r *ReferralRepo) LandlordIDForUser(ctx context.Context, userID uint64) (uint64, error) {
	const q = `SELECT id FROM landlords WHERE user_id = ?`
	var landlordID uint64
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&landlordID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return landlordID, nil
}

// EarningsRow aggregates a landlord's attributed bookings for one tour.
type EarningsRow struct {
	TourID       uint64 `json:"tour_id"`
	TourTitle    string `json:"tour_title"`
	Bookings     int    `json:"bookings"`
	GrossCents   int64  `json:"gross_cents"`
	CommissionBP int64  `json:"commission_bp"`
}

// Earnings sums confirmed purchases attributed to a landlord, grouped by
// tour.  The stored commission_bp on each purchase is what was applied at
// booking time, so later cap changes do not rewrite history; the grouped
// value shown is the landlord's current choice.
func (r *ReferralRepo) Earnings(ctx context.Context, landlordID uint64, since time.Time) ([]EarningsRow, error) {
	const q = `SELECT t.id, t.title, COUNT(*), COALESCE(SUM(p.amount_gross_cents), 0),
	                  COALESCE(MAX(lc.commission_bp), 0)
	           FROM purchases p
	           JOIN departures d ON d.id = p.departure_id
	           JOIN tours t ON t.id = d.tour_id
	           LEFT JOIN landlord_commissions lc ON lc.landlord_id = p.landlord_id AND lc.tour_id = t.id
	           WHERE p.landlord_id = ? AND p.status = 'confirmed' AND p.created_at >= ?
	           GROUP BY t.id, t.title
	           ORDER BY t.id`
	rows, err := r.db.QueryContext(ctx, q, landlordID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EarningsRow
	for rows.Next() {
		var e EarningsRow
		if err := rows.Scan(&e.TourID, &e.TourTitle, &e.Bookings, &e.GrossCents, &e.CommissionBP); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
