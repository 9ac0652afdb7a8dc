package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/tour-marketplace/internal/model"
)

// PurchaseRepo provides CRUD operations for purchases and their category
// line items.  A purchase groups together one or more passenger lines for
// a departure and user; lines are stored in the purchase_items table.
// All timestamp fields are assumed to be stored in UTC.  Mutations run
// within the caller's transaction, after the departure row lock has been
// taken, so capacity checks and writes cannot interleave.
type PurchaseRepo struct {
	db *sql.DB
}

// NewPurchaseRepo returns a new PurchaseRepo bound to the given database.
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

const purchaseColumns = `id, user_id, departure_id, landlord_id, apartment_id, qty,
	amount_gross_cents, amount_cents, commission_bp, status, viewed, status_changed_at, created_at`

func scanPurchase(row *sql.Row) (*model.Purchase, error) {
	var p model.Purchase
	var landlordID, apartmentID sql.NullInt64
	var statusChanged sql.NullTime
	err := row.Scan(
		&p.ID, &p.UserID, &p.DepartureID, &landlordID, &apartmentID, &p.Qty,
		&p.AmountGrossCents, &p.AmountCents, &p.CommissionBP, &p.Status, &p.Viewed,
		&statusChanged, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if landlordID.Valid {
		v := uint64(landlordID.Int64)
		p.LandlordID = &v
	}
	if apartmentID.Valid {
		v := uint64(apartmentID.Int64)
		p.ApartmentID = &v
	}
	if statusChanged.Valid {
		t := statusChanged.Time
		p.StatusChangedAt = &t
	}
	return &p, nil
}

// CreateTx inserts a new purchase within the scope of an existing
// transaction and populates the generated ID on the provided record.
// The caller must commit or roll back the transaction.
func (r *PurchaseRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Purchase) error {
	const q = `INSERT INTO purchases
	           (user_id, departure_id, landlord_id, apartment_id, qty,
	            amount_gross_cents, amount_cents, commission_bp, status, viewed)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var landlordID, apartmentID interface{}
	if p.LandlordID != nil {
		landlordID = *p.LandlordID
	}
	if p.ApartmentID != nil {
		apartmentID = *p.ApartmentID
	}
	result, err := tx.ExecContext(ctx, q,
		p.UserID, p.DepartureID, landlordID, apartmentID, p.Qty,
		p.AmountGrossCents, p.AmountCents, p.CommissionBP, p.Status, p.Viewed,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// CreateItemsBulkTx inserts multiple purchase_items rows in a single
// statement.  The caller must supply the purchase ID in each record.
// Passing an empty slice has no effect and returns nil.
func (r *PurchaseRepo) CreateItemsBulkTx(ctx context.Context, tx *sql.Tx, items []model.PurchaseItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO purchase_items (purchase_id, category_id, qty, amount_cents) VALUES `
	args := make([]interface{}, 0, len(items)*4)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, it.PurchaseID, it.CategoryID, it.Qty, it.AmountCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LockByIDTx loads a purchase row with an exclusive lock inside the
// transaction.  The booking service calls it after the departure row lock
// so concurrent modifications of the same booking serialize too.
func (r *PurchaseRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, purchaseID uint64) (*model.Purchase, error) {
	const q = `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = ? FOR UPDATE`
	return scanPurchase(tx.QueryRowContext(ctx, q, purchaseID))
}

// DepartureID returns the departure a purchase points at, or ErrNotFound.
// Used before the advisory lock is taken to compose the lock key.
func (r *PurchaseRepo) DepartureID(ctx context.Context, purchaseID uint64) (uint64, error) {
	const q = `SELECT departure_id FROM purchases WHERE id = ?`
	var depID uint64
	err := r.db.QueryRowContext(ctx, q, purchaseID).Scan(&depID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return depID, nil
}

// DeleteItemsTx removes all item rows for a purchase.
func (r *PurchaseRepo) DeleteItemsTx(ctx context.Context, tx *sql.Tx, purchaseID uint64) error {
	const q = `DELETE FROM purchase_items WHERE purchase_id = ?`
	_, err := tx.ExecContext(ctx, q, purchaseID)
	return err
}

// DeleteTx removes a purchase and its items, releasing the booked seats
// immediately: the seats-taken aggregate stops seeing them at the next
// read.  Items are deleted first to respect the foreign key.
func (r *PurchaseRepo) DeleteTx(ctx context.Context, tx *sql.Tx, purchaseID uint64) error {
	if err := r.DeleteItemsTx(ctx, tx, purchaseID); err != nil {
		return err
	}
	const q = `DELETE FROM purchases WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, purchaseID)
	return err
}

// UpdateTotalsTx rewrites the aggregate columns of a purchase after its
// item set changed.
func (r *PurchaseRepo) UpdateTotalsTx(ctx context.Context, tx *sql.Tx, purchaseID uint64, qty uint32, grossCents, netCents int64) error {
	const q = `UPDATE purchases SET qty = ?, amount_gross_cents = ?, amount_cents = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, qty, grossCents, netCents, purchaseID)
	return err
}

// DecisionContext carries the fields the status-decision path needs: the
// purchase's current state, the agency that owns the underlying tour, and
// display fields for the notification event.
type DecisionContext struct {
	PurchaseID  uint64
	UserID      uint64
	AgencyID    uint64
	Status      string
	AmountCents int64
	Qty         uint32
	TourTitle   string
	StartsAt    time.Time
}

// GetDecisionContext loads a purchase joined through its departure and
// tour to the owning agency.  Returns ErrNotFound when the purchase does
// not exist; tenant checks are done by the caller against AgencyID (and
// reported as not-found, not forbidden).
func (r *PurchaseRepo) GetDecisionContext(ctx context.Context, purchaseID uint64) (*DecisionContext, error) {
	const q = `SELECT p.id, p.user_id, t.agency_id, p.status, p.amount_cents, p.qty, t.title, d.starts_at
	           FROM purchases p
	           JOIN departures d ON d.id = p.departure_id
	           JOIN tours t ON t.id = d.tour_id
	           WHERE p.id = ?`
	var dc DecisionContext
	err := r.db.QueryRowContext(ctx, q, purchaseID).Scan(
		&dc.PurchaseID, &dc.UserID, &dc.AgencyID, &dc.Status, &dc.AmountCents, &dc.Qty, &dc.TourTitle, &dc.StartsAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dc, nil
}

// UpdateStatus flips a pending purchase to its decided status and stamps
// status_changed_at.  The status guard in the WHERE clause keeps the
// transition one-way under concurrent decisions; false means another
// decision won the race.
func (r *PurchaseRepo) UpdateStatus(ctx context.Context, purchaseID uint64, status string) (bool, error) {
	const q = `UPDATE purchases SET status = ?, status_changed_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, status, purchaseID, model.StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkViewed flags a purchase as seen by agency staff.
func (r *PurchaseRepo) MarkViewed(ctx context.Context, purchaseID uint64) error {
	const q = `UPDATE purchases SET viewed = TRUE WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, purchaseID)
	return err
}

// ItemDetail is one category line as exposed in listings.
type ItemDetail struct {
	CategoryID   uint64 `json:"category_id"`
	CategoryName string `json:"category_name"`
	Qty          uint32 `json:"qty"`
	AmountCents  int64  `json:"amount_cents"`
}

// BookingDetail is a purchase with the related tour/departure fields a
// tourist's booking list needs, including whether the booking is still
// inside its free-cancellation window.
type BookingDetail struct {
	ID               uint64       `json:"id"`
	DepartureID      uint64       `json:"departure_id"`
	TourID           uint64       `json:"tour_id"`
	TourTitle        string       `json:"tour_title"`
	TourAddress      string       `json:"tour_address"`
	StartsAt         time.Time    `json:"starts_at"`
	Qty              uint32       `json:"qty"`
	AmountGrossCents int64        `json:"amount_gross_cents"`
	AmountCents      int64        `json:"amount_cents"`
	Status           string       `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	CutoffHours      uint32       `json:"-"`
	Cancellable      bool         `json:"cancellable"`
	Items            []ItemDetail `json:"items"`
}

// ListByUser returns all bookings for the given user along with tour and
// departure details, ordered by departure time so upcoming tours come
// first.  Items for all bookings are populated with a single IN query.
func (r *PurchaseRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingDetail, error) {
	const q = `SELECT p.id, p.departure_id, t.id, t.title, t.address, d.starts_at,
	                  p.qty, p.amount_gross_cents, p.amount_cents, p.status, p.created_at,
	                  t.free_cancellation_cutoff_h
	           FROM purchases p
	           JOIN departures d ON d.id = p.departure_id
	           JOIN tours t ON t.id = d.tour_id
	           WHERE p.user_id = ?
	           ORDER BY d.starts_at`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var d BookingDetail
		if err := rows.Scan(
			&d.ID, &d.DepartureID, &d.TourID, &d.TourTitle, &d.TourAddress, &d.StartsAt,
			&d.Qty, &d.AmountGrossCents, &d.AmountCents, &d.Status, &d.CreatedAt,
			&d.CutoffHours,
		); err != nil {
			return nil, err
		}
		d.Items = []ItemDetail{}
		index[d.ID] = len(details)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	if err := r.populateItems(ctx, details, index); err != nil {
		return nil, err
	}
	return details, nil
}

// AgencyBookingDetail extends BookingDetail with the customer fields an
// agency operator needs to process the booking.
type AgencyBookingDetail struct {
	BookingDetail
	UserID        uint64 `json:"user_id"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	Viewed        bool   `json:"viewed"`
}

// ListByAgency returns bookings against an agency's tours, newest first,
// optionally bounded by booking date.
func (r *PurchaseRepo) ListByAgency(ctx context.Context, agencyID uint64, from, to *time.Time, limit, offset int) ([]AgencyBookingDetail, error) {
	q := `SELECT p.id, p.departure_id, t.id, t.title, t.address, d.starts_at,
	             p.qty, p.amount_gross_cents, p.amount_cents, p.status, p.created_at,
	             t.free_cancellation_cutoff_h,
	             p.user_id, CONCAT_WS(' ', u.first, u.last), u.phone, p.viewed
	      FROM purchases p
	      JOIN departures d ON d.id = p.departure_id
	      JOIN tours t ON t.id = d.tour_id
	      JOIN users u ON u.id = p.user_id
	      WHERE t.agency_id = ?`
	args := []interface{}{agencyID}
	if from != nil {
		q += ` AND p.created_at >= ?`
		args = append(args, *from)
	}
	if to != nil {
		q += ` AND p.created_at < ?`
		args = append(args, *to)
	}
	q += ` ORDER BY p.created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]AgencyBookingDetail, 0)
	inner := make([]BookingDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var d AgencyBookingDetail
		var phone sql.NullString
		if err := rows.Scan(
			&d.ID, &d.DepartureID, &d.TourID, &d.TourTitle, &d.TourAddress, &d.StartsAt,
			&d.Qty, &d.AmountGrossCents, &d.AmountCents, &d.Status, &d.CreatedAt,
			&d.CutoffHours,
			&d.UserID, &d.CustomerName, &phone, &d.Viewed,
		); err != nil {
			return nil, err
		}
		d.CustomerPhone = phone.String
		d.Items = []ItemDetail{}
		index[d.ID] = len(details)
		details = append(details, d)
		inner = append(inner, d.BookingDetail)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	if err := r.populateItems(ctx, inner, index); err != nil {
		return nil, err
	}
	for i := range details {
		details[i].Items = inner[i].Items
	}
	return details, nil
}

// populateItems fetches items for all listed bookings in one query and
// appends them to the matching detail rows.
func (r *PurchaseRepo) populateItems(ctx context.Context, details []BookingDetail, index map[uint64]int) error {
	ids := make([]interface{}, 0, len(details))
	placeholders := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
		placeholders = append(placeholders, "?")
	}
	itemQuery := `SELECT pi.purchase_id, pi.category_id, tc.name, pi.qty, pi.amount_cents
	              FROM purchase_items pi
	              JOIN ticket_categories tc ON tc.id = pi.category_id
	              WHERE pi.purchase_id IN (` + strings.Join(placeholders, ",") + `)
	              ORDER BY pi.purchase_id, pi.category_id`
	rows, err := r.db.QueryContext(ctx, itemQuery, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var pid uint64
		var it ItemDetail
		if err := rows.Scan(&pid, &it.CategoryID, &it.CategoryName, &it.Qty, &it.AmountCents); err != nil {
			return err
		}
		idx, ok := index[pid]
		if !ok {
			continue
		}
		details[idx].Items = append(details[idx].Items, it)
	}
	return rows.Err()
}

// CountByStatus counts an agency's bookings per status for the dashboard
// metrics.  An empty status counts all bookings.
func (r *PurchaseRepo) CountByStatus(ctx context.Context, agencyID uint64, status string) (int, error) {
	q := `SELECT COUNT(*)
	      FROM purchases p
	      JOIN departures d ON d.id = p.departure_id
	      JOIN tours t ON t.id = d.tour_id
	      WHERE t.agency_id = ?`
	args := []interface{}{agencyID}
	if status != "" {
		q += ` AND p.status = ?`
		args = append(args, status)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
