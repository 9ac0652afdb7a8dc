package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/tour-marketplace/internal/model"
)

// TourRepo provides read access to tours and their ticket categories.
// Tours are written through the agency CRUD surface which is out of the
// booking core's scope; the booking paths only need lookups.
type TourRepo struct {
	db *sql.DB
}

// NewTourRepo returns a new TourRepo bound to the given database.
func NewTourRepo(db *sql.DB) *TourRepo { return &TourRepo{db: db} }

const tourColumns = `id, agency_id, title, description, address, duration_minutes,
	max_commission_bp, free_cancellation_cutoff_h, repeat_type, repeat_weekdays,
	repeat_time, created_at, updated_at`

func scanTour(row *sql.Row) (*model.Tour, error) {
	var t model.Tour
	var weekdays, repeatTime sql.NullString
	err := row.Scan(
		&t.ID, &t.AgencyID, &t.Title, &t.Description, &t.Address, &t.DurationMinutes,
		&t.MaxCommissionBP, &t.CutoffHours, &t.RepeatType, &weekdays,
		&repeatTime, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.RepeatWeekdays = weekdays.String
	t.RepeatTime = repeatTime.String
	return &t, nil
}

// GetByID returns a single tour or ErrNotFound.
func (r *TourRepo) GetByID(ctx context.Context, tourID uint64) (*model.Tour, error) {
	const q = `SELECT ` + tourColumns + ` FROM tours WHERE id = ?`
	return scanTour(r.db.QueryRowContext(ctx, q, tourID))
}

// GetByIDTx is GetByID within an existing transaction.
func (r *TourRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, tourID uint64) (*model.Tour, error) {
	const q = `SELECT ` + tourColumns + ` FROM tours WHERE id = ?`
	return scanTour(tx.QueryRowContext(ctx, q, tourID))
}

// Exists reports whether a tour row with the given id exists.  Used by the
// legacy virtual-departure decode fallback, which probes candidate tour
// ids without needing the full row.
func (r *TourRepo) Exists(ctx context.Context, tourID uint64) (bool, error) {
	const q = `SELECT 1 FROM tours WHERE id = ?`
	var one int
	err := r.db.QueryRowContext(ctx, q, tourID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns tours ordered newest first for public browsing.
func (r *TourRepo) List(ctx context.Context, limit, offset int) ([]model.Tour, error) {
	const q = `SELECT ` + tourColumns + ` FROM tours ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tours []model.Tour
	for rows.Next() {
		var t model.Tour
		var weekdays, repeatTime sql.NullString
		if err := rows.Scan(
			&t.ID, &t.AgencyID, &t.Title, &t.Description, &t.Address, &t.DurationMinutes,
			&t.MaxCommissionBP, &t.CutoffHours, &t.RepeatType, &weekdays,
			&repeatTime, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		t.RepeatWeekdays = weekdays.String
		t.RepeatTime = repeatTime.String
		tours = append(tours, t)
	}
	return tours, rows.Err()
}

// CategoriesByTour returns all ticket categories for a tour.
func (r *TourRepo) CategoriesByTour(ctx context.Context, tourID uint64) ([]model.TicketCategory, error) {
	const q = `SELECT id, tour_id, name, price_cents, created_at
	           FROM ticket_categories WHERE tour_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, tourID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCategories(rows)
}

// CategoriesByTourTx is CategoriesByTour within an existing transaction.
// The booking service calls it after taking the departure row lock so the
// category set it validates against is read in the same snapshot as the
// capacity check.
func (r *TourRepo) CategoriesByTourTx(ctx context.Context, tx *sql.Tx, tourID uint64) ([]model.TicketCategory, error) {
	const q = `SELECT id, tour_id, name, price_cents, created_at
	           FROM ticket_categories WHERE tour_id = ? ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, tourID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCategories(rows)
}

func collectCategories(rows *sql.Rows) ([]model.TicketCategory, error) {
	var cats []model.TicketCategory
	for rows.Next() {
		var c model.TicketCategory
		if err := rows.Scan(&c.ID, &c.TourID, &c.Name, &c.PriceCents, &c.CreatedAt); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}
