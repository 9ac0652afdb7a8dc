package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/tour-marketplace/internal/model"
)

// DepartureRepo is the authoritative seat-inventory accessor.  The
// departure row is the single serialization point per tour instance:
// every capacity check that precedes a write happens under
// LockForUpdateTx inside one transaction, so check-then-write sequences
// are strictly serialized across all transactions touching that row.
type DepartureRepo struct {
	db *sql.DB
}

// NewDepartureRepo returns a new DepartureRepo bound to the given database.
func NewDepartureRepo(db *sql.DB) *DepartureRepo { return &DepartureRepo{db: db} }

const departureColumns = `id, tour_id, starts_at, capacity, modifiable, created_at, updated_at`

func scanDeparture(row *sql.Row) (*model.Departure, error) {
	var d model.Departure
	err := row.Scan(&d.ID, &d.TourID, &d.StartsAt, &d.Capacity, &d.Modifiable, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetByID returns a departure or ErrNotFound.  Reads outside a booking
// transaction (availability displays, listings) use this; mutating paths
// must go through LockForUpdateTx instead.
func (r *DepartureRepo) GetByID(ctx context.Context, departureID uint64) (*model.Departure, error) {
	const q = `SELECT ` + departureColumns + ` FROM departures WHERE id = ?`
	return scanDeparture(r.db.QueryRowContext(ctx, q, departureID))
}

// LockForUpdateTx opens a pessimistic write lock on the departure row
// inside the given transaction.  Other transactions calling this for the
// same row block until the holder commits or rolls back.  Returns
// ErrNotFound when no such row exists.
func (r *DepartureRepo) LockForUpdateTx(ctx context.Context, tx *sql.Tx, departureID uint64) (*model.Departure, error) {
	const q = `SELECT ` + departureColumns + ` FROM departures WHERE id = ? FOR UPDATE`
	return scanDeparture(tx.QueryRowContext(ctx, q, departureID))
}

// SeatsTakenTx sums item quantities over active purchases for the
// departure within the transaction.  Cancelled purchases are gone
// (deleted) and rejected ones are excluded, so the aggregate always
// reflects committed seats at read time.  It is recomputed on every
// check, never cached.
func (r *DepartureRepo) SeatsTakenTx(ctx context.Context, tx *sql.Tx, departureID uint64) (uint32, error) {
	const q = `SELECT COALESCE(SUM(pi.qty), 0)
	           FROM purchase_items pi
	           JOIN purchases p ON p.id = pi.purchase_id
	           WHERE p.departure_id = ? AND p.status IN ('pending', 'confirmed')`
	var taken uint32
	if err := tx.QueryRowContext(ctx, q, departureID).Scan(&taken); err != nil {
		return 0, err
	}
	return taken, nil
}

// SeatsTaken is SeatsTakenTx outside a transaction, for availability
// displays where a slightly stale value is acceptable.
func (r *DepartureRepo) SeatsTaken(ctx context.Context, departureID uint64) (uint32, error) {
	const q = `SELECT COALESCE(SUM(pi.qty), 0)
	           FROM purchase_items pi
	           JOIN purchases p ON p.id = pi.purchase_id
	           WHERE p.departure_id = ? AND p.status IN ('pending', 'confirmed')`
	var taken uint32
	if err := r.db.QueryRowContext(ctx, q, departureID).Scan(&taken); err != nil {
		return 0, err
	}
	return taken, nil
}

// FindByTourAndStartTx looks up a departure at an exact start timestamp
// for a tour, used by the materializer's idempotency check.  Returns
// ErrNotFound when no row exists at that minute.
func (r *DepartureRepo) FindByTourAndStartTx(ctx context.Context, tx *sql.Tx, tourID uint64, startsAt time.Time) (*model.Departure, error) {
	const q = `SELECT ` + departureColumns + ` FROM departures WHERE tour_id = ? AND starts_at = ?`
	return scanDeparture(tx.QueryRowContext(ctx, q, tourID, startsAt))
}

// CreateTx inserts a departure within the given transaction and populates
// the generated ID and timestamps on the provided record.
func (r *DepartureRepo) CreateTx(ctx context.Context, tx *sql.Tx, d *model.Departure) error {
	const q = `INSERT INTO departures (tour_id, starts_at, capacity, modifiable) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, d.TourID, d.StartsAt, d.Capacity, d.Modifiable)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM departures WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, d.ID).Scan(&d.CreatedAt, &d.UpdatedAt)
}

// UpdateTx rewrites capacity and/or start time on a departure row the
// caller has already locked with LockForUpdateTx.  Capacity validation
// against seats taken is the caller's responsibility and must happen in
// the same transaction.
func (r *DepartureRepo) UpdateTx(ctx context.Context, tx *sql.Tx, departureID uint64, startsAt *time.Time, capacity *uint32) error {
	sets := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)
	if startsAt != nil {
		sets = append(sets, "starts_at = ?")
		args = append(args, *startsAt)
	}
	if capacity != nil {
		sets = append(sets, "capacity = ?")
		args = append(args, *capacity)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, departureID)
	q := `UPDATE departures SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// DeleteTx removes a departure row.  Callers verify there are no active
// purchases first, inside the same transaction.
func (r *DepartureRepo) DeleteTx(ctx context.Context, tx *sql.Tx, departureID uint64) error {
	const q = `DELETE FROM departures WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, departureID)
	return err
}

// ListByTourFrom returns upcoming materialized departures for a tour,
// ordered by start time.
func (r *DepartureRepo) ListByTourFrom(ctx context.Context, tourID uint64, from time.Time, limit int) ([]model.Departure, error) {
	const q = `SELECT ` + departureColumns + `
	           FROM departures WHERE tour_id = ? AND starts_at >= ?
	           ORDER BY starts_at LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, tourID, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deps []model.Departure
	for rows.Next() {
		var d model.Departure
		if err := rows.Scan(&d.ID, &d.TourID, &d.StartsAt, &d.Capacity, &d.Modifiable, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

// SweepCandidate pairs a modifiable departure with its tour's cutoff so
// the lifecycle sweeper can decide whether the window has closed.
type SweepCandidate struct {
	DepartureID uint64
	StartsAt    time.Time
	CutoffHours uint32
}

// ListModifiable returns every departure still marked modifiable together
// with the owning tour's free-cancellation cutoff.
func (r *DepartureRepo) ListModifiable(ctx context.Context) ([]SweepCandidate, error) {
	const q = `SELECT d.id, d.starts_at, t.free_cancellation_cutoff_h
	           FROM departures d
	           JOIN tours t ON t.id = d.tour_id
	           WHERE d.modifiable = TRUE`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SweepCandidate
	for rows.Next() {
		var c SweepCandidate
		if err := rows.Scan(&c.DepartureID, &c.StartsAt, &c.CutoffHours); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetUnmodifiable flips modifiable to false for the given departures in a
// single batched statement.  This is the only writer of that transition;
// nothing ever sets modifiable back to true.  Passing an empty slice has
// no effect and returns nil.
func (r *DepartureRepo) SetUnmodifiable(ctx context.Context, departureIDs []uint64) error {
	if len(departureIDs) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(departureIDs))
	args := make([]interface{}, 0, len(departureIDs))
	for _, id := range departureIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `UPDATE departures SET modifiable = FALSE WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}
