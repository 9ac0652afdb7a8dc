package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/tour-marketplace/internal/model"
)

// UserRepo provides access to user accounts and their tenant mappings
// (agency staff to agency, landlord users to landlord profile).
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a new UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, password_hash, role, first, last, phone,
	apartment_id, apartment_set_at, created_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var first, last, phone sql.NullString
	var apartmentID sql.NullInt64
	var apartmentSetAt sql.NullTime
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &first, &last, &phone,
		&apartmentID, &apartmentSetAt, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.First = first.String
	u.Last = last.String
	u.Phone = phone.String
	if apartmentID.Valid {
		v := uint64(apartmentID.Int64)
		u.ApartmentID = &v
	}
	if apartmentSetAt.Valid {
		t := apartmentSetAt.Time
		u.ApartmentSetAt = &t
	}
	return &u, nil
}

// Create inserts a user and populates the generated ID.  A duplicate
// email surfaces as ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `INSERT INTO users (email, password_hash, role, first, last, phone)
	           VALUES (?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, u.Email, u.PasswordHash, u.Role, u.First, u.Last, u.Phone)
	if err != nil {
		if IsDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail returns a user by login email or ErrNotFound.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(r.db.QueryRowContext(ctx, q, email))
}

// GetByID returns a user by primary key or ErrNotFound.
func (r *UserRepo) GetByID(ctx context.Context, userID uint64) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, q, userID))
}

// GetByIDTx is GetByID within an existing transaction.  The booking
// service reads the apartment attribution fields through this after the
// departure row lock is held.
func (r *UserRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, userID uint64) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(tx.QueryRowContext(ctx, q, userID))
}

// SetApartment stamps the user's last scanned apartment and the scan
// time, starting the booking-time attribution window.
func (r *UserRepo) SetApartment(ctx context.Context, userID, apartmentID uint64) error {
	const q = `UPDATE users SET apartment_id = ?, apartment_set_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, apartmentID, userID)
	return err
}

// ClearApartmentTx nulls the attribution fields once the stamp is found
// stale or dangling, inside the booking transaction. Fresh stamps stay
// put for the rest of the attribution window.
func (r *UserRepo) ClearApartmentTx(ctx context.Context, tx *sql.Tx, userID uint64) error {
	const q = `UPDATE users SET apartment_id = NULL, apartment_set_at = NULL WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, userID)
	return err
}

// AgencyIDForUser maps an authenticated user to the agency they act for,
// or ErrNotFound when the user has no agency.
func (r *UserRepo) AgencyIDForUser(ctx context.Context, userID uint64) (uint64, error) {
	const q = `SELECT id FROM agencies WHERE user_id = ?`
	var agencyID uint64
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&agencyID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return agencyID, nil
}
