// Package repository defines error types that are reused across multiple
// repositories and the services built on them. These sentinel values allow
// higher layers such as handlers to distinguish between different failure
// scenarios with errors.Is and translate them into structured responses.
// Ownership failures on reads are deliberately reported as ErrNotFound
// rather than ErrForbidden so that the existence of other tenants'
// resources is not leaked; booking modification is the one place the
// source of truth distinguishes the two, and it uses ErrForbidden.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a requested row does not exist, or exists
// but belongs to another tenant. Handlers translate this into 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when a tourist attempts to modify a booking
// they do not own. Handlers translate this into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state: insufficient seats, a capacity edit below the seats
// already taken, or a modification attempted after the free-cancellation
// cutoff. Handlers translate this into 409. Unlike lock contention, a
// conflict will not resolve by retrying.
var ErrConflict = errors.New("conflict")

// ErrValidation is returned for malformed input: empty item lists,
// non-positive quantities, or categories that do not belong to the tour.
// Handlers translate this into 400.
var ErrValidation = errors.New("validation failed")

// ErrBusinessRule is returned when a state transition violates the domain
// rules, such as deciding a booking that has already been confirmed or
// rejected. Handlers translate this into 422.
var ErrBusinessRule = errors.New("business rule violation")

// IsDuplicateKey reports whether err is a MySQL duplicate-entry error
// (1062). Used to turn unique-constraint violations into ErrConflict and
// to make inserts race-safe where two writers may create the same row.
func IsDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
