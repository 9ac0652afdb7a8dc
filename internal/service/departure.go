package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/tour-marketplace/internal/lock"
	"github.com/iliyamo/tour-marketplace/internal/model"
	"github.com/iliyamo/tour-marketplace/internal/repository"
)

// DepartureService is the agency-side schedule surface: explicit creation
// of departure rows plus capacity and start-time edits. Edits that could
// violate the seat invariant (shrinking capacity) run under the same
// two-level locking as bookings.
type DepartureService struct {
	db         *sql.DB
	locks      *lock.DepartureLock
	departures *repository.DepartureRepo
	tours      *repository.TourRepo
	now        func() time.Time
}

// NewDepartureService wires the agency departure service.
func NewDepartureService(db *sql.DB, locks *lock.DepartureLock, departures *repository.DepartureRepo, tours *repository.TourRepo) *DepartureService {
	return &DepartureService{db: db, locks: locks, departures: departures, tours: tours, now: time.Now}
}

// tourOwnedBy loads the tour and hides it behind ErrNotFound when it
// belongs to another agency.
func (s *DepartureService) tourOwnedBy(ctx context.Context, tourID, agencyID uint64) (*model.Tour, error) {
	tour, err := s.tours.GetByID(ctx, tourID)
	if err != nil {
		return nil, err
	}
	if tour.AgencyID != agencyID {
		return nil, repository.ErrNotFound
	}
	return tour, nil
}

// Create adds an explicit departure to one of the agency's tours. The
// start time is normalized to minute resolution to line up with virtual
// slot materialization.
func (s *DepartureService) Create(ctx context.Context, agencyID, tourID uint64, startsAt time.Time, capacity uint32) (*model.Departure, error) {
	if capacity == 0 {
		return nil, repository.ErrValidation
	}
	startsAt = startsAt.UTC().Truncate(time.Minute)
	if !startsAt.After(s.now()) {
		return nil, repository.ErrValidation
	}
	tour, err := s.tourOwnedBy(ctx, tourID, agencyID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	dep := &model.Departure{
		TourID:     tour.ID,
		StartsAt:   startsAt,
		Capacity:   capacity,
		Modifiable: true,
	}
	if err := s.departures.CreateTx(ctx, tx, dep); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return dep, nil
}

// Update edits a departure's capacity and/or start time. A capacity below
// the seats already taken is rejected with ErrConflict; the check and the
// write share one transaction under the departure row lock so a booking
// cannot slip between them.
func (s *DepartureService) Update(ctx context.Context, agencyID, departureID uint64, startsAt *time.Time, capacity *uint32) (*model.Departure, error) {
	if capacity != nil && *capacity == 0 {
		return nil, repository.ErrValidation
	}

	h, err := s.locks.Acquire(ctx, departureID)
	if err != nil {
		return nil, err
	}
	defer h.Release(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	dep, err := s.departures.LockForUpdateTx(ctx, tx, departureID)
	if err != nil {
		return nil, err
	}
	tour, err := s.tours.GetByIDTx(ctx, tx, dep.TourID)
	if err != nil {
		return nil, err
	}
	if tour.AgencyID != agencyID {
		return nil, repository.ErrNotFound
	}

	if capacity != nil {
		taken, err := s.departures.SeatsTakenTx(ctx, tx, departureID)
		if err != nil {
			return nil, err
		}
		if *capacity < taken {
			return nil, repository.ErrConflict
		}
		dep.Capacity = *capacity
	}
	if startsAt != nil {
		t := startsAt.UTC().Truncate(time.Minute)
		if !t.After(s.now()) {
			return nil, repository.ErrValidation
		}
		dep.StartsAt = t
		startsAt = &t
	}

	if err := s.departures.UpdateTx(ctx, tx, departureID, startsAt, capacity); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return dep, nil
}

// Delete removes a departure that has no active bookings. The seats-taken
// aggregate is checked under the row lock so a concurrent booking either
// lands before the check (blocking the delete) or fails on the vanished
// row.
func (s *DepartureService) Delete(ctx context.Context, agencyID, departureID uint64) error {
	h, err := s.locks.Acquire(ctx, departureID)
	if err != nil {
		return err
	}
	defer h.Release(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	dep, err := s.departures.LockForUpdateTx(ctx, tx, departureID)
	if err != nil {
		return err
	}
	tour, err := s.tours.GetByIDTx(ctx, tx, dep.TourID)
	if err != nil {
		return err
	}
	if tour.AgencyID != agencyID {
		return repository.ErrNotFound
	}

	taken, err := s.departures.SeatsTakenTx(ctx, tx, departureID)
	if err != nil {
		return err
	}
	if taken > 0 {
		return repository.ErrConflict
	}
	if err := s.departures.DeleteTx(ctx, tx, departureID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
