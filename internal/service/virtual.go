package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/tour-marketplace/internal/model"
	"github.com/iliyamo/tour-marketplace/internal/repository"
)

// Virtual departure slots are identified to clients as negative integers.
// The current encoding is simply -tour_id, with the slot timestamp passed
// separately (milliseconds since epoch). An older encoding concatenated
// the tour id digits with a millisecond timestamp into one number; the
// decoder keeps a best-effort fallback for links issued in that format.

// expansionHorizon is how far ahead the recurrence rule is expanded when
// listing virtual slots.
const expansionHorizon = 30 * 24 * time.Hour

// VirtualSlot is a not-yet-materialized departure computed from a tour's
// recurrence rule. ID carries the negative encoding clients book with.
type VirtualSlot struct {
	ID         int64     `json:"id"`
	TourID     uint64    `json:"tour_id"`
	StartsAt   time.Time `json:"starts_at"`
	StartsAtMS int64     `json:"starts_at_ms"`
	Capacity   uint32    `json:"capacity"`
	Virtual    bool      `json:"virtual"`
}

// VirtualDepartureService decodes virtual departure references and turns
// them into real rows on first write, and expands recurrence rules into
// bookable slot listings.
type VirtualDepartureService struct {
	db              *sql.DB
	tours           *repository.TourRepo
	departures      *repository.DepartureRepo
	defaultCapacity uint32
	now             func() time.Time
}

// NewVirtualDepartureService wires the materializer. defaultCapacity is
// the seat count assigned to departures created from virtual slots.
func NewVirtualDepartureService(db *sql.DB, tours *repository.TourRepo, departures *repository.DepartureRepo, defaultCapacity uint32) *VirtualDepartureService {
	if defaultCapacity == 0 {
		defaultCapacity = 10
	}
	return &VirtualDepartureService{
		db:              db,
		tours:           tours,
		departures:      departures,
		defaultCapacity: defaultCapacity,
		now:             time.Now,
	}
}

// Decode resolves a negative departure reference to (tour, start time).
// startsAtMS carries the slot timestamp in the current encoding; zero
// means not supplied, in which case the current time is used. When the
// whole negated value is not a known tour id, the legacy concatenated
// decoding is attempted before giving up with ErrNotFound.
func (s *VirtualDepartureService) Decode(ctx context.Context, ref int64, startsAtMS int64) (uint64, time.Time, error) {
	if ref >= 0 {
		return 0, time.Time{}, repository.ErrValidation
	}
	raw := -ref

	ok, err := s.tours.Exists(ctx, uint64(raw))
	if err != nil {
		return 0, time.Time{}, err
	}
	if ok {
		startsAt := s.now()
		if startsAtMS > 0 {
			startsAt = time.UnixMilli(startsAtMS)
		}
		return uint64(raw), startsAt.UTC().Truncate(time.Minute), nil
	}
	return s.decodeLegacy(ctx, raw)
}

// decodeLegacy tries the old concatenated encoding: the decimal digits of
// the reference are a 1-5 digit tour id followed by a millisecond
// timestamp. Ambiguous by construction, so the first prefix that names an
// existing tour and yields a plausible timestamp wins. Best-effort only.
func (s *VirtualDepartureService) decodeLegacy(ctx context.Context, raw int64) (uint64, time.Time, error) {
	digits := strconv.FormatInt(raw, 10)
	for prefixLen := 1; prefixLen <= 5 && prefixLen < len(digits); prefixLen++ {
		tourID, err := strconv.ParseUint(digits[:prefixLen], 10, 64)
		if err != nil {
			continue
		}
		ms, err := strconv.ParseInt(digits[prefixLen:], 10, 64)
		if err != nil {
			continue
		}
		startsAt := time.UnixMilli(ms).UTC()
		if !plausibleDeparture(startsAt, s.now()) {
			continue
		}
		ok, err := s.tours.Exists(ctx, tourID)
		if err != nil {
			return 0, time.Time{}, err
		}
		if ok {
			return tourID, startsAt.Truncate(time.Minute), nil
		}
	}
	return 0, time.Time{}, repository.ErrNotFound
}

// plausibleDeparture filters legacy decode candidates to timestamps in a
// window around now; anything outside is a mis-split, not a real slot.
func plausibleDeparture(t, now time.Time) bool {
	return t.After(now.AddDate(-1, 0, 0)) && t.Before(now.AddDate(2, 0, 0))
}

// Resolve maps a client-supplied departure reference to a real departure
// id, materializing a virtual slot when needed. Positive references must
// name an existing row.
func (s *VirtualDepartureService) Resolve(ctx context.Context, ref int64, startsAtMS int64) (uint64, error) {
	if ref > 0 {
		dep, err := s.departures.GetByID(ctx, uint64(ref))
		if err != nil {
			return 0, err
		}
		return dep.ID, nil
	}
	tourID, startsAt, err := s.Decode(ctx, ref, startsAtMS)
	if err != nil {
		return 0, err
	}
	dep, err := s.Materialize(ctx, tourID, startsAt)
	if err != nil {
		return 0, err
	}
	return dep.ID, nil
}

// Materialize converts a (tour, start time) slot into a real departure
// row, idempotently: an existing row at the same minute is returned as
// is. Two concurrent callers racing on the insert both end up observing
// the single row, the loser resolving its duplicate-key error with a
// re-select.
func (s *VirtualDepartureService) Materialize(ctx context.Context, tourID uint64, startsAt time.Time) (*model.Departure, error) {
	startsAt = startsAt.UTC().Truncate(time.Minute)

	tour, err := s.tours.GetByID(ctx, tourID)
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

	existing, err := s.departures.FindByTourAndStartTx(ctx, tx, tour.ID, startsAt)
	if err == nil {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	dep := &model.Departure{
		TourID:     tour.ID,
		StartsAt:   startsAt,
		Capacity:   s.defaultCapacity,
		Modifiable: true,
	}
	if err := s.departures.CreateTx(ctx, tx, dep); err != nil {
		if repository.IsDuplicateKey(err) {
			// Lost the race: the other caller's row is the one.
			_ = tx.Rollback()
			committed = true
			retry, rerr := s.findExisting(ctx, tour.ID, startsAt)
			if rerr != nil {
				return nil, rerr
			}
			return retry, nil
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return dep, nil
}

func (s *VirtualDepartureService) findExisting(ctx context.Context, tourID uint64, startsAt time.Time) (*model.Departure, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	return s.departures.FindByTourAndStartTx(ctx, tx, tourID, startsAt)
}

// Availability returns a departure together with its current seats-taken
// count. The read is not transactional; it serves displays only.
func (s *VirtualDepartureService) Availability(ctx context.Context, departureID uint64) (*model.Departure, uint32, error) {
	dep, err := s.departures.GetByID(ctx, departureID)
	if err != nil {
		return nil, 0, err
	}
	taken, err := s.departures.SeatsTaken(ctx, departureID)
	if err != nil {
		return nil, 0, err
	}
	return dep, taken, nil
}

// Slots lists a tour's bookable departures over the expansion horizon:
// materialized rows first, then virtual slots computed from the
// recurrence rule, excluding any minute that already has a real row.
func (s *VirtualDepartureService) Slots(ctx context.Context, tourID uint64) ([]VirtualSlot, error) {
	tour, err := s.tours.GetByID(ctx, tourID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	real, err := s.departures.ListByTourFrom(ctx, tourID, now, 500)
	if err != nil {
		return nil, err
	}
	slots := make([]VirtualSlot, 0, len(real))
	occupied := make(map[int64]bool, len(real))
	for _, d := range real {
		minute := d.StartsAt.UTC().Truncate(time.Minute)
		occupied[minute.Unix()] = true
		slots = append(slots, VirtualSlot{
			ID:         int64(d.ID),
			TourID:     tourID,
			StartsAt:   minute,
			StartsAtMS: minute.UnixMilli(),
			Capacity:   d.Capacity,
		})
	}

	for _, t := range expandRecurrence(tour, now, now.Add(expansionHorizon)) {
		if occupied[t.Unix()] {
			continue
		}
		slots = append(slots, VirtualSlot{
			ID:         -int64(tourID),
			TourID:     tourID,
			StartsAt:   t,
			StartsAtMS: t.UnixMilli(),
			Capacity:   s.defaultCapacity,
			Virtual:    true,
		})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartsAt.Before(slots[j].StartsAt) })
	return slots, nil
}

// expandRecurrence evaluates a tour's repetition rule from just after
// from through the end of the day containing to, producing
// minute-resolution UTC timestamps. The horizon is day-granular: a slot
// later in to's day is still listed. Daily rules fire every day at the
// configured time; weekly rules only on the configured weekdays
// (0=Sunday). Tours without a usable rule expand to nothing.
func expandRecurrence(tour *model.Tour, from, to time.Time) []time.Time {
	if !tour.Repeats() {
		return nil
	}
	tod, err := time.Parse("15:04", tour.RepeatTime)
	if err != nil {
		return nil
	}
	weekdays := map[time.Weekday]bool{}
	if tour.RepeatType == model.RepeatWeekly {
		for _, f := range strings.Split(tour.RepeatWeekdays, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil || n < 0 || n > 6 {
				continue
			}
			weekdays[time.Weekday(n)] = true
		}
		if len(weekdays) == 0 {
			return nil
		}
	}

	var out []time.Time
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	for day.Before(end) {
		if tour.RepeatType == model.RepeatDaily || weekdays[day.Weekday()] {
			slot := day.Add(time.Duration(tod.Hour())*time.Hour + time.Duration(tod.Minute())*time.Minute)
			if slot.After(from) {
				out = append(out, slot)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}
