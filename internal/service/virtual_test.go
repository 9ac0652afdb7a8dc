package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tour-marketplace/internal/model"
	"github.com/iliyamo/tour-marketplace/internal/repository"
)

func newVirtualFixture(t *testing.T) (*VirtualDepartureService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewVirtualDepartureService(db, repository.NewTourRepo(db), repository.NewDepartureRepo(db), 10)
	svc.now = func() time.Time { return testNow }
	return svc, mock
}

func TestDecodeNegativeTourID(t *testing.T) {
	svc, mock := newVirtualFixture(t)
	slot := testNow.Add(48 * time.Hour).Truncate(time.Minute)

	mock.ExpectQuery(`SELECT 1 FROM tours WHERE id = \?`).
		WithArgs(uint64(42)).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	tourID, startsAt, err := svc.Decode(context.Background(), -42, slot.UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), tourID)
	assert.Equal(t, slot, startsAt)
}

func TestDecodeDefaultsToNow(t *testing.T) {
	svc, mock := newVirtualFixture(t)

	mock.ExpectQuery(`SELECT 1 FROM tours WHERE id = \?`).
		WithArgs(uint64(42)).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	_, startsAt, err := svc.Decode(context.Background(), -42, 0)
	require.NoError(t, err)
	assert.Equal(t, testNow.Truncate(time.Minute), startsAt)
}

func TestDecodeLegacyConcatenatedFormat(t *testing.T) {
	svc, mock := newVirtualFixture(t)

	// Legacy links concatenate tour id digits with a ms timestamp:
	// tour 7 + ms(2026-08-15 10:00 UTC). The full number is not a tour id.
	slot := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	legacy := -(7_000_000_000_000_000 + slot.UnixMilli())
	mock.ExpectQuery(`SELECT 1 FROM tours WHERE id = \?`).
		WithArgs(uint64(-legacy)).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(`SELECT 1 FROM tours WHERE id = \?`).
		WithArgs(uint64(7)).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	tourID, startsAt, err := svc.Decode(context.Background(), legacy, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), tourID)
	assert.Equal(t, slot.Truncate(time.Minute), startsAt)
}

func TestDecodeRejectsPositiveRef(t *testing.T) {
	svc, _ := newVirtualFixture(t)
	_, _, err := svc.Decode(context.Background(), 42, 0)
	assert.ErrorIs(t, err, repository.ErrValidation)
}

func TestMaterializeReturnsExistingRow(t *testing.T) {
	svc, mock := newVirtualFixture(t)
	slot := testNow.Add(48 * time.Hour).Truncate(time.Minute)

	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM departures WHERE tour_id = \? AND starts_at = \?`).
		WithArgs(uint64(2), slot).WillReturnRows(departureRow(10, true, slot))
	mock.ExpectCommit()

	dep, err := svc.Materialize(context.Background(), 2, slot)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), dep.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterializeInsertsNewRow(t *testing.T) {
	svc, mock := newVirtualFixture(t)
	slot := testNow.Add(48 * time.Hour).Truncate(time.Minute)

	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM departures WHERE tour_id = \? AND starts_at = \?`).
		WithArgs(uint64(2), slot).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tour_id", "starts_at", "capacity", "modifiable", "created_at", "updated_at",
		}))
	mock.ExpectExec(`INSERT INTO departures`).
		WithArgs(uint64(2), slot, uint32(10), true).
		WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectQuery(`SELECT created_at, updated_at FROM departures`).
		WithArgs(uint64(31)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(testNow, testNow))
	mock.ExpectCommit()

	dep, err := svc.Materialize(context.Background(), 2, slot)
	require.NoError(t, err)
	assert.Equal(t, uint64(31), dep.ID)
	assert.True(t, dep.Modifiable)
	assert.Equal(t, uint32(10), dep.Capacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterializeUnknownTour(t *testing.T) {
	svc, mock := newVirtualFixture(t)

	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(99)).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Materialize(context.Background(), 99, testNow)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestExpandRecurrenceDaily(t *testing.T) {
	tour := &model.Tour{RepeatType: model.RepeatDaily, RepeatTime: "09:30"}
	from := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	out := expandRecurrence(tour, from, from.Add(3*24*time.Hour))
	require.Len(t, out, 3)
	assert.Equal(t, time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC), out[0])
	assert.Equal(t, time.Date(2026, 8, 4, 9, 30, 0, 0, time.UTC), out[2])
}

func TestExpandRecurrenceWeekly(t *testing.T) {
	// 0=Sunday, 6=Saturday. Aug 1 2026 is a Saturday.
	tour := &model.Tour{RepeatType: model.RepeatWeekly, RepeatWeekdays: "0,6", RepeatTime: "18:00"}
	from := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	out := expandRecurrence(tour, from, from.Add(7*24*time.Hour))
	require.Len(t, out, 3) // Sat 1st evening, Sun 2nd, Sat 8th
	assert.Equal(t, time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC), out[0])
	assert.Equal(t, time.Date(2026, 8, 2, 18, 0, 0, 0, time.UTC), out[1])
	assert.Equal(t, time.Date(2026, 8, 8, 18, 0, 0, 0, time.UTC), out[2])
}

func TestExpandRecurrenceNone(t *testing.T) {
	tour := &model.Tour{RepeatType: model.RepeatNone}
	assert.Empty(t, expandRecurrence(tour, testNow, testNow.Add(30*24*time.Hour)))
}
