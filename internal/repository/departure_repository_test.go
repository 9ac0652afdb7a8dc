package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatsTakenCountsOnlyActiveStatuses(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(pi\.qty\), 0\)`).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"taken"}).AddRow(3))

	repo := NewDepartureRepo(db)
	taken, err := repo.SeatsTaken(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockForUpdateNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM departures WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tour_id", "starts_at", "capacity", "modifiable", "created_at", "updated_at",
		}))
	mock.ExpectRollback()

	repo := NewDepartureRepo(db)
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = repo.LockForUpdateTx(context.Background(), tx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetUnmodifiableBatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE departures SET modifiable = FALSE WHERE id IN \(\?,\?,\?\)`).
		WithArgs(uint64(1), uint64(2), uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := NewDepartureRepo(db)
	require.NoError(t, repo.SetUnmodifiable(context.Background(), []uint64{1, 2, 3}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUnmodifiableEmptyIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDepartureRepo(db)
	require.NoError(t, repo.SetUnmodifiable(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListModifiableJoinsCutoff(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	starts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT d\.id, d\.starts_at, t\.free_cancellation_cutoff_h`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "starts_at", "cutoff"}).
			AddRow(7, starts, 24).
			AddRow(8, starts.Add(48*time.Hour), 2))

	repo := NewDepartureRepo(db)
	out, err := repo.ListModifiable(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(7), out[0].DepartureID)
	assert.Equal(t, uint32(24), out[0].CutoffHours)
	assert.Equal(t, starts, out[0].StartsAt)
}
