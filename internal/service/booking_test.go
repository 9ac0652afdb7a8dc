package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tour-marketplace/internal/lock"
	"github.com/iliyamo/tour-marketplace/internal/model"
	"github.com/iliyamo/tour-marketplace/internal/repository"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newBookingFixture(t *testing.T) (*BookingService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewBookingService(
		db,
		lock.New(nil, 0, 0, 0), // advisory lock degraded to no-op
		repository.NewDepartureRepo(db),
		repository.NewTourRepo(db),
		repository.NewPurchaseRepo(db),
		repository.NewReferralRepo(db),
		repository.NewUserRepo(db),
		nil,
	)
	svc.now = func() time.Time { return testNow }
	return svc, mock
}

func departureRow(capacity uint32, modifiable bool, startsAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tour_id", "starts_at", "capacity", "modifiable", "created_at", "updated_at",
	}).AddRow(5, 2, startsAt, capacity, modifiable, testNow, testNow)
}

func tourRow(maxCommissionBP int64, cutoffHours uint32) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "agency_id", "title", "description", "address", "duration_minutes",
		"max_commission_bp", "free_cancellation_cutoff_h", "repeat_type", "repeat_weekdays",
		"repeat_time", "created_at", "updated_at",
	}).AddRow(2, 1, "City Walk", "desc", "Old Town Sq", 120,
		maxCommissionBP, cutoffHours, model.RepeatNone, nil, nil, testNow, testNow)
}

func categoryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tour_id", "name", "price_cents", "created_at"}).
		AddRow(11, 2, "adult", 10000, testNow).
		AddRow(12, 2, "child", 5000, testNow)
}

func userRowNoApartment() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "role", "first", "last", "phone",
		"apartment_id", "apartment_set_at", "created_at",
	}).AddRow(9, "t@example.com", "x", model.RoleTourist, "Ana", "K", "+420", nil, nil, testNow)
}

func userRowWithApartment(setAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "role", "first", "last", "phone",
		"apartment_id", "apartment_set_at", "created_at",
	}).AddRow(9, "t@example.com", "x", model.RoleTourist, "Ana", "K", "+420", 3, setAt, testNow)
}

func TestCreateBooksRemainingSeats(t *testing.T) {
	svc, mock := newBookingFixture(t)
	startsAt := testNow.Add(72 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM departures WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(5)).WillReturnRows(departureRow(5, true, startsAt))
	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectQuery(`SELECT .+ FROM ticket_categories WHERE tour_id = \?`).
		WithArgs(uint64(2)).WillReturnRows(categoryRows())
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(pi\.qty\), 0\)`).
		WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"t"}).AddRow(3))
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \?`).
		WithArgs(uint64(9)).WillReturnRows(userRowNoApartment())
	mock.ExpectQuery(`SELECT landlord_id FROM referrals`).
		WithArgs(uint64(9)).WillReturnRows(sqlmock.NewRows([]string{"landlord_id"}))
	mock.ExpectExec(`INSERT INTO purchases`).
		WillReturnResult(sqlmock.NewResult(77, 1))
	mock.ExpectExec(`INSERT INTO purchase_items`).
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	p, remaining, err := svc.Create(context.Background(), 9, 5, []ItemInput{
		{CategoryID: 11, Qty: 1},
		{CategoryID: 12, Qty: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(77), p.ID)
	assert.Equal(t, model.StatusPending, p.Status)
	assert.Equal(t, uint32(0), remaining)
	assert.Equal(t, uint32(2), p.Qty)
	// No referral resolves to commission zero: the full 10% margin goes
	// to the tourist as discount.
	assert.Equal(t, int64(15000), p.AmountGrossCents)
	assert.Equal(t, int64(13500), p.AmountCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsWhenSeatsInsufficient(t *testing.T) {
	svc, mock := newBookingFixture(t)
	startsAt := testNow.Add(72 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(5)).WillReturnRows(departureRow(5, true, startsAt))
	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectQuery(`SELECT .+ FROM ticket_categories WHERE tour_id = \?`).
		WithArgs(uint64(2)).WillReturnRows(categoryRows())
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(pi\.qty\), 0\)`).
		WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"t"}).AddRow(3))
	mock.ExpectRollback()

	// Capacity 5, 3 taken: 3 more seats must not fit.
	_, _, err := svc.Create(context.Background(), 9, 5, []ItemInput{{CategoryID: 11, Qty: 3}})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsForeignCategory(t *testing.T) {
	svc, mock := newBookingFixture(t)
	startsAt := testNow.Add(72 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(5)).WillReturnRows(departureRow(5, true, startsAt))
	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectQuery(`SELECT .+ FROM ticket_categories WHERE tour_id = \?`).
		WithArgs(uint64(2)).WillReturnRows(categoryRows())
	mock.ExpectRollback()

	_, _, err := svc.Create(context.Background(), 9, 5, []ItemInput{{CategoryID: 999, Qty: 1}})
	assert.ErrorIs(t, err, repository.ErrValidation)
}

func TestCreateRejectsAfterCutoff(t *testing.T) {
	svc, mock := newBookingFixture(t)
	// Departs in 1h with a 24h cutoff: booking window closed.
	startsAt := testNow.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(5)).WillReturnRows(departureRow(5, true, startsAt))
	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectRollback()

	_, _, err := svc.Create(context.Background(), 9, 5, []ItemInput{{CategoryID: 11, Qty: 1}})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := newBookingFixture(t)

	_, _, err := svc.Create(context.Background(), 9, 5, nil)
	assert.ErrorIs(t, err, repository.ErrValidation)

	_, _, err = svc.Create(context.Background(), 9, 5, []ItemInput{{CategoryID: 11, Qty: 0}})
	assert.ErrorIs(t, err, repository.ErrValidation)
}

func TestCreateRejectsWrappingQuantities(t *testing.T) {
	svc, mock := newBookingFixture(t)
	startsAt := testNow.Add(72 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(5)).WillReturnRows(departureRow(5, true, startsAt))
	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectQuery(`SELECT .+ FROM ticket_categories WHERE tour_id = \?`).
		WithArgs(uint64(2)).WillReturnRows(categoryRows())
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(pi\.qty\), 0\)`).
		WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"t"}).AddRow(3))
	mock.ExpectRollback()

	// Two items of 2^31 seats sum past 32 bits. The total must fail the
	// capacity check, not wrap to zero and sail under it.
	_, _, err := svc.Create(context.Background(), 9, 5, []ItemInput{
		{CategoryID: 11, Qty: 1 << 31},
		{CategoryID: 12, Qty: 1 << 31},
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateKeepsFreshApartmentAttribution(t *testing.T) {
	svc, mock := newBookingFixture(t)
	startsAt := testNow.Add(72 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(5)).WillReturnRows(departureRow(5, true, startsAt))
	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectQuery(`SELECT .+ FROM ticket_categories WHERE tour_id = \?`).
		WithArgs(uint64(2)).WillReturnRows(categoryRows())
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(pi\.qty\), 0\)`).
		WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"t"}).AddRow(0))
	// Apartment scanned two days ago, well inside the attribution window.
	// No UPDATE users may run: the stamp stays so every booking inside
	// the window keeps the attribution.
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \?`).
		WithArgs(uint64(9)).WillReturnRows(userRowWithApartment(testNow.Add(-48 * time.Hour)))
	mock.ExpectQuery(`SELECT landlord_id FROM apartments`).
		WithArgs(uint64(3)).WillReturnRows(sqlmock.NewRows([]string{"landlord_id"}).AddRow(4))
	mock.ExpectQuery(`SELECT commission_bp FROM landlord_commissions`).
		WithArgs(uint64(4), uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"commission_bp"}).AddRow(1000))
	mock.ExpectExec(`INSERT INTO purchases`).
		WillReturnResult(sqlmock.NewResult(78, 1))
	mock.ExpectExec(`INSERT INTO purchase_items`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p, _, err := svc.Create(context.Background(), 9, 5, []ItemInput{{CategoryID: 11, Qty: 1}})
	require.NoError(t, err)
	require.NotNil(t, p.LandlordID)
	require.NotNil(t, p.ApartmentID)
	assert.Equal(t, uint64(4), *p.LandlordID)
	assert.Equal(t, uint64(3), *p.ApartmentID)
	// Landlord takes the full 10% commission: no discount.
	assert.Equal(t, int64(10000), p.AmountCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func purchaseRow(userID uint64, qty uint32, commissionBP int64, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "departure_id", "landlord_id", "apartment_id", "qty",
		"amount_gross_cents", "amount_cents", "commission_bp", "status", "viewed",
		"status_changed_at", "created_at",
	}).AddRow(77, userID, 5, nil, nil, qty, 20000, 20000, commissionBP, status, false, nil, testNow)
}

func TestModifyRepricesWithStoredCommission(t *testing.T) {
	svc, mock := newBookingFixture(t)
	startsAt := testNow.Add(72 * time.Hour)

	mock.ExpectQuery(`SELECT departure_id FROM purchases`).
		WithArgs(uint64(77)).WillReturnRows(sqlmock.NewRows([]string{"departure_id"}).AddRow(5))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM departures WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(5)).WillReturnRows(departureRow(5, true, startsAt))
	mock.ExpectQuery(`SELECT .+ FROM purchases WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(77)).WillReturnRows(purchaseRow(9, 2, 0, model.StatusPending))
	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectQuery(`SELECT .+ FROM ticket_categories WHERE tour_id = \?`).
		WithArgs(uint64(2)).WillReturnRows(categoryRows())
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(pi\.qty\), 0\)`).
		WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"t"}).AddRow(4))
	mock.ExpectExec(`DELETE FROM purchase_items`).
		WithArgs(uint64(77)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO purchase_items`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE purchases SET qty = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// 4 taken including this booking's own 2, capacity 5: growing to 3 fits.
	// CommissionBP 0 against a 1000 bp cap: full 10% discount preserved.
	p, err := svc.Modify(context.Background(), 9, 77, []ItemInput{{CategoryID: 11, Qty: 3}})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), p.Qty)
	assert.Equal(t, int64(30000), p.AmountGrossCents)
	assert.Equal(t, int64(27000), p.AmountCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModifyRejectsNonOwner(t *testing.T) {
	svc, mock := newBookingFixture(t)
	startsAt := testNow.Add(72 * time.Hour)

	mock.ExpectQuery(`SELECT departure_id FROM purchases`).
		WithArgs(uint64(77)).WillReturnRows(sqlmock.NewRows([]string{"departure_id"}).AddRow(5))
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(5)).WillReturnRows(departureRow(5, true, startsAt))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(77)).WillReturnRows(purchaseRow(9, 2, 0, model.StatusPending))
	mock.ExpectRollback()

	_, err := svc.Modify(context.Background(), 1000, 77, []ItemInput{{CategoryID: 11, Qty: 1}})
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestModifyRejectsAfterCutoff(t *testing.T) {
	svc, mock := newBookingFixture(t)
	startsAt := testNow.Add(time.Hour) // inside the 24h cutoff

	mock.ExpectQuery(`SELECT departure_id FROM purchases`).
		WithArgs(uint64(77)).WillReturnRows(sqlmock.NewRows([]string{"departure_id"}).AddRow(5))
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(5)).WillReturnRows(departureRow(5, true, startsAt))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(77)).WillReturnRows(purchaseRow(9, 2, 0, model.StatusPending))
	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectRollback()

	_, err := svc.Modify(context.Background(), 9, 77, []ItemInput{{CategoryID: 11, Qty: 1}})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestModifyRejectsWrappingQuantities(t *testing.T) {
	svc, mock := newBookingFixture(t)
	startsAt := testNow.Add(72 * time.Hour)

	mock.ExpectQuery(`SELECT departure_id FROM purchases`).
		WithArgs(uint64(77)).WillReturnRows(sqlmock.NewRows([]string{"departure_id"}).AddRow(5))
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(5)).WillReturnRows(departureRow(5, true, startsAt))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(77)).WillReturnRows(purchaseRow(9, 2, 0, model.StatusPending))
	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectQuery(`SELECT .+ FROM ticket_categories WHERE tour_id = \?`).
		WithArgs(uint64(2)).WillReturnRows(categoryRows())
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(pi\.qty\), 0\)`).
		WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"t"}).AddRow(4))
	mock.ExpectRollback()

	// Same wrap hazard as on create, with the booking's own seats in play.
	_, err := svc.Modify(context.Background(), 9, 77, []ItemInput{
		{CategoryID: 11, Qty: 1 << 31},
		{CategoryID: 12, Qty: 1 << 31},
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModifyEmptyItemsCancels(t *testing.T) {
	svc, mock := newBookingFixture(t)
	startsAt := testNow.Add(72 * time.Hour)

	mock.ExpectQuery(`SELECT departure_id FROM purchases`).
		WithArgs(uint64(77)).WillReturnRows(sqlmock.NewRows([]string{"departure_id"}).AddRow(5))
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(5)).WillReturnRows(departureRow(5, true, startsAt))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(77)).WillReturnRows(purchaseRow(9, 2, 0, model.StatusPending))
	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectExec(`DELETE FROM purchase_items`).
		WithArgs(uint64(77)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM purchases`).
		WithArgs(uint64(77)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := svc.Modify(context.Background(), 9, 77, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), p.Qty)
	assert.Equal(t, int64(0), p.AmountGrossCents)
	assert.Equal(t, int64(0), p.AmountCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelDeletesPurchaseAndItems(t *testing.T) {
	svc, mock := newBookingFixture(t)
	startsAt := testNow.Add(72 * time.Hour)

	mock.ExpectQuery(`SELECT departure_id FROM purchases`).
		WithArgs(uint64(77)).WillReturnRows(sqlmock.NewRows([]string{"departure_id"}).AddRow(5))
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(5)).WillReturnRows(departureRow(5, true, startsAt))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(77)).WillReturnRows(purchaseRow(9, 2, 0, model.StatusPending))
	mock.ExpectQuery(`SELECT .+ FROM tours WHERE id = \?`).
		WithArgs(uint64(2)).WillReturnRows(tourRow(1000, 24))
	mock.ExpectExec(`DELETE FROM purchase_items`).
		WithArgs(uint64(77)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM purchases`).
		WithArgs(uint64(77)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Cancel(context.Background(), 9, 77))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func decisionRows(agencyID uint64, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "agency_id", "status", "amount_cents", "qty", "title", "starts_at",
	}).AddRow(77, 9, agencyID, status, 20000, 2, "City Walk", testNow.Add(72*time.Hour))
}

func TestDecideConfirmsPending(t *testing.T) {
	svc, mock := newBookingFixture(t)

	mock.ExpectQuery(`SELECT p\.id, p\.user_id, t\.agency_id`).
		WithArgs(uint64(77)).WillReturnRows(decisionRows(1, model.StatusPending))
	mock.ExpectExec(`UPDATE purchases SET status = \?`).
		WithArgs(model.StatusConfirmed, uint64(77), model.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.Decide(context.Background(), 1, 77, model.StatusConfirmed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideLosesRaceToConcurrentDecision(t *testing.T) {
	svc, mock := newBookingFixture(t)

	// The context read still sees pending, but the guarded UPDATE matches
	// no row because another decision committed in between.
	mock.ExpectQuery(`SELECT p\.id, p\.user_id, t\.agency_id`).
		WithArgs(uint64(77)).WillReturnRows(decisionRows(1, model.StatusPending))
	mock.ExpectExec(`UPDATE purchases SET status = \?`).
		WithArgs(model.StatusRejected, uint64(77), model.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.Decide(context.Background(), 1, 77, model.StatusRejected)
	assert.ErrorIs(t, err, repository.ErrBusinessRule)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideIsIdempotent(t *testing.T) {
	svc, mock := newBookingFixture(t)

	mock.ExpectQuery(`SELECT p\.id, p\.user_id, t\.agency_id`).
		WithArgs(uint64(77)).WillReturnRows(decisionRows(1, model.StatusConfirmed))

	// Re-applying confirmed to a confirmed booking is a no-op: no UPDATE.
	require.NoError(t, svc.Decide(context.Background(), 1, 77, model.StatusConfirmed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideRejectsFlippingDecidedBooking(t *testing.T) {
	svc, mock := newBookingFixture(t)

	mock.ExpectQuery(`SELECT p\.id, p\.user_id, t\.agency_id`).
		WithArgs(uint64(77)).WillReturnRows(decisionRows(1, model.StatusConfirmed))

	err := svc.Decide(context.Background(), 1, 77, model.StatusRejected)
	assert.ErrorIs(t, err, repository.ErrBusinessRule)
}

func TestDecideHidesForeignTenantBooking(t *testing.T) {
	svc, mock := newBookingFixture(t)

	mock.ExpectQuery(`SELECT p\.id, p\.user_id, t\.agency_id`).
		WithArgs(uint64(77)).WillReturnRows(decisionRows(2, model.StatusPending))

	err := svc.Decide(context.Background(), 1, 77, model.StatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDecideValidatesStatus(t *testing.T) {
	svc, _ := newBookingFixture(t)
	err := svc.Decide(context.Background(), 1, 77, "shipped")
	assert.ErrorIs(t, err, repository.ErrValidation)
}
