// Package service contains the transactional core of the marketplace:
// booking creation and modification under the two-level departure lock,
// quoting, virtual departure materialization and the lifecycle sweeper.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/tour-marketplace/internal/lock"
	"github.com/iliyamo/tour-marketplace/internal/model"
	"github.com/iliyamo/tour-marketplace/internal/pricing"
	q "github.com/iliyamo/tour-marketplace/internal/queue"
	"github.com/iliyamo/tour-marketplace/internal/repository"
)

// apartmentAttributionWindow bounds how long an apartment QR scan keeps
// attributing bookings to the apartment's landlord.
const apartmentAttributionWindow = 14 * 24 * time.Hour

// ItemInput is one requested category line in a booking or quote.
type ItemInput struct {
	CategoryID uint64 `json:"category_id"`
	Qty        uint32 `json:"qty"`
}

// BookingService orchestrates the seat-inventory write paths. Every
// mutation follows the same shape: advisory lock on the departure, then a
// database transaction opening with SELECT ... FOR UPDATE on the
// departure row, then validation against freshly recomputed seats taken,
// then the write. The advisory lock is released on every exit path; the
// row lock alone is sufficient for correctness if Redis is down.
type BookingService struct {
	db         *sql.DB
	locks      *lock.DepartureLock
	departures *repository.DepartureRepo
	tours      *repository.TourRepo
	purchases  *repository.PurchaseRepo
	referrals  *repository.ReferralRepo
	users      *repository.UserRepo
	notifier   Notifier
	now        func() time.Time
}

// NewBookingService wires the booking service. notifier may be nil, in
// which case no events are published.
func NewBookingService(
	db *sql.DB,
	locks *lock.DepartureLock,
	departures *repository.DepartureRepo,
	tours *repository.TourRepo,
	purchases *repository.PurchaseRepo,
	referrals *repository.ReferralRepo,
	users *repository.UserRepo,
	notifier Notifier,
) *BookingService {
	return &BookingService{
		db:         db,
		locks:      locks,
		departures: departures,
		tours:      tours,
		purchases:  purchases,
		referrals:  referrals,
		users:      users,
		notifier:   notifier,
		now:        time.Now,
	}
}

// QuoteLine is one category in a quote with its list and net price.
type QuoteLine struct {
	CategoryID     uint64 `json:"category_id"`
	CategoryName   string `json:"category_name"`
	PriceCents     int64  `json:"price_cents"`
	NetPriceCents  int64  `json:"net_price_cents"`
	Qty            uint32 `json:"qty,omitempty"`
	AmountCents    int64  `json:"amount_cents,omitempty"`
	AmountNetCents int64  `json:"amount_net_cents,omitempty"`
}

// Quote is the priced view of a tour for a specific user, reflecting the
// referral discount they are currently entitled to.
type Quote struct {
	TourID       uint64      `json:"tour_id"`
	LandlordID   *uint64     `json:"landlord_id,omitempty"`
	DiscountBP   int64       `json:"discount_bp"`
	Lines        []QuoteLine `json:"lines"`
	TotalGross   int64       `json:"total_gross_cents"`
	TotalCents   int64       `json:"total_cents"`
	CommissionBP int64       `json:"-"`
}

// QuoteTour prices a tour for a user without touching any locks. The
// quote-time attribution path applies: the landlord the user most
// recently scanned, with that landlord's commission choice for this tour
// clamped to the tour's cap. Items may be empty, in which case only
// per-category net prices are returned.
func (s *BookingService) QuoteTour(ctx context.Context, userID, tourID uint64, items []ItemInput) (*Quote, error) {
	tour, err := s.tours.GetByID(ctx, tourID)
	if err != nil {
		return nil, err
	}
	cats, err := s.tours.CategoriesByTour(ctx, tourID)
	if err != nil {
		return nil, err
	}
	landlordID, commissionBP, err := s.quoteTimeAttribution(ctx, userID, tour)
	if err != nil {
		return nil, err
	}
	quote := &Quote{
		TourID:       tourID,
		LandlordID:   landlordID,
		DiscountBP:   pricing.DiscountBP(tour.MaxCommissionBP, commissionBP),
		CommissionBP: commissionBP,
	}
	byID := make(map[uint64]model.TicketCategory, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
		quote.Lines = append(quote.Lines, QuoteLine{
			CategoryID:    c.ID,
			CategoryName:  c.Name,
			PriceCents:    c.PriceCents,
			NetPriceCents: pricing.DiscountedPriceCents(c.PriceCents, tour.MaxCommissionBP, commissionBP),
		})
	}
	for _, it := range items {
		c, ok := byID[it.CategoryID]
		if !ok || it.Qty == 0 {
			return nil, repository.ErrValidation
		}
		gross, net := pricing.LineAmounts(c.PriceCents, it.Qty, tour.MaxCommissionBP, commissionBP)
		quote.TotalGross += gross
		quote.TotalCents += net
		for i := range quote.Lines {
			if quote.Lines[i].CategoryID == it.CategoryID {
				quote.Lines[i].Qty = it.Qty
				quote.Lines[i].AmountCents = gross
				quote.Lines[i].AmountNetCents = net
			}
		}
	}
	return quote, nil
}

// quoteTimeAttribution resolves the landlord a user is attributed to via
// their latest QR scan and that landlord's clamped commission for the
// tour. No scan, or no commission choice, resolves to commission zero,
// which passes the tour's whole margin to the tourist as discount.
func (s *BookingService) quoteTimeAttribution(ctx context.Context, userID uint64, tour *model.Tour) (*uint64, int64, error) {
	landlordID, err := s.referrals.LastLandlordID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	bp, err := s.chosenCommission(ctx, landlordID, tour)
	if err != nil {
		return nil, 0, err
	}
	return &landlordID, bp, nil
}

// Create books seats on a departure for a tourist. The departure must
// already be materialized; virtual references are resolved by the caller
// first. Returns the committed purchase and the seats remaining after it.
func (s *BookingService) Create(ctx context.Context, userID, departureID uint64, items []ItemInput) (*model.Purchase, uint32, error) {
	if len(items) == 0 {
		return nil, 0, repository.ErrValidation
	}
	// Summed in 64 bits: oversized requests must fail the capacity check,
	// not wrap past it.
	var requested int64
	for _, it := range items {
		if it.Qty == 0 {
			return nil, 0, repository.ErrValidation
		}
		requested += int64(it.Qty)
	}

	h, err := s.locks.Acquire(ctx, departureID)
	if err != nil {
		return nil, 0, err
	}
	defer h.Release(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	dep, err := s.departures.LockForUpdateTx(ctx, tx, departureID)
	if err != nil {
		return nil, 0, err
	}
	tour, err := s.tours.GetByIDTx(ctx, tx, dep.TourID)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	if !dep.Modifiable || !now.Before(dep.CutoffAt(tour.CutoffHours)) {
		return nil, 0, repository.ErrConflict
	}

	cats, err := s.tours.CategoriesByTourTx(ctx, tx, tour.ID)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[uint64]model.TicketCategory, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	for _, it := range items {
		if _, ok := byID[it.CategoryID]; !ok {
			return nil, 0, repository.ErrValidation
		}
	}

	taken, err := s.departures.SeatsTakenTx(ctx, tx, departureID)
	if err != nil {
		return nil, 0, err
	}
	if int64(taken)+requested > int64(dep.Capacity) {
		return nil, 0, repository.ErrConflict
	}
	remaining := dep.Capacity - taken - uint32(requested)

	landlordID, apartmentID, commissionBP, err := s.bookingTimeAttribution(ctx, tx, userID, tour, now)
	if err != nil {
		return nil, 0, err
	}

	purchase := &model.Purchase{
		UserID:       userID,
		DepartureID:  departureID,
		LandlordID:   landlordID,
		ApartmentID:  apartmentID,
		Qty:          uint32(requested),
		CommissionBP: commissionBP,
		Status:       model.StatusPending,
	}
	lines := make([]model.PurchaseItem, 0, len(items))
	for _, it := range items {
		c := byID[it.CategoryID]
		gross, net := pricing.LineAmounts(c.PriceCents, it.Qty, tour.MaxCommissionBP, commissionBP)
		purchase.AmountGrossCents += gross
		purchase.AmountCents += net
		lines = append(lines, model.PurchaseItem{
			CategoryID:  it.CategoryID,
			Qty:         it.Qty,
			AmountCents: net,
		})
	}

	if err := s.purchases.CreateTx(ctx, tx, purchase); err != nil {
		return nil, 0, err
	}
	for i := range lines {
		lines[i].PurchaseID = purchase.ID
	}
	if err := s.purchases.CreateItemsBulkTx(ctx, tx, lines); err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	committed = true

	s.publishCreated(purchase, tour, dep)
	return purchase, remaining, nil
}

// bookingTimeAttribution resolves the referring landlord at booking time.
// A fresh apartment scan (within the attribution window) wins and stays
// stamped on the user, so every booking made inside the window carries
// it; a stale or dangling one is cleared and the quote-time path applies
// instead, so the booking price matches what the quote showed.
func (s *BookingService) bookingTimeAttribution(ctx context.Context, tx *sql.Tx, userID uint64, tour *model.Tour, now time.Time) (landlordID, apartmentID *uint64, commissionBP int64, err error) {
	user, err := s.users.GetByIDTx(ctx, tx, userID)
	if err != nil {
		return nil, nil, 0, err
	}
	if user.ApartmentID != nil && user.ApartmentSetAt != nil {
		if now.Sub(*user.ApartmentSetAt) <= apartmentAttributionWindow {
			llID, err := s.referrals.LandlordByApartment(ctx, *user.ApartmentID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, nil, 0, err
			}
			if err == nil {
				bp, err := s.chosenCommission(ctx, llID, tour)
				if err != nil {
					return nil, nil, 0, err
				}
				return &llID, user.ApartmentID, bp, nil
			}
		}
		// Stale or dangling scan: clear it so it cannot resurface.
		if err := s.users.ClearApartmentTx(ctx, tx, userID); err != nil {
			return nil, nil, 0, err
		}
	}
	llID, bp, err := s.quoteTimeAttribution(ctx, userID, tour)
	if err != nil {
		return nil, nil, 0, err
	}
	return llID, nil, bp, nil
}

func (s *BookingService) chosenCommission(ctx context.Context, landlordID uint64, tour *model.Tour) (int64, error) {
	chosen, err := s.referrals.ChosenCommissionBP(ctx, landlordID, tour.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return pricing.ClampCommissionBP(chosen, tour.MaxCommissionBP), nil
}

// Modify replaces the item set of an existing booking. Only the owner may
// modify, only before the free-cancellation cutoff, and the new quantity
// must fit the capacity net of the booking's own current seats.
// Repricing reuses the commission stored on the purchase, so the terms
// agreed at creation survive later landlord or cap changes. An empty
// item set is a full cancel: the purchase and its items are deleted and
// zeroed totals are returned.
func (s *BookingService) Modify(ctx context.Context, userID, purchaseID uint64, items []ItemInput) (*model.Purchase, error) {
	// Summed in 64 bits, as in Create.
	var requested int64
	for _, it := range items {
		if it.Qty == 0 {
			return nil, repository.ErrValidation
		}
		requested += int64(it.Qty)
	}

	departureID, err := s.purchases.DepartureID(ctx, purchaseID)
	if err != nil {
		return nil, err
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
	purchase, err := s.purchases.LockByIDTx(ctx, tx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.UserID != userID {
		return nil, repository.ErrForbidden
	}
	if purchase.Status == model.StatusRejected {
		return nil, repository.ErrBusinessRule
	}
	tour, err := s.tours.GetByIDTx(ctx, tx, dep.TourID)
	if err != nil {
		return nil, err
	}
	if !dep.Modifiable || !s.now().Before(dep.CutoffAt(tour.CutoffHours)) {
		return nil, repository.ErrConflict
	}

	if len(items) == 0 {
		if err := s.purchases.DeleteTx(ctx, tx, purchaseID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		purchase.Qty = 0
		purchase.AmountGrossCents = 0
		purchase.AmountCents = 0
		return purchase, nil
	}

	cats, err := s.tours.CategoriesByTourTx(ctx, tx, tour.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]model.TicketCategory, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	for _, it := range items {
		if _, ok := byID[it.CategoryID]; !ok {
			return nil, repository.ErrValidation
		}
	}

	taken, err := s.departures.SeatsTakenTx(ctx, tx, departureID)
	if err != nil {
		return nil, err
	}
	// The booking's own seats are being replaced, so they do not count
	// against it.
	if int64(taken)-int64(purchase.Qty)+requested > int64(dep.Capacity) {
		return nil, repository.ErrConflict
	}

	var gross, net int64
	lines := make([]model.PurchaseItem, 0, len(items))
	for _, it := range items {
		c := byID[it.CategoryID]
		g, n := pricing.LineAmounts(c.PriceCents, it.Qty, tour.MaxCommissionBP, purchase.CommissionBP)
		gross += g
		net += n
		lines = append(lines, model.PurchaseItem{
			PurchaseID:  purchaseID,
			CategoryID:  it.CategoryID,
			Qty:         it.Qty,
			AmountCents: n,
		})
	}

	if err := s.purchases.DeleteItemsTx(ctx, tx, purchaseID); err != nil {
		return nil, err
	}
	if err := s.purchases.CreateItemsBulkTx(ctx, tx, lines); err != nil {
		return nil, err
	}
	if err := s.purchases.UpdateTotalsTx(ctx, tx, purchaseID, uint32(requested), gross, net); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	purchase.Qty = uint32(requested)
	purchase.AmountGrossCents = gross
	purchase.AmountCents = net
	return purchase, nil
}

// Cancel deletes a booking, immediately freeing its seats. Only the owner
// may cancel and only before the free-cancellation cutoff.
func (s *BookingService) Cancel(ctx context.Context, userID, purchaseID uint64) error {
	departureID, err := s.purchases.DepartureID(ctx, purchaseID)
	if err != nil {
		return err
	}

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
	purchase, err := s.purchases.LockByIDTx(ctx, tx, purchaseID)
	if err != nil {
		return err
	}
	if purchase.UserID != userID {
		return repository.ErrForbidden
	}
	tour, err := s.tours.GetByIDTx(ctx, tx, dep.TourID)
	if err != nil {
		return err
	}
	if !dep.Modifiable || !s.now().Before(dep.CutoffAt(tour.CutoffHours)) {
		return repository.ErrConflict
	}

	if err := s.purchases.DeleteTx(ctx, tx, purchaseID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Decide applies an agency's confirm/reject decision to a pending
// booking. Re-applying the same decision is a no-op; flipping an already
// decided booking violates the one-way state machine. Bookings on other
// agencies' tours are reported as not found.
func (s *BookingService) Decide(ctx context.Context, agencyID, purchaseID uint64, status string) error {
	if status != model.StatusConfirmed && status != model.StatusRejected {
		return repository.ErrValidation
	}
	dc, err := s.purchases.GetDecisionContext(ctx, purchaseID)
	if err != nil {
		return err
	}
	if dc.AgencyID != agencyID {
		return repository.ErrNotFound
	}
	if dc.Status == status {
		return nil // idempotent re-apply
	}
	if dc.Status != model.StatusPending {
		return repository.ErrBusinessRule
	}
	won, err := s.purchases.UpdateStatus(ctx, purchaseID, status)
	if err != nil {
		return err
	}
	if !won {
		// A concurrent decision landed between the read and the write.
		return repository.ErrBusinessRule
	}

	if s.notifier != nil {
		ev := q.BookingStatusEvent{
			PurchaseID:  dc.PurchaseID,
			UserID:      dc.UserID,
			TourTitle:   dc.TourTitle,
			StartsAt:    dc.StartsAt.UTC().Format(time.RFC3339),
			Qty:         dc.Qty,
			AmountCents: dc.AmountCents,
			Status:      status,
			DecidedAt:   s.now().UTC().Format(time.RFC3339),
		}
		go s.notifier.BookingStatus(context.Background(), ev)
	}
	return nil
}

// MarkViewed flags a booking as opened by agency staff, tenant-scoped.
func (s *BookingService) MarkViewed(ctx context.Context, agencyID, purchaseID uint64) error {
	dc, err := s.purchases.GetDecisionContext(ctx, purchaseID)
	if err != nil {
		return err
	}
	if dc.AgencyID != agencyID {
		return repository.ErrNotFound
	}
	return s.purchases.MarkViewed(ctx, purchaseID)
}

func (s *BookingService) publishCreated(p *model.Purchase, tour *model.Tour, dep *model.Departure) {
	if s.notifier == nil {
		return
	}
	ev := q.BookingCreatedEvent{
		PurchaseID:  p.ID,
		UserID:      p.UserID,
		DepartureID: p.DepartureID,
		TourID:      tour.ID,
		TourTitle:   tour.Title,
		StartsAt:    dep.StartsAt.UTC().Format(time.RFC3339),
		Qty:         p.Qty,
		AmountCents: p.AmountCents,
		CreatedAt:   s.now().UTC().Format(time.RFC3339),
	}
	if p.LandlordID != nil {
		ev.LandlordID = *p.LandlordID
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("booking-publish: recovered: %v", r)
			}
		}()
		s.notifier.BookingCreated(context.Background(), ev)
	}()
}
