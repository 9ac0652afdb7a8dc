package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-marketplace/internal/repository"
	"github.com/iliyamo/tour-marketplace/internal/service"
)

// BookingHandler is the tourist-facing booking surface: quote, create,
// modify, cancel and list. All methods assume JWT authentication and
// role validation already ran.
type BookingHandler struct {
	Bookings  *service.BookingService
	Virtual   *service.VirtualDepartureService
	Purchases *repository.PurchaseRepo
}

// NewBookingHandler constructs a BookingHandler. All dependencies must be
// non-nil.
func NewBookingHandler(bookings *service.BookingService, virtual *service.VirtualDepartureService, purchases *repository.PurchaseRepo) *BookingHandler {
	if bookings == nil || virtual == nil || purchases == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, Virtual: virtual, Purchases: purchases}
}

// Quote handles POST /v1/tours/:id/quote. It prices the given items (or
// just the categories when items are omitted) for the authenticated
// tourist, reflecting their current referral discount.
func (h *BookingHandler) Quote(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	tourID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tour id"})
	}
	var body struct {
		Items []service.ItemInput `json:"items"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	quote, err := h.Bookings.QuoteTour(c.Request().Context(), userID, tourID, body.Items)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}

// Create handles POST /v1/bookings. departure_id may be negative for a
// virtual slot, in which case starts_at_ms carries the slot timestamp;
// the slot is materialized into a real departure before booking.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		DepartureID int64               `json:"departure_id"`
		StartsAtMS  int64               `json:"starts_at_ms"`
		Items       []service.ItemInput `json:"items"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.DepartureID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "departure_id is required"})
	}
	if len(body.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "items is required"})
	}

	ctx := c.Request().Context()
	departureID, err := h.Virtual.Resolve(ctx, body.DepartureID, body.StartsAtMS)
	if err != nil {
		return serviceError(c, err)
	}
	p, remaining, err := h.Bookings.Create(ctx, userID, departureID, body.Items)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":                 p.ID,
		"departure_id":       p.DepartureID,
		"qty":                p.Qty,
		"amount_gross_cents": p.AmountGrossCents,
		"amount_cents":       p.AmountCents,
		"status":             p.Status,
		"seats_remaining":    remaining,
	})
}

// Modify handles PATCH /v1/bookings/:id, replacing the booking's items.
func (h *BookingHandler) Modify(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	purchaseID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		Items []service.ItemInput `json:"items"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	p, err := h.Bookings.Modify(c.Request().Context(), userID, purchaseID, body.Items)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":                 p.ID,
		"qty":                p.Qty,
		"amount_gross_cents": p.AmountGrossCents,
		"amount_cents":       p.AmountCents,
		"status":             p.Status,
	})
}

// Cancel handles DELETE /v1/bookings/:id. Cancellation deletes the
// booking and frees its seats immediately.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	purchaseID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := h.Bookings.Cancel(c.Request().Context(), userID, purchaseID); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// List handles GET /v1/bookings for the authenticated tourist. Each row
// carries a cancellable flag so the front-end knows whether to offer
// modification, computed against the free-cancellation cutoff.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Purchases.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	now := nowUTC()
	for i := range details {
		cutoff := details[i].StartsAt.Add(-hoursDuration(details[i].CutoffHours))
		details[i].Cancellable = now.Before(cutoff)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": details})
}

// Availability handles GET /v1/departures/:id/availability. The :id may
// be a negative virtual reference; the slot is materialized on first
// interaction so the answer reflects a real row.
func (h *BookingHandler) Availability(c echo.Context) error {
	raw := c.Param("id")
	ref, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ref == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid departure id"})
	}
	var startsAtMS int64
	if v := c.QueryParam("starts_at_ms"); v != "" {
		startsAtMS, _ = strconv.ParseInt(v, 10, 64)
	}

	ctx := c.Request().Context()
	departureID, err := h.Virtual.Resolve(ctx, ref, startsAtMS)
	if err != nil {
		return serviceError(c, err)
	}
	dep, taken, err := h.Virtual.Availability(ctx, departureID)
	if err != nil {
		return serviceError(c, err)
	}
	var remaining uint32
	if dep.Capacity > taken {
		remaining = dep.Capacity - taken
	}
	return c.JSON(http.StatusOK, echo.Map{
		"departure_id": dep.ID,
		"starts_at":    dep.StartsAt,
		"capacity":     dep.Capacity,
		"seats_taken":  taken,
		"remaining":    remaining,
		"modifiable":   dep.Modifiable,
	})
}
