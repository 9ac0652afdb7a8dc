package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-marketplace/internal/model"
	"github.com/iliyamo/tour-marketplace/internal/repository"
	"github.com/iliyamo/tour-marketplace/internal/service"
)

// AgencyHandler is the staff surface: departure schedule management,
// booking queues and decisions, and simple dashboard counts. Every
// operation is scoped to the agency resolved from the authenticated
// user; resources of other agencies read as not found.
type AgencyHandler struct {
	Users      *repository.UserRepo
	Purchases  *repository.PurchaseRepo
	Departures *service.DepartureService
	Bookings   *service.BookingService
}

// NewAgencyHandler constructs an AgencyHandler.
func NewAgencyHandler(users *repository.UserRepo, purchases *repository.PurchaseRepo, departures *service.DepartureService, bookings *service.BookingService) *AgencyHandler {
	if users == nil || purchases == nil || departures == nil || bookings == nil {
		panic("nil dependency passed to NewAgencyHandler")
	}
	return &AgencyHandler{Users: users, Purchases: purchases, Departures: departures, Bookings: bookings}
}

// agencyID resolves the authenticated user's agency, writing the error
// response itself when resolution fails. A user with the AGENCY role but
// no agency row is a provisioning error reported as 403.
func (h *AgencyHandler) agencyID(c echo.Context) (uint64, bool) {
	userID, err := getUserID(c)
	if err != nil {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		return 0, false
	}
	agencyID, err := h.Users.AgencyIDForUser(c.Request().Context(), userID)
	if err != nil {
		_ = c.JSON(http.StatusForbidden, echo.Map{"error": "no agency for user"})
		return 0, false
	}
	return agencyID, true
}

// CreateDeparture handles POST /v1/agency/tours/:id/departures.
func (h *AgencyHandler) CreateDeparture(c echo.Context) error {
	agencyID, ok := h.agencyID(c)
	if !ok {
		return nil
	}
	tourID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tour id"})
	}
	var body struct {
		StartsAt time.Time `json:"starts_at"`
		Capacity uint32    `json:"capacity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	dep, err := h.Departures.Create(c.Request().Context(), agencyID, tourID, body.StartsAt, body.Capacity)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":        dep.ID,
		"tour_id":   dep.TourID,
		"starts_at": dep.StartsAt,
		"capacity":  dep.Capacity,
	})
}

// UpdateDeparture handles PATCH /v1/agency/departures/:id. Capacity may
// not drop below seats already booked.
func (h *AgencyHandler) UpdateDeparture(c echo.Context) error {
	agencyID, ok := h.agencyID(c)
	if !ok {
		return nil
	}
	departureID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid departure id"})
	}
	var body struct {
		StartsAt *time.Time `json:"starts_at"`
		Capacity *uint32    `json:"capacity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.StartsAt == nil && body.Capacity == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}
	dep, err := h.Departures.Update(c.Request().Context(), agencyID, departureID, body.StartsAt, body.Capacity)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":        dep.ID,
		"starts_at": dep.StartsAt,
		"capacity":  dep.Capacity,
	})
}

// DeleteDeparture handles DELETE /v1/agency/departures/:id. Departures
// with active bookings cannot be deleted.
func (h *AgencyHandler) DeleteDeparture(c echo.Context) error {
	agencyID, ok := h.agencyID(c)
	if !ok {
		return nil
	}
	departureID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid departure id"})
	}
	if err := h.Departures.Delete(c.Request().Context(), agencyID, departureID); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListBookings handles GET /v1/agency/bookings with optional from/to
// date bounds (RFC 3339) and limit/offset paging.
func (h *AgencyHandler) ListBookings(c echo.Context) error {
	agencyID, ok := h.agencyID(c)
	if !ok {
		return nil
	}
	var from, to *time.Time
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from timestamp"})
		}
		from = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to timestamp"})
		}
		to = &t
	}
	limit := 50
	offset := 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	details, err := h.Purchases.ListByAgency(c.Request().Context(), agencyID, from, to, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": details})
}

// DecideBooking handles POST /v1/agency/bookings/:id/decision with a
// body of {"status": "confirmed"|"rejected"}. Decisions are one-way and
// idempotent on re-apply.
func (h *AgencyHandler) DecideBooking(c echo.Context) error {
	agencyID, ok := h.agencyID(c)
	if !ok {
		return nil
	}
	purchaseID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Bookings.Decide(c.Request().Context(), agencyID, purchaseID, body.Status); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": purchaseID, "status": body.Status})
}

// ViewBooking handles POST /v1/agency/bookings/:id/viewed, flagging the
// booking as opened by staff.
func (h *AgencyHandler) ViewBooking(c echo.Context) error {
	agencyID, ok := h.agencyID(c)
	if !ok {
		return nil
	}
	purchaseID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := h.Bookings.MarkViewed(c.Request().Context(), agencyID, purchaseID); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Metrics handles GET /v1/agency/metrics: booking counts per status.
func (h *AgencyHandler) Metrics(c echo.Context) error {
	agencyID, ok := h.agencyID(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()
	out := echo.Map{}
	for _, status := range []string{model.StatusPending, model.StatusConfirmed, model.StatusRejected} {
		n, err := h.Purchases.CountByStatus(ctx, agencyID, status)
		if err != nil {
			return serviceError(c, err)
		}
		out[status] = n
	}
	total, err := h.Purchases.CountByStatus(ctx, agencyID, "")
	if err != nil {
		return serviceError(c, err)
	}
	out["total"] = total
	return c.JSON(http.StatusOK, out)
}
