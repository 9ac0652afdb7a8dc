package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-marketplace/internal/model"
	"github.com/iliyamo/tour-marketplace/internal/repository"
	"github.com/iliyamo/tour-marketplace/internal/service"
)

// PublicHandler exposes unauthenticated browse endpoints: tour listings,
// tour details with categories, and departure slots including virtual
// ones expanded from recurrence rules.
type PublicHandler struct {
	Tours   *repository.TourRepo
	Virtual *service.VirtualDepartureService
}

// NewPublicHandler constructs a PublicHandler.
func NewPublicHandler(tours *repository.TourRepo, virtual *service.VirtualDepartureService) *PublicHandler {
	if tours == nil || virtual == nil {
		panic("nil dependency passed to NewPublicHandler")
	}
	return &PublicHandler{Tours: tours, Virtual: virtual}
}

func publicTour(t model.Tour) echo.Map {
	return echo.Map{
		"id":               t.ID,
		"title":            t.Title,
		"description":      t.Description,
		"address":          t.Address,
		"duration_minutes": t.DurationMinutes,
		"cutoff_hours":     t.CutoffHours,
		"repeat_type":      t.RepeatType,
	}
}

// ListTours handles GET /v1/tours with limit/offset paging.
func (h *PublicHandler) ListTours(c echo.Context) error {
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
	tours, err := h.Tours.List(c.Request().Context(), limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	out := make([]echo.Map, 0, len(tours))
	for _, t := range tours {
		out = append(out, publicTour(t))
	}
	return c.JSON(http.StatusOK, echo.Map{"tours": out})
}

// GetTour handles GET /v1/tours/:id and includes the tour's ticket
// categories at list price. Discounted prices are personal and served by
// the authenticated quote endpoint instead.
func (h *PublicHandler) GetTour(c echo.Context) error {
	tourID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tour id"})
	}
	ctx := c.Request().Context()
	t, err := h.Tours.GetByID(ctx, tourID)
	if err != nil {
		return serviceError(c, err)
	}
	cats, err := h.Tours.CategoriesByTour(ctx, tourID)
	if err != nil {
		return serviceError(c, err)
	}
	catOut := make([]echo.Map, 0, len(cats))
	for _, cat := range cats {
		catOut = append(catOut, echo.Map{
			"id":          cat.ID,
			"name":        cat.Name,
			"price_cents": cat.PriceCents,
		})
	}
	out := publicTour(*t)
	out["categories"] = catOut
	return c.JSON(http.StatusOK, out)
}

// ListDepartures handles GET /v1/tours/:id/departures: materialized rows
// plus virtual slots from the recurrence rule over the next 30 days.
// Virtual slots carry a negative id and a starts_at_ms the client passes
// back when booking.
func (h *PublicHandler) ListDepartures(c echo.Context) error {
	tourID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tour id"})
	}
	slots, err := h.Virtual.Slots(c.Request().Context(), tourID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"departures": slots})
}
