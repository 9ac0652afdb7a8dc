package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-marketplace/internal/pricing"
	"github.com/iliyamo/tour-marketplace/internal/repository"
)

// ReferralHandler covers both sides of the referral program: tourists
// recording QR scans (landlord or apartment), and landlords configuring
// per-tour commissions and reading their earnings.
type ReferralHandler struct {
	Referrals *repository.ReferralRepo
	Users     *repository.UserRepo
	Tours     *repository.TourRepo
}

// NewReferralHandler constructs a ReferralHandler.
func NewReferralHandler(referrals *repository.ReferralRepo, users *repository.UserRepo, tours *repository.TourRepo) *ReferralHandler {
	if referrals == nil || users == nil || tours == nil {
		panic("nil dependency passed to NewReferralHandler")
	}
	return &ReferralHandler{Referrals: referrals, Users: users, Tours: tours}
}

// ScanLandlord handles POST /v1/referrals/landlord/:id. The scan upserts
// the referral row; the latest scan decides quote-time attribution.
func (h *ReferralHandler) ScanLandlord(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	landlordID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid landlord id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Referrals.GetLandlord(ctx, landlordID); err != nil {
		return serviceError(c, err)
	}
	if err := h.Referrals.Upsert(ctx, userID, landlordID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"landlord_id": landlordID})
}

// ScanApartment handles POST /v1/referrals/apartment/:id, starting the
// booking-time attribution window for the scanning user.
func (h *ReferralHandler) ScanApartment(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	apartmentID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid apartment id"})
	}
	ctx := c.Request().Context()
	apt, err := h.Referrals.GetApartment(ctx, apartmentID)
	if err != nil {
		return serviceError(c, err)
	}
	if err := h.Users.SetApartment(ctx, userID, apartmentID); err != nil {
		return serviceError(c, err)
	}
	// Scanning an apartment also counts as scanning its landlord, so the
	// quote path shows the matching discount right away.
	if err := h.Referrals.Upsert(ctx, userID, apt.LandlordID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"apartment_id": apartmentID, "landlord_id": apt.LandlordID})
}

// landlordID resolves the authenticated user's landlord profile, writing
// the error response itself when resolution fails.
func (h *ReferralHandler) landlordID(c echo.Context) (uint64, bool) {
	userID, err := getUserID(c)
	if err != nil {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		return 0, false
	}
	landlordID, err := h.Referrals.LandlordIDForUser(c.Request().Context(), userID)
	if err != nil {
		_ = c.JSON(http.StatusForbidden, echo.Map{"error": "no landlord profile for user"})
		return 0, false
	}
	return landlordID, true
}

// SetCommission handles PUT /v1/landlord/tours/:id/commission with a
// body of {"commission_bp": n}. The value is clamped to the tour's cap
// before being stored.
func (h *ReferralHandler) SetCommission(c echo.Context) error {
	landlordID, ok := h.landlordID(c)
	if !ok {
		return nil
	}
	tourID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tour id"})
	}
	var body struct {
		CommissionBP int64 `json:"commission_bp"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.CommissionBP < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "commission_bp must not be negative"})
	}
	ctx := c.Request().Context()
	tour, err := h.Tours.GetByID(ctx, tourID)
	if err != nil {
		return serviceError(c, err)
	}
	clamped := pricing.ClampCommissionBP(body.CommissionBP, tour.MaxCommissionBP)
	if err := h.Referrals.SetCommission(ctx, landlordID, tourID, clamped); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tour_id": tourID, "commission_bp": clamped})
}

// Earnings handles GET /v1/landlord/earnings, grouped by tour over the
// last 90 days by default.
func (h *ReferralHandler) Earnings(c echo.Context) error {
	landlordID, ok := h.landlordID(c)
	if !ok {
		return nil
	}
	since := time.Now().UTC().AddDate(0, 0, -90)
	if v := c.QueryParam("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid since timestamp"})
		}
		since = t
	}
	rows, err := h.Referrals.Earnings(c.Request().Context(), landlordID, since)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"earnings": rows})
}
