// Package router wires the HTTP routes of the API onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-marketplace/internal/handler"
	"github.com/iliyamo/tour-marketplace/internal/middleware"
	"github.com/iliyamo/tour-marketplace/internal/model"
)

// Handlers groups everything the router needs to register the full API.
type Handlers struct {
	Auth     *handler.AuthHandler
	Public   *handler.PublicHandler
	Booking  *handler.BookingHandler
	Agency   *handler.AgencyHandler
	Referral *handler.ReferralHandler
}

// Register mounts all routes. Public browse endpoints carry no
// authentication; everything else requires a valid access token plus the
// role the group is scoped to.
func Register(e *echo.Echo, h Handlers, jwtSecret string) {
	e.GET("/healthz", handler.Health)

	// Unauthenticated: account lifecycle and public browsing.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)

	e.GET("/v1/tours", h.Public.ListTours)
	e.GET("/v1/tours/:id", h.Public.GetTour)
	e.GET("/v1/tours/:id/departures", h.Public.ListDepartures)

	// Any authenticated user.
	me := e.Group("/v1")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.GET("/me", h.Auth.Me)

	// Tourist surface: quoting, booking and referral scans.
	tourist := e.Group("/v1")
	tourist.Use(middleware.JWTAuth(jwtSecret))
	tourist.Use(middleware.RequireRole(model.RoleTourist, model.RoleAdmin))
	tourist.POST("/tours/:id/quote", h.Booking.Quote)
	tourist.GET("/departures/:id/availability", h.Booking.Availability)
	tourist.POST("/bookings", h.Booking.Create)
	tourist.GET("/bookings", h.Booking.List)
	tourist.PATCH("/bookings/:id", h.Booking.Modify)
	tourist.DELETE("/bookings/:id", h.Booking.Cancel)
	tourist.POST("/referrals/landlord/:id", h.Referral.ScanLandlord)
	tourist.POST("/referrals/apartment/:id", h.Referral.ScanApartment)

	// Agency surface: schedule management and booking decisions.
	agency := e.Group("/v1/agency")
	agency.Use(middleware.JWTAuth(jwtSecret))
	agency.Use(middleware.RequireRole(model.RoleAgency, model.RoleAdmin))
	agency.POST("/tours/:id/departures", h.Agency.CreateDeparture)
	agency.PATCH("/departures/:id", h.Agency.UpdateDeparture)
	agency.DELETE("/departures/:id", h.Agency.DeleteDeparture)
	agency.GET("/bookings", h.Agency.ListBookings)
	agency.POST("/bookings/:id/decision", h.Agency.DecideBooking)
	agency.POST("/bookings/:id/viewed", h.Agency.ViewBooking)
	agency.GET("/metrics", h.Agency.Metrics)

	// Landlord surface: commission configuration and earnings.
	landlord := e.Group("/v1/landlord")
	landlord.Use(middleware.JWTAuth(jwtSecret))
	landlord.Use(middleware.RequireRole(model.RoleLandlord, model.RoleAdmin))
	landlord.PUT("/tours/:id/commission", h.Referral.SetCommission)
	landlord.GET("/earnings", h.Referral.Earnings)
}
