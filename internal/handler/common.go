// Package handler defines the HTTP handlers of the marketplace API.
// Handlers translate between the JSON surface and the service layer;
// business decisions live in internal/service and the repositories.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-marketplace/internal/lock"
	"github.com/iliyamo/tour-marketplace/internal/repository"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// serviceError translates service-layer sentinel errors into structured
// JSON responses. Lock contention is reported as a retryable 409,
// distinct from hard capacity conflicts which will not self-resolve.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, lock.ErrContended):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "retryable": true})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, repository.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed"})
	case errors.Is(err, repository.ErrBusinessRule):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "business rule violation"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}

func nowUTC() time.Time { return time.Now().UTC() }

func hoursDuration(h uint32) time.Duration { return time.Duration(h) * time.Hour }

// pathID parses a positive uint64 path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
