package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"asistencia_backend/services"
)

var validate = validator.New()

// serviceError maps engine errors to HTTP responses. Idempotency violations
// come back as 409 "already done" codes rather than generic server errors,
// since retries (double-submitted scans and the like) are expected.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
	case errors.Is(err, services.ErrForbidden):
		return c.JSON(http.StatusForbidden, map[string]any{"error": "FORBIDDEN"})
	case errors.Is(err, services.ErrAlreadyRecorded):
		return c.JSON(http.StatusConflict, map[string]any{"error": "ALREADY_RECORDED"})
	case errors.Is(err, services.ErrDuplicateRecord):
		return c.JSON(http.StatusConflict, map[string]any{"error": "DUPLICATE_RECORD"})
	case errors.Is(err, services.ErrImmutableRecord):
		return c.JSON(http.StatusConflict, map[string]any{"error": "IMMUTABLE_RECORD"})
	case errors.Is(err, services.ErrAlreadyReviewed):
		return c.JSON(http.StatusConflict, map[string]any{"error": "ALREADY_REVIEWED"})
	case errors.Is(err, services.ErrNoPendingAbsence):
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{"error": "NO_PENDING_ABSENCE"})
	case errors.Is(err, services.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	default:
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
}

// actorFrom rebuilds the verified identity context set by the auth middleware.
func actorFrom(c echo.Context) services.Actor {
	uid, _ := c.Get("user_id").(uint)
	role, _ := c.Get("role").(string)
	inst, _ := c.Get("institution_id").(uint)
	return services.Actor{ID: uid, Role: role, InstitutionID: inst}
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func uintParam(c echo.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}
