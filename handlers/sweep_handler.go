package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"asistencia_backend/services"
)

type SweepHandler struct {
	sweep *services.SweepService
}

func NewSweepHandler(sweep *services.SweepService) *SweepHandler {
	return &SweepHandler{sweep: sweep}
}

// POST /admin/sweep/run?asOf=RFC3339. Manual trigger; the scheduled job
// calls the same service. Safe to re-run: preconditions and per-student
// existence checks make the sweep idempotent.
func (h *SweepHandler) Run(c echo.Context) error {
	actor := actorFrom(c)

	asOf := time.Now()
	if s := strings.TrimSpace(c.QueryParam("asOf")); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_TIMESTAMP"})
		}
		asOf = t
	}

	res, err := h.sweep.RunSweep(c.Request().Context(), actor.InstitutionID, asOf)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
