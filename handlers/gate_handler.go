package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"asistencia_backend/services"
)

type GateHandler struct {
	gate *services.GateService
}

func NewGateHandler(gate *services.GateService) *GateHandler {
	return &GateHandler{gate: gate}
}

type gateEventReq struct {
	StudentID uint   `json:"student_id" validate:"required"`
	Timestamp string `json:"timestamp"` // RFC3339; empty means "now"
}

func (r *gateEventReq) at() (time.Time, bool) {
	s := strings.TrimSpace(r.Timestamp)
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, err == nil
}

// POST /auxiliar/gate/entry
func (h *GateHandler) Entry(c echo.Context) error {
	var req gateEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}
	at, ok := req.at()
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_TIMESTAMP"})
	}

	rec, err := h.gate.RecordEntry(c.Request().Context(), actorFrom(c), req.StudentID, at)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// POST /auxiliar/gate/exit
func (h *GateHandler) Exit(c echo.Context) error {
	var req gateEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}
	at, ok := req.at()
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_TIMESTAMP"})
	}

	rec, err := h.gate.RecordExit(c.Request().Context(), actorFrom(c), req.StudentID, at)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// GET /auxiliar/gate/:studentId?date=YYYY-MM-DD
func (h *GateHandler) Day(c echo.Context) error {
	studentID, ok := uintParam(c, "studentId")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_ID"})
	}
	date := strings.TrimSpace(c.QueryParam("date"))
	if date == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}
	rec, err := h.gate.DayForStudent(c.Request().Context(), actorFrom(c), studentID, date)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}
