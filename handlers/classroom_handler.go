package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"asistencia_backend/models"
	"asistencia_backend/services"
)

type ClassroomHandler struct {
	classroom *services.ClassroomService
}

func NewClassroomHandler(classroom *services.ClassroomService) *ClassroomHandler {
	return &ClassroomHandler{classroom: classroom}
}

type confirmReq struct {
	StudentID uint               `json:"student_id" validate:"required"`
	Date      string             `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Session   int                `json:"session" validate:"required,min=1"`
	Status    models.ClassStatus `json:"status" validate:"required"`
	Source    models.ClassSource `json:"source"`
}

// POST /docente/classroom/confirm
func (h *ClassroomHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}
	if req.Source == "" {
		req.Source = models.SourceManual
	}

	rec, err := h.classroom.Confirm(c.Request().Context(), actorFrom(c), req.StudentID, req.Date, req.Session, req.Status, req.Source)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

type scanReq struct {
	StudentID uint   `json:"student_id" validate:"required"`
	Session   int    `json:"session" validate:"required,min=1"`
	Timestamp string `json:"timestamp"` // RFC3339; empty means "now"
}

// POST /docente/classroom/scan. QR scan path; status decided by the
// classroom cutoff.
func (h *ClassroomHandler) Scan(c echo.Context) error {
	var req scanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}
	var at time.Time
	if s := strings.TrimSpace(req.Timestamp); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_TIMESTAMP"})
		}
		at = t
	}

	rec, err := h.classroom.ConfirmScan(c.Request().Context(), actorFrom(c), req.StudentID, req.Session, at)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

type correctReq struct {
	Status models.ClassStatus `json:"status" validate:"required"`
}

// PUT /docente/classroom/:id/correct. The explicit correction path.
func (h *ClassroomHandler) Correct(c echo.Context) error {
	recordID, ok := uintParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_ID"})
	}
	var req correctReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	rec, err := h.classroom.Correct(c.Request().Context(), actorFrom(c), recordID, req.Status)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// GET /docente/classroom/roster?grade=&section=&date=&session=
func (h *ClassroomHandler) Roster(c echo.Context) error {
	grade := strings.TrimSpace(c.QueryParam("grade"))
	section := strings.TrimSpace(c.QueryParam("section"))
	date := strings.TrimSpace(c.QueryParam("date"))
	session := atoiOr(c.QueryParam("session"), 1)
	if grade == "" || section == "" || date == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	rows, err := h.classroom.ListClassFor(c.Request().Context(), actorFrom(c), grade, section, date, session)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}
