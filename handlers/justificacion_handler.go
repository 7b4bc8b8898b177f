package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"asistencia_backend/models"
	"asistencia_backend/services"
)

type JustificacionHandler struct {
	just *services.JustificacionService
}

func NewJustificacionHandler(just *services.JustificacionService) *JustificacionHandler {
	return &JustificacionHandler{just: just}
}

// GET /apoderado/justificaciones/pending?studentId=
func (h *JustificacionHandler) Pending(c echo.Context) error {
	actor := actorFrom(c)
	var filter *uint
	if s := strings.TrimSpace(c.QueryParam("studentId")); s != "" {
		id := uint(atoiOr(s, 0))
		if id == 0 {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_ID"})
		}
		filter = &id
	}

	rows, err := h.just.PendingJustifications(c.Request().Context(), actor.ID, filter)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

// POST /apoderado/justificaciones
func (h *JustificacionHandler) Submit(c echo.Context) error {
	var req services.SubmitJustificacionInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	rec, err := h.just.Submit(c.Request().Context(), actorFrom(c), req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// POST /docente/justificaciones/:id/approve
func (h *JustificacionHandler) Approve(c echo.Context) error {
	return h.review(c, true)
}

// POST /docente/justificaciones/:id/reject
func (h *JustificacionHandler) Reject(c echo.Context) error {
	return h.review(c, false)
}

func (h *JustificacionHandler) review(c echo.Context, approve bool) error {
	id := strings.TrimSpace(c.Param("id"))
	rec, err := h.just.Review(c.Request().Context(), actorFrom(c), id, approve)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// GET /docente/justificaciones?status=PENDING
func (h *JustificacionHandler) ListForReview(c echo.Context) error {
	status := models.ReviewStatus(strings.TrimSpace(c.QueryParam("status")))
	if status == "" {
		status = models.ReviewPending
	}
	if !status.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_STATUS"})
	}

	rows, err := h.just.ListForReview(c.Request().Context(), actorFrom(c), status)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}
