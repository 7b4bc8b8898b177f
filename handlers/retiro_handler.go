package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"asistencia_backend/services"
)

type RetiroHandler struct {
	retiro *services.RetiroService
}

func NewRetiroHandler(retiro *services.RetiroService) *RetiroHandler {
	return &RetiroHandler{retiro: retiro}
}

// POST /retiros
func (h *RetiroHandler) Create(c echo.Context) error {
	var req services.CreateRetiroInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	rec, err := h.retiro.Create(c.Request().Context(), actorFrom(c), req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

type authorizeReq struct {
	Observations string `json:"observations"`
}

// POST /docente/retiros/:id/authorize
func (h *RetiroHandler) Authorize(c echo.Context) error {
	return h.decide(c, true)
}

// POST /docente/retiros/:id/reject
func (h *RetiroHandler) Reject(c echo.Context) error {
	return h.decide(c, false)
}

func (h *RetiroHandler) decide(c echo.Context, approve bool) error {
	id := strings.TrimSpace(c.Param("id"))
	var req authorizeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}

	rec, err := h.retiro.Authorize(c.Request().Context(), actorFrom(c), id, approve, strings.TrimSpace(req.Observations))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// POST /docente/retiros/:id/complete
func (h *RetiroHandler) Complete(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	rec, err := h.retiro.Complete(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// PATCH /retiros/:id
func (h *RetiroHandler) Edit(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	var patch services.RetiroPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}

	rec, err := h.retiro.Edit(c.Request().Context(), actorFrom(c), id, patch)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// DELETE /retiros/:id
func (h *RetiroHandler) Delete(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.retiro.Delete(c.Request().Context(), actorFrom(c), id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

// GET /retiros/student/:studentId
func (h *RetiroHandler) ListForStudent(c echo.Context) error {
	studentID, ok := uintParam(c, "studentId")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_ID"})
	}
	rows, err := h.retiro.ListForStudent(c.Request().Context(), actorFrom(c), studentID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}
