package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"asistencia_backend/models"
)

// GuardianHandler serves the apoderado-facing reads.
type GuardianHandler struct {
	db *gorm.DB
}

func NewGuardianHandler(db *gorm.DB) *GuardianHandler {
	return &GuardianHandler{db: db}
}

// GET /apoderado/children. The guardian's linked students.
func (h *GuardianHandler) Children(c echo.Context) error {
	actor := actorFrom(c)
	var students []models.Student
	err := h.db.
		Joins("JOIN guardian_students gs ON gs.student_id = students.id").
		Where("gs.guardian_id = ?", actor.ID).
		Order("students.last_name ASC").
		Find(&students).Error
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, students)
}

// GET /apoderado/children/:studentId/attendance?start=&end=. Day-by-day gate
// history for one of the guardian's students.
func (h *GuardianHandler) ChildAttendance(c echo.Context) error {
	actor := actorFrom(c)
	studentID, ok := uintParam(c, "studentId")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_ID"})
	}

	var n int64
	h.db.Model(&models.GuardianStudent{}).
		Where("guardian_id = ? AND student_id = ?", actor.ID, studentID).
		Count(&n)
	if n == 0 {
		return c.JSON(http.StatusForbidden, map[string]any{"error": "FORBIDDEN"})
	}

	tx := h.db.Where("student_id = ?", studentID)
	start, end := c.QueryParam("start"), c.QueryParam("end")
	if start != "" && end != "" {
		tx = tx.Where("date >= ? AND date <= ?", start, end)
	}

	var rows []models.GateAttendanceRecord
	if err := tx.Order("date DESC").Limit(100).Find(&rows).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, rows)
}
