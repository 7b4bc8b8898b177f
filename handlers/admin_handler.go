package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"asistencia_backend/models"
	"asistencia_backend/services"
)

// AdminHandler covers the management surface: institution settings, students,
// guardians and staff accounts, plus the dispatch log audit listing.
type AdminHandler struct {
	db       *gorm.DB
	settings *services.SettingsProvider
}

func NewAdminHandler(db *gorm.DB, settings *services.SettingsProvider) *AdminHandler {
	return &AdminHandler{db: db, settings: settings}
}

/* ===== Institution settings ===== */

// GET /admin/institution
func (h *AdminHandler) GetInstitution(c echo.Context) error {
	actor := actorFrom(c)
	var inst models.Institution
	if err := h.db.First(&inst, actor.InstitutionID).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
	}
	return c.JSON(http.StatusOK, inst)
}

type institutionPatch struct {
	Name                  *string  `json:"name"`
	Address               *string  `json:"address"`
	Timezone              *string  `json:"timezone"`
	GateEntryTime         *string  `json:"gate_entry_time" validate:"omitempty,datetime=15:04"`
	GateToleranceMin      *int     `json:"gate_tolerance_min" validate:"omitempty,min=0,max=120"`
	ClassroomEntryTime    *string  `json:"classroom_entry_time" validate:"omitempty,datetime=15:04"`
	ClassroomToleranceMin *int     `json:"classroom_tolerance_min" validate:"omitempty,min=0,max=120"`
	SweepCutoff           *string  `json:"sweep_cutoff" validate:"omitempty,datetime=15:04"`
	WorkingDays           *[]int64 `json:"working_days" validate:"omitempty,dive,min=0,max=6"`
}

// PUT /admin/institution
func (h *AdminHandler) UpdateInstitution(c echo.Context) error {
	actor := actorFrom(c)
	var req institutionPatch
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		updates["address"] = strings.TrimSpace(*req.Address)
	}
	if req.Timezone != nil {
		updates["timezone"] = strings.TrimSpace(*req.Timezone)
	}
	if req.GateEntryTime != nil {
		updates["gate_entry_time"] = *req.GateEntryTime
	}
	if req.GateToleranceMin != nil {
		updates["gate_tolerance_min"] = *req.GateToleranceMin
	}
	if req.ClassroomEntryTime != nil {
		updates["classroom_entry_time"] = *req.ClassroomEntryTime
	}
	if req.ClassroomToleranceMin != nil {
		updates["classroom_tolerance_min"] = *req.ClassroomToleranceMin
	}
	if req.SweepCutoff != nil {
		updates["sweep_cutoff"] = *req.SweepCutoff
	}
	if req.WorkingDays != nil {
		updates["working_days"] = pq.Int64Array(*req.WorkingDays)
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	if err := h.db.Model(&models.Institution{}).Where("id = ?", actor.InstitutionID).Updates(updates).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	// Cutoffs are cached in front of the gate; drop the stale entry now.
	h.settings.Invalidate(actor.InstitutionID)

	var inst models.Institution
	if err := h.db.First(&inst, actor.InstitutionID).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
	}
	return c.JSON(http.StatusOK, inst)
}

/* ===== Students ===== */

// GET /admin/students?grade=&section=&q=&page=&size=
func (h *AdminHandler) ListStudents(c echo.Context) error {
	actor := actorFrom(c)
	grade := strings.TrimSpace(c.QueryParam("grade"))
	section := strings.TrimSpace(c.QueryParam("section"))
	q := strings.TrimSpace(c.QueryParam("q"))
	page := atoiOr(c.QueryParam("page"), 1)
	size := atoiOr(c.QueryParam("size"), 50)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 50
	}

	tx := h.db.Model(&models.Student{}).Where("institution_id = ?", actor.InstitutionID)
	if grade != "" {
		tx = tx.Where("grade = ?", grade)
	}
	if section != "" {
		tx = tx.Where("section = ?", section)
	}
	if q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(code) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
	}

	var rows []models.Student
	if err := tx.Order("last_name ASC, first_name ASC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, rows)
}

type studentPayload struct {
	Code      string `json:"code" validate:"required,max=20"`
	FirstName string `json:"first_name" validate:"required,max=60"`
	LastName  string `json:"last_name" validate:"required,max=60"`
	Grade     string `json:"grade" validate:"required,max=20"`
	Section   string `json:"section" validate:"required,max=10"`
	Status    string `json:"status"`
}

// POST /admin/students
func (h *AdminHandler) CreateStudent(c echo.Context) error {
	actor := actorFrom(c)
	var req studentPayload
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}
	status := models.StudentStatus(req.Status)
	if req.Status == "" {
		status = models.StudentActive
	}
	if !status.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_STATUS"})
	}

	rec := models.Student{
		InstitutionID: actor.InstitutionID,
		Code:          strings.TrimSpace(req.Code),
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Grade:         strings.TrimSpace(req.Grade),
		Section:       strings.TrimSpace(req.Section),
		Status:        status,
	}
	if err := h.db.Create(&rec).Error; err != nil {
		return c.JSON(http.StatusConflict, map[string]any{"error": "CODE_EXISTS"})
	}
	return c.JSON(http.StatusCreated, rec)
}

// PUT /admin/students/:id/status
func (h *AdminHandler) UpdateStudentStatus(c echo.Context) error {
	actor := actorFrom(c)
	id, ok := uintParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_ID"})
	}
	var req struct {
		Status models.StudentStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil || !req.Status.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_STATUS"})
	}

	res := h.db.Model(&models.Student{}).
		Where("id = ? AND institution_id = ?", id, actor.InstitutionID).
		Update("status", req.Status)
	if res.Error != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": res.Error.Error()})
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

/* ===== Guardians ===== */

type guardianPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"max=20"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,max=120"`
}

// POST /admin/guardians
func (h *AdminHandler) CreateGuardian(c echo.Context) error {
	var req guardianPayload
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	rec := models.Guardian{
		Email:    strings.TrimSpace(strings.ToLower(req.Email)),
		Phone:    strings.TrimSpace(req.Phone),
		Password: string(hash),
		Name:     strings.TrimSpace(req.Name),
	}
	if err := h.db.Create(&rec).Error; err != nil {
		return c.JSON(http.StatusConflict, map[string]any{"error": "EMAIL_EXISTS"})
	}
	return c.JSON(http.StatusCreated, rec)
}

type linkPayload struct {
	GuardianID   uint   `json:"guardian_id" validate:"required"`
	StudentID    uint   `json:"student_id" validate:"required"`
	Relationship string `json:"relationship" validate:"required,max=30"`
	Primary      bool   `json:"primary"`
}

// POST /admin/guardians/link
func (h *AdminHandler) LinkGuardian(c echo.Context) error {
	actor := actorFrom(c)
	var req linkPayload
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	var student models.Student
	if err := h.db.First(&student, req.StudentID).Error; err != nil || student.InstitutionID != actor.InstitutionID {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
	}

	rec := models.GuardianStudent{
		GuardianID:   req.GuardianID,
		StudentID:    req.StudentID,
		Relationship: strings.TrimSpace(req.Relationship),
		Primary:      req.Primary,
	}
	if err := h.db.Create(&rec).Error; err != nil {
		return c.JSON(http.StatusConflict, map[string]any{"error": "LINK_EXISTS"})
	}
	return c.JSON(http.StatusCreated, rec)
}

/* ===== Staff accounts ===== */

type staffPayload struct {
	Username string `json:"username" validate:"required,max=60"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin teacher auxiliary"`
	Name     string `json:"name" validate:"max=120"`
}

// POST /admin/staff
func (h *AdminHandler) CreateStaff(c echo.Context) error {
	actor := actorFrom(c)
	var req staffPayload
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	rec := models.StaffUser{
		InstitutionID: actor.InstitutionID,
		Username:      strings.TrimSpace(req.Username),
		Password:      string(hash),
		Role:          req.Role,
		Name:          strings.TrimSpace(req.Name),
	}
	if err := h.db.Create(&rec).Error; err != nil {
		return c.JSON(http.StatusConflict, map[string]any{"error": "USERNAME_EXISTS"})
	}
	return c.JSON(http.StatusCreated, rec)
}

/* ===== Dispatch log ===== */

// GET /admin/notifications?studentId=&date=&event=
// Scoped to the admin's own institution through the student join.
func (h *AdminHandler) ListDispatchLog(c echo.Context) error {
	actor := actorFrom(c)
	tx := h.db.Model(&models.NotificationDispatchLog{}).
		Joins("JOIN students st ON st.id = notification_dispatch_logs.student_id").
		Where("st.institution_id = ?", actor.InstitutionID)
	if s := strings.TrimSpace(c.QueryParam("studentId")); s != "" {
		tx = tx.Where("notification_dispatch_logs.student_id = ?", s)
	}
	if d := strings.TrimSpace(c.QueryParam("date")); d != "" {
		tx = tx.Where("notification_dispatch_logs.date = ?", d)
	}
	if e := strings.TrimSpace(c.QueryParam("event")); e != "" {
		tx = tx.Where("notification_dispatch_logs.event_type = ?", e)
	}

	var rows []models.NotificationDispatchLog
	if err := tx.Order("notification_dispatch_logs.created_at DESC").Limit(200).Find(&rows).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, rows)
}
