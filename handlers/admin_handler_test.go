package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"asistencia_backend/database"
	"asistencia_backend/models"
	"asistencia_backend/services"
)

var handlerDBSeq int64

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:hdl%d?mode=memory&cache=shared&_busy_timeout=5000", atomic.AddInt64(&handlerDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedInstitution(t *testing.T, db *gorm.DB, code string) models.Institution {
	t.Helper()
	inst := models.Institution{Code: code, Name: "Sede " + code, Timezone: "UTC"}
	if err := db.Create(&inst).Error; err != nil {
		t.Fatalf("seed institution %s: %v", code, err)
	}
	return inst
}

func seedStudent(t *testing.T, db *gorm.DB, inst models.Institution, code string) models.Student {
	t.Helper()
	st := models.Student{
		InstitutionID: inst.ID,
		Code:          code,
		FirstName:     "Alumno",
		LastName:      code,
		Grade:         "5to",
		Section:       "B",
		Status:        models.StudentActive,
	}
	if err := db.Create(&st).Error; err != nil {
		t.Fatalf("seed student %s: %v", code, err)
	}
	return st
}

// adminContext builds an echo context carrying the identity values the auth
// middleware would have set.
func adminContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, institutionID uint) echo.Context {
	c := e.NewContext(req, rec)
	c.Set("user_id", uint(1))
	c.Set("role", models.RoleAdmin)
	c.Set("institution_id", institutionID)
	return c
}

func TestListDispatchLogScopedToInstitution(t *testing.T) {
	db := newHandlerDB(t)

	instA := seedInstitution(t, db, "SEDE01")
	instB := seedInstitution(t, db, "SEDE02")
	stA := seedStudent(t, db, instA, "H001")
	stB := seedStudent(t, db, instB, "H002")

	rows := []models.NotificationDispatchLog{
		{ID: "00000000-0000-0000-0000-00000000000a", StudentID: stA.ID, EventType: "gate.entry", Date: "2026-03-02"},
		{ID: "00000000-0000-0000-0000-00000000000b", StudentID: stB.ID, EventType: "gate.entry", Date: "2026-03-02"},
	}
	for _, r := range rows {
		if err := db.Create(&r).Error; err != nil {
			t.Fatalf("seed dispatch row: %v", err)
		}
	}

	h := NewAdminHandler(db, services.NewSettingsProvider(db))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/admin/notifications", nil)
	rec := httptest.NewRecorder()
	if err := h.ListDispatchLog(adminContext(e, req, rec, instA.ID)); err != nil {
		t.Fatalf("ListDispatchLog: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got []models.NotificationDispatchLog
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got) != 1 || got[0].StudentID != stA.ID {
		t.Fatalf("rows = %+v, want only institution %d's row", got, instA.ID)
	}
}
