package routes

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"asistencia_backend/config"
	"asistencia_backend/handlers"
	"asistencia_backend/middlewares"
	"asistencia_backend/models"
	"asistencia_backend/notifier"
	"asistencia_backend/services"
)

// Engine bundles the constructed services so cmd can share them with the
// scheduled sweep job.
type Engine struct {
	Settings  *services.SettingsProvider
	Gate      *services.GateService
	Classroom *services.ClassroomService
	Sweep     *services.SweepService
	Retiro    *services.RetiroService
	Just      *services.JustificacionService
}

// Register wires services, handlers and all HTTP routes.
func Register(e *echo.Echo, db *gorm.DB, cfg *config.Config, transport notifier.Transport) *Engine {
	// ===== Services =====
	settings := services.NewSettingsProvider(db)
	dispatcher := services.NewDispatcher(db, transport)
	gate := services.NewGateService(db, settings, dispatcher)
	classroom := services.NewClassroomService(db, settings, dispatcher)
	sweep := services.NewSweepService(db, settings, dispatcher)
	retiro := services.NewRetiroService(db, settings, dispatcher, gate)
	just := services.NewJustificacionService(db, dispatcher)

	// ===== Handlers =====
	auth := handlers.NewAuthHandler(db, cfg.JWTSecret)
	gh := handlers.NewGateHandler(gate)
	ch := handlers.NewClassroomHandler(classroom)
	rh := handlers.NewRetiroHandler(retiro)
	jh := handlers.NewJustificacionHandler(just)
	sh := handlers.NewSweepHandler(sweep)
	ah := handlers.NewAdminHandler(db, settings)
	gph := handlers.NewGuardianHandler(db)

	// ===== Public =====
	e.GET("/healthz", handlers.Health)
	e.POST("/auth/staff/login", auth.StaffLogin)
	e.POST("/auth/apoderado/login", auth.GuardianLogin)

	authMW := middlewares.RequireAuth(cfg.JWTSecret)

	// ===== Auxiliary (gate) =====
	aux := e.Group("/auxiliar", authMW, middlewares.RequireRole(models.RoleAuxiliary, models.RoleAdmin))
	aux.POST("/gate/entry", gh.Entry)
	aux.POST("/gate/exit", gh.Exit)
	aux.GET("/gate/:studentId", gh.Day)

	// ===== Teacher =====
	teacher := e.Group("/docente", authMW, middlewares.RequireRole(models.RoleTeacher, models.RoleAdmin))
	teacher.GET("/classroom/roster", ch.Roster)
	teacher.POST("/classroom/confirm", ch.Confirm)
	teacher.POST("/classroom/scan", ch.Scan)
	teacher.PUT("/classroom/:id/correct", ch.Correct)

	teacher.POST("/retiros/:id/authorize", rh.Authorize)
	teacher.POST("/retiros/:id/reject", rh.Reject)
	teacher.POST("/retiros/:id/complete", rh.Complete)
	teacher.GET("/retiros/student/:studentId", rh.ListForStudent)

	teacher.GET("/justificaciones", jh.ListForReview)
	teacher.POST("/justificaciones/:id/approve", jh.Approve)
	teacher.POST("/justificaciones/:id/reject", jh.Reject)

	// Retiros created at reception on a guardian's behalf.
	teacher.POST("/retiros", rh.Create)
	teacher.PATCH("/retiros/:id", rh.Edit)
	teacher.DELETE("/retiros/:id", rh.Delete)

	// ===== Guardian =====
	guardian := e.Group("/apoderado", authMW, middlewares.RequireRole(models.RoleGuardian))
	guardian.GET("/children", gph.Children)
	guardian.GET("/children/:studentId/attendance", gph.ChildAttendance)
	guardian.GET("/justificaciones/pending", jh.Pending)
	guardian.POST("/justificaciones", jh.Submit)
	guardian.POST("/retiros", rh.Create)
	guardian.PATCH("/retiros/:id", rh.Edit)
	guardian.DELETE("/retiros/:id", rh.Delete)
	guardian.GET("/retiros/student/:studentId", rh.ListForStudent)

	// ===== Admin =====
	admin := e.Group("/admin", authMW, middlewares.RequireRole(models.RoleAdmin))
	admin.GET("/institution", ah.GetInstitution)
	admin.PUT("/institution", ah.UpdateInstitution)
	admin.GET("/students", ah.ListStudents)
	admin.POST("/students", ah.CreateStudent)
	admin.PUT("/students/:id/status", ah.UpdateStudentStatus)
	admin.POST("/guardians", ah.CreateGuardian)
	admin.POST("/guardians/link", ah.LinkGuardian)
	admin.POST("/staff", ah.CreateStaff)
	admin.POST("/sweep/run", sh.Run)
	admin.GET("/notifications", ah.ListDispatchLog)

	return &Engine{
		Settings:  settings,
		Gate:      gate,
		Classroom: classroom,
		Sweep:     sweep,
		Retiro:    retiro,
		Just:      just,
	}
}
