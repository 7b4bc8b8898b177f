package database

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"asistencia_backend/config"
	"asistencia_backend/models"
)

// Connect opens the database and migrates the schema. A DB that is not up
// yet kills the process immediately.
func Connect(cfg *config.Config) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		// Unique-key races surface as gorm.ErrDuplicatedKey so the services
		// can answer "already done" instead of a generic failure.
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

// Migrate creates/updates all tables. The unique indexes declared on the
// models are the concurrency story: gate rows per (student, date), classroom
// rows per (student, date, session), dispatch log rows per (student, event,
// date).
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Institution{},
		&models.Student{},
		&models.Guardian{},
		&models.GuardianStudent{},
		&models.StaffUser{},
		&models.GateAttendanceRecord{},
		&models.ClassroomAttendanceRecord{},
		&models.Retiro{},
		&models.Justificacion{},
		&models.JustificacionRecord{},
		&models.NotificationDispatchLog{},
	)
}
