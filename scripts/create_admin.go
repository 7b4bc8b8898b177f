// scripts/create_admin.go
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"asistencia_backend/config"
	"asistencia_backend/database"
	"asistencia_backend/models"
)

// Bootstraps a default institution plus its first admin account.
func main() {
	cfg := config.Load()
	db := database.Connect(cfg)

	var inst models.Institution
	if err := db.Where("code = ?", "SEDE01").First(&inst).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Fatalf("failed to query institutions: %v", err)
		}
		inst = models.Institution{
			Code: "SEDE01",
			Name: "Sede Principal",
			// lunes a viernes
			WorkingDays: pq.Int64Array{1, 2, 3, 4, 5},
		}
		if err := db.Create(&inst).Error; err != nil {
			log.Fatalf("failed to insert institution: %v", err)
		}
	}

	username := "admin"
	password := "cambiar123"

	var existing models.StaffUser
	if err := db.Where("username = ?", username).First(&existing).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Fatalf("failed to query staff users: %v", err)
		}
	} else {
		fmt.Println("admin user already exists with username:", username)
		os.Exit(0)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	u := models.StaffUser{
		InstitutionID: inst.ID,
		Username:      username,
		Password:      string(hashed),
		Role:          models.RoleAdmin,
		Name:          "Administrador",
	}
	if err := db.Create(&u).Error; err != nil {
		log.Fatalf("failed to insert admin: %v", err)
	}

	fmt.Println("admin user created")
	fmt.Println("  username:", username)
	fmt.Println("  password:", password, "(plain, change it after first login)")
}
