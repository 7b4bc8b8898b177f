package models

import "time"

// Staff roles. Auxiliaries operate the gate, teachers confirm classroom
// attendance, admins manage settings and accounts.
const (
	RoleAdmin     = "admin"
	RoleTeacher   = "teacher"
	RoleAuxiliary = "auxiliary"
	RoleGuardian  = "guardian"
)

type StaffUser struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	InstitutionID uint      `gorm:"index;not null" json:"institution_id"`
	Username      string    `gorm:"uniqueIndex;size:60;not null" json:"username"`
	Password      string    `gorm:"not null" json:"-"`            // bcrypt hash
	Role          string    `gorm:"size:20;not null" json:"role"` // admin | teacher | auxiliary
	Name          string    `gorm:"size:120" json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
