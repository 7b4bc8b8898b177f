package models

import "time"

type StudentStatus string

const (
	StudentActive    StudentStatus = "ACTIVE"
	StudentWithdrawn StudentStatus = "WITHDRAWN"
	StudentSuspended StudentStatus = "SUSPENDED"
)

func (s StudentStatus) Valid() bool {
	switch s {
	case StudentActive, StudentWithdrawn, StudentSuspended:
		return true
	default:
		return false
	}
}

type Student struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	InstitutionID uint          `gorm:"index;not null" json:"institution_id"`
	Code          string        `gorm:"size:20;uniqueIndex;not null" json:"code"` // codigo de alumno
	FirstName     string        `gorm:"size:60;not null" json:"first_name"`
	LastName      string        `gorm:"size:60;not null" json:"last_name"`
	Grade         string        `gorm:"size:20;not null" json:"grade"`   // ej. "5to"
	Section       string        `gorm:"size:10;not null" json:"section"` // ej. "B"
	Status        StudentStatus `gorm:"size:20;not null;default:'ACTIVE'" json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
