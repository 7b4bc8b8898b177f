package models

import "time"

// Guardian (apoderado) is the notification recipient side of the system.
type Guardian struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:120" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Password  string    `gorm:"not null" json:"-"` // bcrypt hash
	Name      string    `gorm:"size:120;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GuardianStudent links a guardian to one of their students. Exactly one link
// per student should carry Primary=true; that guardian receives notifications.
type GuardianStudent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GuardianID   uint      `gorm:"uniqueIndex:idx_guardian_student;not null" json:"guardian_id"`
	StudentID    uint      `gorm:"uniqueIndex:idx_guardian_student;not null" json:"student_id"`
	Relationship string    `gorm:"size:30;not null" json:"relationship"` // madre/padre/tutor
	Primary      bool      `gorm:"not null;default:false" json:"primary"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
