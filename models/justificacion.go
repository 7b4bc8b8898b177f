package models

import (
	"time"

	"gorm.io/datatypes"
)

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewRejected ReviewStatus = "REJECTED"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	default:
		return false
	}
}

type JustificationType string

const (
	JustificationMedical  JustificationType = "MEDICAL"
	JustificationFamily   JustificationType = "FAMILY"
	JustificationTravel   JustificationType = "TRAVEL"
	JustificationPersonal JustificationType = "PERSONAL"
)

func (t JustificationType) Valid() bool {
	switch t {
	case JustificationMedical, JustificationFamily, JustificationTravel, JustificationPersonal:
		return true
	default:
		return false
	}
}

// Justificacion is a guardian-submitted explanation for one or more
// absence-type classroom records. ReviewedAt/ReviewedBy are set exactly once,
// on first review.
type Justificacion struct {
	ID           string            `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    uint              `gorm:"index;not null" json:"student_id"`
	DateFrom     string            `gorm:"size:10;not null" json:"date_from"` // YYYY-MM-DD
	DateTo       string            `gorm:"size:10;not null" json:"date_to"`
	Type         JustificationType `gorm:"size:20;not null" json:"type"`
	Evidence     datatypes.JSON    `json:"evidence"` // attachment URLs/refs
	SubmittedBy  uint              `gorm:"not null" json:"submitted_by"` // guardian id
	ReviewStatus ReviewStatus      `gorm:"size:20;not null;default:'PENDING'" json:"review_status"`
	ReviewedBy   *uint             `json:"reviewed_by,omitempty"` // staff id
	ReviewedAt   *time.Time        `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JustificacionRecord links a justification to one affected classroom record.
// A classroom record linked here no longer appears in the pending set.
type JustificacionRecord struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	JustificacionID   string    `gorm:"type:uuid;uniqueIndex:idx_just_record;not null" json:"justificacion_id"`
	ClassroomRecordID uint      `gorm:"uniqueIndex:idx_just_record;index;not null" json:"classroom_record_id"`
	CreatedAt         time.Time `json:"created_at"`
}
