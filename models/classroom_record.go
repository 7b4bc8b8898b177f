package models

import "time"

type ClassStatus string

const (
	ClassPresent   ClassStatus = "PRESENT"
	ClassLate      ClassStatus = "LATE"
	ClassAbsent    ClassStatus = "ABSENT"
	ClassJustified ClassStatus = "JUSTIFIED" // set only by an approved justification
)

func (s ClassStatus) Valid() bool {
	switch s {
	case ClassPresent, ClassLate, ClassAbsent, ClassJustified:
		return true
	default:
		return false
	}
}

type ClassSource string

const (
	SourceGatePreload ClassSource = "GATE_PRELOAD"
	SourceTeacherQR   ClassSource = "TEACHER_QR"
	SourceManual      ClassSource = "MANUAL"
)

func (s ClassSource) Valid() bool {
	switch s {
	case SourceGatePreload, SourceTeacherQR, SourceManual:
		return true
	default:
		return false
	}
}

// ClassroomAttendanceRecord is per-session attendance as confirmed by a
// teacher. Creation against an existing (student, date, session) key must
// fail; corrections go through the explicit correction path.
type ClassroomAttendanceRecord struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	StudentID  uint        `gorm:"uniqueIndex:idx_class_student_date_session;not null" json:"student_id"`
	Date       string      `gorm:"uniqueIndex:idx_class_student_date_session;size:10;not null" json:"date"`
	Session    int         `gorm:"uniqueIndex:idx_class_student_date_session;not null" json:"session"` // period number
	Status     ClassStatus `gorm:"size:20;not null" json:"status"`
	Source     ClassSource `gorm:"size:20;not null" json:"source"`
	RecordTime string      `gorm:"size:5" json:"record_time"` // HH:MM local
	RecordedBy uint        `gorm:"not null" json:"recorded_by"`

	CorrectedBy *uint      `json:"corrected_by,omitempty"`
	CorrectedAt *time.Time `json:"corrected_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
