package models

import "time"

type GateStatus string

const (
	GateEntered  GateStatus = "ENTERED" // entry captured, cutoff not yet classifiable
	GatePresent  GateStatus = "PRESENT"
	GateLate     GateStatus = "LATE"
	GateDeparted GateStatus = "DEPARTED"
	GateAbsent   GateStatus = "ABSENT" // only ever written by the absence sweep
)

func (s GateStatus) Valid() bool {
	switch s {
	case GateEntered, GatePresent, GateLate, GateDeparted, GateAbsent:
		return true
	default:
		return false
	}
}

// GateAttendanceRecord is the one row per student per day captured at the
// institution entrance. Dates and times are institution-local strings
// (YYYY-MM-DD / HH:MM) so cutoff comparison is a plain string compare.
type GateAttendanceRecord struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	StudentID uint       `gorm:"uniqueIndex:idx_gate_student_date;not null" json:"student_id"`
	Date      string     `gorm:"uniqueIndex:idx_gate_student_date;size:10;not null" json:"date"`
	Status    GateStatus `gorm:"size:20;not null" json:"status"`
	EntryTime string     `gorm:"size:5" json:"entry_time"` // set at most once per day
	ExitTime  string     `gorm:"size:5" json:"exit_time"`

	// Who captured each event; nil for sweep-created ABSENT rows.
	RecordedByEntry *uint `json:"recorded_by_entry,omitempty"`
	RecordedByExit  *uint `json:"recorded_by_exit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
