package models

import (
	"time"

	"github.com/lib/pq"
)

// Institution owns every record in the system. Schedule settings live here so
// each sede runs its own cutoffs, tolerance and working days.
type Institution struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Code     string `gorm:"uniqueIndex;size:20;not null" json:"code"`
	Name     string `gorm:"size:120;not null" json:"name"`
	Address  string `gorm:"size:255" json:"address"`
	Timezone string `gorm:"size:40;not null;default:'America/Lima'" json:"timezone"` // IANA name

	// Gate cutoff: entries at or before GateEntryTime+GateToleranceMin count as PRESENT.
	GateEntryTime    string `gorm:"size:5;not null;default:'07:30'" json:"gate_entry_time"` // HH:MM
	GateToleranceMin int    `gorm:"not null;default:10" json:"gate_tolerance_min"`

	// Classroom cutoff is configured independently of the gate's.
	ClassroomEntryTime    string `gorm:"size:5;not null;default:'07:45'" json:"classroom_entry_time"`
	ClassroomToleranceMin int    `gorm:"not null;default:5" json:"classroom_tolerance_min"`

	// SweepCutoff closes gate ingest for the day; the absence sweep only runs
	// after it, and only on WorkingDays (time.Weekday values, 0=Sunday).
	// Stored serialized so the schema is portable to the sqlite test store.
	SweepCutoff string        `gorm:"size:5;not null;default:'09:00'" json:"sweep_cutoff"`
	WorkingDays pq.Int64Array `gorm:"serializer:json" json:"working_days"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
