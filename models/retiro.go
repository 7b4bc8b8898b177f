package models

import "time"

type RetiroStatus string

const (
	RetiroPending    RetiroStatus = "PENDING"
	RetiroAuthorized RetiroStatus = "AUTHORIZED"
	RetiroRejected   RetiroStatus = "REJECTED"
	RetiroCompleted  RetiroStatus = "COMPLETED"
)

func (s RetiroStatus) Valid() bool {
	switch s {
	case RetiroPending, RetiroAuthorized, RetiroRejected, RetiroCompleted:
		return true
	default:
		return false
	}
}

// Final reports whether the status freezes the record. Edits and deletes are
// rejected once final; the only transition still allowed out of a final state
// is AUTHORIZED -> COMPLETED when the student actually leaves.
func (s RetiroStatus) Final() bool {
	return s == RetiroAuthorized || s == RetiroRejected || s == RetiroCompleted
}

type PickupType string

const (
	PickupMedical  PickupType = "MEDICAL"
	PickupFamily   PickupType = "FAMILY"
	PickupPersonal PickupType = "PERSONAL"
)

func (t PickupType) Valid() bool {
	switch t {
	case PickupMedical, PickupFamily, PickupPersonal:
		return true
	default:
		return false
	}
}

// Retiro is an early-pickup request: PENDING until a staff decision, then
// frozen.
type Retiro struct {
	ID                 string       `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID          uint         `gorm:"index;not null" json:"student_id"`
	Date               string       `gorm:"size:10;not null;index" json:"date"` // YYYY-MM-DD local
	Time               string       `gorm:"size:5;not null" json:"time"`        // requested pickup HH:MM
	PickupType         PickupType   `gorm:"size:20;not null" json:"pickup_type"`
	Status             RetiroStatus `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	Final              bool         `gorm:"not null;default:false" json:"is_final"`
	RequestedBy        uint         `gorm:"not null" json:"requested_by"` // guardian or staff id, per RequestedByRole
	RequestedByRole    string       `gorm:"size:20;not null" json:"requested_by_role"`
	AuthorizedBy       *uint        `json:"authorized_by,omitempty"` // staff id
	GuardianWhoPicksUp string       `gorm:"size:120" json:"guardian_who_picks_up"`
	Observations       string       `gorm:"type:text" json:"observations"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
