package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationDispatchLog is the write-once idempotency record for outbound
// notifications. Key: (student_id, event_type, date). A duplicate trigger for
// the same key is answered from this row without re-sending.
type NotificationDispatchLog struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID uint           `gorm:"uniqueIndex:idx_dispatch_key;not null" json:"student_id"`
	EventType string         `gorm:"uniqueIndex:idx_dispatch_key;size:40;not null" json:"event_type"`
	Date      string         `gorm:"uniqueIndex:idx_dispatch_key;size:10;not null" json:"date"`
	EmailSent bool           `gorm:"not null;default:false" json:"email_sent"`
	SMSSent   bool           `gorm:"not null;default:false" json:"sms_sent"`
	Recipient string         `gorm:"size:120" json:"recipient"` // guardian name, for the audit trail
	Payload   datatypes.JSON `json:"payload"`                   // subject/body snapshot
	CreatedAt time.Time      `json:"created_at"`
}
