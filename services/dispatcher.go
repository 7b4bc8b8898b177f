package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"asistencia_backend/models"
	"asistencia_backend/notifier"
)

// DispatchResult reports what each channel delivered for one idempotency key.
type DispatchResult struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

// PayloadBuilder renders the message once the recipient is resolved. It is
// only invoked when the key has not been dispatched before.
type PayloadBuilder func(student *models.Student, guardian *models.Guardian) (subject, body string)

// Dispatcher is the one-shot notification fan-out. Idempotency key is
// (student, eventType, date); a key that already has a dispatch log row is
// answered from the row without re-sending. Transport failure is a recorded
// fact, never an error to the caller.
type Dispatcher struct {
	db        *gorm.DB
	transport notifier.Transport
}

func NewDispatcher(db *gorm.DB, transport notifier.Transport) *Dispatcher {
	return &Dispatcher{db: db, transport: transport}
}

func (d *Dispatcher) Dispatch(ctx context.Context, studentID uint, eventType, date string, build PayloadBuilder) (DispatchResult, error) {
	if stored, ok, err := d.lookup(ctx, studentID, eventType, date); err != nil {
		return DispatchResult{}, err
	} else if ok {
		return stored, nil
	}

	var student models.Student
	if err := d.db.WithContext(ctx).First(&student, studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DispatchResult{}, ErrNotFound
		}
		return DispatchResult{}, err
	}

	guardian, err := d.primaryGuardian(ctx, studentID)
	if err != nil {
		return DispatchResult{}, err
	}

	// Claim the key before touching the transport: the winner of the insert
	// race is the only caller that attempts delivery, so concurrent
	// dispatchers for the same key cannot double-send.
	row := models.NotificationDispatchLog{
		ID:        uuid.NewString(),
		StudentID: studentID,
		EventType: eventType,
		Date:      date,
	}
	res := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return DispatchResult{}, res.Error
	}
	if res.RowsAffected == 0 {
		stored, ok, err := d.lookup(ctx, studentID, eventType, date)
		if err != nil {
			return DispatchResult{}, err
		}
		if ok {
			return stored, nil
		}
		return DispatchResult{}, nil
	}

	var result DispatchResult
	if guardian == nil {
		log.Printf("[dispatch] student %d has no guardian on file, event %s recorded undelivered", studentID, eventType)
		return result, nil
	}

	subject, body := build(&student, guardian)
	if guardian.Email != "" {
		result.Email = d.transport.Send(ctx, notifier.ChannelEmail, guardian.Email, subject, body)
	}
	if guardian.Phone != "" {
		result.SMS = d.transport.Send(ctx, notifier.ChannelSMS, guardian.Phone, subject, body)
	}
	updates := map[string]any{
		"email_sent": result.Email,
		"sms_sent":   result.SMS,
		"recipient":  guardian.Name,
	}
	if payload, err := json.Marshal(map[string]string{"subject": subject, "body": body}); err == nil {
		updates["payload"] = datatypes.JSON(payload)
	}
	if err := d.db.WithContext(ctx).Model(&models.NotificationDispatchLog{}).
		Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		log.Printf("[dispatch] student %d: recording %s outcome failed: %v", studentID, eventType, err)
	}
	return result, nil
}

func (d *Dispatcher) lookup(ctx context.Context, studentID uint, eventType, date string) (DispatchResult, bool, error) {
	var row models.NotificationDispatchLog
	err := d.db.WithContext(ctx).
		Where("student_id = ? AND event_type = ? AND date = ?", studentID, eventType, date).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DispatchResult{}, false, nil
		}
		return DispatchResult{}, false, err
	}
	return DispatchResult{Email: row.EmailSent, SMS: row.SMSSent}, true, nil
}

// primaryGuardian resolves the notification recipient: the link flagged
// primary, or any linked guardian as fallback. Nil when the student has none.
func (d *Dispatcher) primaryGuardian(ctx context.Context, studentID uint) (*models.Guardian, error) {
	var g models.Guardian
	err := d.db.WithContext(ctx).
		Joins("JOIN guardian_students gs ON gs.guardian_id = guardians.id").
		Where("gs.student_id = ?", studentID).
		Order("gs.\"primary\" DESC, gs.id ASC").
		First(&g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}
