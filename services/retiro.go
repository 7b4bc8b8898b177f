package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"gorm.io/gorm"

	"asistencia_backend/models"
)

// Retiro lifecycle events. PENDING is the only mutable state; authorize and
// reject freeze the record, complete is the single transition allowed out of
// AUTHORIZED (the student actually leaving). No path returns to PENDING.
const (
	retiroEvAuthorize = "authorize"
	retiroEvReject    = "reject"
	retiroEvComplete  = "complete"
)

func retiroMachine(current models.RetiroStatus) *fsm.FSM {
	return fsm.NewFSM(
		string(current),
		fsm.Events{
			{Name: retiroEvAuthorize, Src: []string{string(models.RetiroPending)}, Dst: string(models.RetiroAuthorized)},
			{Name: retiroEvReject, Src: []string{string(models.RetiroPending)}, Dst: string(models.RetiroRejected)},
			{Name: retiroEvComplete, Src: []string{string(models.RetiroAuthorized)}, Dst: string(models.RetiroCompleted)},
		},
		fsm.Callbacks{},
	)
}

// RetiroService drives early-pickup requests from creation through
// authorization to completion.
type RetiroService struct {
	db         *gorm.DB
	settings   *SettingsProvider
	dispatcher *Dispatcher
	gate       *GateService
	now        func() time.Time
}

func NewRetiroService(db *gorm.DB, settings *SettingsProvider, dispatcher *Dispatcher, gate *GateService) *RetiroService {
	return &RetiroService{db: db, settings: settings, dispatcher: dispatcher, gate: gate, now: time.Now}
}

func (s *RetiroService) WithClock(now func() time.Time) *RetiroService {
	s.now = now
	return s
}

type CreateRetiroInput struct {
	StudentID          uint              `json:"student_id" validate:"required"`
	Date               string            `json:"date" validate:"required,datetime=2006-01-02"`
	Time               string            `json:"time" validate:"required,datetime=15:04"`
	PickupType         models.PickupType `json:"pickup_type" validate:"required"`
	GuardianWhoPicksUp string            `json:"guardian_who_picks_up"`
	Observations       string            `json:"observations"`
}

// Create registers a PENDING pickup request. The requester must be a verified
// guardian of the student or staff of the student's institution.
func (s *RetiroService) Create(ctx context.Context, actor Actor, in CreateRetiroInput) (*models.Retiro, error) {
	if !in.PickupType.Valid() {
		return nil, ErrInvalidArgument
	}
	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, in.StudentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	switch {
	case actor.IsGuardian():
		if !s.guardianOf(ctx, actor.ID, student.ID) {
			return nil, ErrForbidden
		}
	case actor.IsStaff():
		if student.InstitutionID != actor.InstitutionID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	rec := models.Retiro{
		ID:                 uuid.NewString(),
		StudentID:          student.ID,
		Date:               in.Date,
		Time:               in.Time,
		PickupType:         in.PickupType,
		Status:             models.RetiroPending,
		RequestedBy:        actor.ID,
		RequestedByRole:    actor.Role,
		GuardianWhoPicksUp: in.GuardianWhoPicksUp,
		Observations:       in.Observations,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	s.notify(ctx, &rec, "retiro.requested")
	return &rec, nil
}

// Authorize decides a PENDING request. approve=false rejects. Either way the
// record freezes; a decision on an already-final record is ErrImmutableRecord.
func (s *RetiroService) Authorize(ctx context.Context, actor Actor, retiroID string, approve bool, observations string) (*models.Retiro, error) {
	rec, err := s.staffScoped(ctx, actor, retiroID)
	if err != nil {
		return nil, err
	}

	event := retiroEvAuthorize
	if !approve {
		event = retiroEvReject
	}
	m := retiroMachine(rec.Status)
	if err := m.Event(ctx, event); err != nil {
		return nil, ErrImmutableRecord
	}
	next := models.RetiroStatus(m.Current())

	updates := map[string]any{
		"status":        next,
		"final":         true,
		"authorized_by": actor.ID,
	}
	if observations != "" {
		updates["observations"] = observations
	}
	// The final=false guard makes concurrent decisions race-safe: exactly one
	// caller flips the record.
	res := s.db.WithContext(ctx).Model(&models.Retiro{}).
		Where("id = ? AND final = ?", rec.ID, false).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrImmutableRecord
	}
	rec.Status = next
	rec.Final = true
	rec.AuthorizedBy = &actor.ID
	if observations != "" {
		rec.Observations = observations
	}

	if next == models.RetiroAuthorized {
		s.notify(ctx, rec, "retiro.authorized")
		// Gate-context event: the entrance watches this key to let the
		// student out before end of day.
		s.notify(ctx, rec, "retiro.gate")
	} else {
		s.notify(ctx, rec, "retiro.rejected")
	}
	return rec, nil
}

// Complete stamps an AUTHORIZED pickup as done and marks the day's gate
// record DEPARTED. Any other source state is rejected.
func (s *RetiroService) Complete(ctx context.Context, actor Actor, retiroID string) (*models.Retiro, error) {
	rec, err := s.staffScoped(ctx, actor, retiroID)
	if err != nil {
		return nil, err
	}

	m := retiroMachine(rec.Status)
	if err := m.Event(ctx, retiroEvComplete); err != nil {
		return nil, ErrImmutableRecord
	}

	res := s.db.WithContext(ctx).Model(&models.Retiro{}).
		Where("id = ? AND status = ?", rec.ID, models.RetiroAuthorized).
		Updates(map[string]any{"status": models.RetiroCompleted})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrImmutableRecord
	}
	rec.Status = models.RetiroCompleted

	set, err := s.settings.Get(actor.InstitutionID)
	if err == nil {
		if err := s.gate.MarkDeparted(ctx, rec.StudentID, rec.Date, set.LocalClock(s.now())); err != nil {
			log.Printf("[retiro] mark departed for student %d failed: %v", rec.StudentID, err)
		}
	}
	s.notify(ctx, rec, "retiro.completed")
	return rec, nil
}

type RetiroPatch struct {
	Date               *string            `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time               *string            `json:"time" validate:"omitempty,datetime=15:04"`
	PickupType         *models.PickupType `json:"pickup_type"`
	GuardianWhoPicksUp *string            `json:"guardian_who_picks_up"`
	Observations       *string            `json:"observations"`
}

// Edit applies the patch fields present in the payload. Final records reject
// every edit with ErrImmutableRecord.
func (s *RetiroService) Edit(ctx context.Context, actor Actor, retiroID string, patch RetiroPatch) (*models.Retiro, error) {
	rec, err := s.requesterScoped(ctx, actor, retiroID)
	if err != nil {
		return nil, err
	}
	if rec.Final {
		return nil, ErrImmutableRecord
	}

	updates := map[string]any{}
	if patch.Date != nil {
		updates["date"] = *patch.Date
	}
	if patch.Time != nil {
		updates["time"] = *patch.Time
	}
	if patch.PickupType != nil {
		if !patch.PickupType.Valid() {
			return nil, ErrInvalidArgument
		}
		updates["pickup_type"] = *patch.PickupType
	}
	if patch.GuardianWhoPicksUp != nil {
		updates["guardian_who_picks_up"] = *patch.GuardianWhoPicksUp
	}
	if patch.Observations != nil {
		updates["observations"] = *patch.Observations
	}
	if len(updates) == 0 {
		return rec, nil
	}

	res := s.db.WithContext(ctx).Model(&models.Retiro{}).
		Where("id = ? AND final = ?", rec.ID, false).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrImmutableRecord
	}
	var out models.Retiro
	if err := s.db.WithContext(ctx).First(&out, "id = ?", rec.ID).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a request, permitted only while not final.
func (s *RetiroService) Delete(ctx context.Context, actor Actor, retiroID string) error {
	rec, err := s.requesterScoped(ctx, actor, retiroID)
	if err != nil {
		return err
	}
	if rec.Final {
		return ErrImmutableRecord
	}
	res := s.db.WithContext(ctx).
		Where("id = ? AND final = ?", rec.ID, false).
		Delete(&models.Retiro{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrImmutableRecord
	}
	return nil
}

// ListForStudent returns a student's pickup history, newest first. Guardians
// see only their linked students; staff only students of their institution.
func (s *RetiroService) ListForStudent(ctx context.Context, actor Actor, studentID uint) ([]models.Retiro, error) {
	switch {
	case actor.IsGuardian():
		if !s.guardianOf(ctx, actor.ID, studentID) {
			return nil, ErrForbidden
		}
	case actor.IsStaff():
		var student models.Student
		if err := s.db.WithContext(ctx).First(&student, studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if student.InstitutionID != actor.InstitutionID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}
	var rows []models.Retiro
	err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("date DESC, created_at DESC").
		Find(&rows).Error
	return rows, err
}

// staffScoped loads a retiro and checks the actor is staff of the student's
// institution.
func (s *RetiroService) staffScoped(ctx context.Context, actor Actor, retiroID string) (*models.Retiro, error) {
	rec, student, err := s.load(ctx, retiroID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() || student.InstitutionID != actor.InstitutionID {
		return nil, ErrForbidden
	}
	return rec, nil
}

// requesterScoped allows the requesting guardian or institution staff.
func (s *RetiroService) requesterScoped(ctx context.Context, actor Actor, retiroID string) (*models.Retiro, error) {
	rec, student, err := s.load(ctx, retiroID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsGuardian():
		if rec.RequestedByRole != models.RoleGuardian || rec.RequestedBy != actor.ID {
			return nil, ErrForbidden
		}
	case actor.IsStaff():
		if student.InstitutionID != actor.InstitutionID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}
	return rec, nil
}

func (s *RetiroService) load(ctx context.Context, retiroID string) (*models.Retiro, *models.Student, error) {
	var rec models.Retiro
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", retiroID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, rec.StudentID).Error; err != nil {
		return nil, nil, err
	}
	return &rec, &student, nil
}

func (s *RetiroService) guardianOf(ctx context.Context, guardianID, studentID uint) bool {
	var n int64
	s.db.WithContext(ctx).Model(&models.GuardianStudent{}).
		Where("guardian_id = ? AND student_id = ?", guardianID, studentID).
		Count(&n)
	return n > 0
}

func (s *RetiroService) notify(ctx context.Context, rec *models.Retiro, event string) {
	_, err := s.dispatcher.Dispatch(ctx, rec.StudentID, event, rec.Date, func(st *models.Student, _ *models.Guardian) (string, string) {
		return fmt.Sprintf("Retiro de %s %s", st.FirstName, st.LastName),
			fmt.Sprintf("Retiro del %s %s: estado %s", rec.Date, rec.Time, rec.Status)
	})
	if err != nil {
		log.Printf("[retiro] dispatch %s for student %d failed: %v", event, rec.StudentID, err)
	}
}
