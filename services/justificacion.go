package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"asistencia_backend/models"
)

// JustificacionService computes which absence-type classroom records still
// need a guardian explanation and runs the one-shot review of submitted
// justifications. The pending set is recomputed from the source tables on
// every call; there is no persisted pending flag because validity can change
// asynchronously from any of the four sources.
type JustificacionService struct {
	db         *gorm.DB
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewJustificacionService(db *gorm.DB, dispatcher *Dispatcher) *JustificacionService {
	return &JustificacionService{db: db, dispatcher: dispatcher, now: time.Now}
}

func (s *JustificacionService) WithClock(now func() time.Time) *JustificacionService {
	s.now = now
	return s
}

// PendingJustifications returns, per student of the guardian, the absence
// rows not yet explained by anything: set difference of absence candidates
// minus (any non-absence record that date, any retiro that date, any existing
// justification link), deduplicated to one row per (student, date) with the
// earliest session winning.
func (s *JustificacionService) PendingJustifications(ctx context.Context, guardianID uint, studentFilter *uint) ([]models.ClassroomAttendanceRecord, error) {
	studentIDs, err := s.studentsOf(ctx, guardianID, studentFilter)
	if err != nil {
		return nil, err
	}
	if len(studentIDs) == 0 {
		return []models.ClassroomAttendanceRecord{}, nil
	}

	// 1. Absence candidates, ordered so the per-(student, date) dedup keeps
	// the earliest session.
	var candidates []models.ClassroomAttendanceRecord
	if err := s.db.WithContext(ctx).
		Where("student_id IN ? AND status = ?", studentIDs, models.ClassAbsent).
		Order("date ASC, session ASC, id ASC").
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []models.ClassroomAttendanceRecord{}, nil
	}

	// 2. Valid overrides: any gate or classroom record with a non-absence
	// status clears every absence row for that (student, date), across
	// sessions.
	covered := map[string]bool{}
	var gateRows []models.GateAttendanceRecord
	if err := s.db.WithContext(ctx).
		Where("student_id IN ? AND status <> ?", studentIDs, models.GateAbsent).
		Find(&gateRows).Error; err != nil {
		return nil, err
	}
	for _, r := range gateRows {
		covered[dayKey(r.StudentID, r.Date)] = true
	}
	var classRows []models.ClassroomAttendanceRecord
	if err := s.db.WithContext(ctx).
		Where("student_id IN ? AND status <> ?", studentIDs, models.ClassAbsent).
		Find(&classRows).Error; err != nil {
		return nil, err
	}
	for _, r := range classRows {
		covered[dayKey(r.StudentID, r.Date)] = true
	}

	// 3. A retiro on record, whatever its status, explains the absence for its date.
	var retiros []models.Retiro
	if err := s.db.WithContext(ctx).
		Where("student_id IN ?", studentIDs).
		Find(&retiros).Error; err != nil {
		return nil, err
	}
	for _, r := range retiros {
		covered[dayKey(r.StudentID, r.Date)] = true
	}

	// 4. Records already linked to any justification.
	linked := map[uint]bool{}
	var links []models.JustificacionRecord
	candidateIDs := make([]uint, len(candidates))
	for i, c := range candidates {
		candidateIDs[i] = c.ID
	}
	if err := s.db.WithContext(ctx).
		Where("classroom_record_id IN ?", candidateIDs).
		Find(&links).Error; err != nil {
		return nil, err
	}
	for _, l := range links {
		linked[l.ClassroomRecordID] = true
	}

	seen := map[string]bool{}
	out := make([]models.ClassroomAttendanceRecord, 0, len(candidates))
	for _, c := range candidates {
		key := dayKey(c.StudentID, c.Date)
		if covered[key] || linked[c.ID] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out, nil
}

type SubmitJustificacionInput struct {
	StudentID         uint                     `json:"student_id" validate:"required"`
	DateFrom          string                   `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo            string                   `json:"date_to" validate:"required,datetime=2006-01-02"`
	Type              models.JustificationType `json:"type" validate:"required"`
	Evidence          []string                 `json:"evidence"`
	AffectedRecordIDs []uint                   `json:"affected_record_ids" validate:"required,min=1"`
}

// Submit files a justification. The affected set is re-checked server-side
// against the current pending computation: when none of the referenced
// records are pending the call fails with ErrNoPendingAbsence and nothing is
// written. Records that are pending get linked; the rest are dropped.
func (s *JustificacionService) Submit(ctx context.Context, actor Actor, in SubmitJustificacionInput) (*models.Justificacion, error) {
	if !actor.IsGuardian() {
		return nil, ErrForbidden
	}
	if !in.Type.Valid() || in.DateFrom > in.DateTo {
		return nil, ErrInvalidArgument
	}
	if !s.guardianOf(ctx, actor.ID, in.StudentID) {
		return nil, ErrForbidden
	}

	pending, err := s.PendingJustifications(ctx, actor.ID, &in.StudentID)
	if err != nil {
		return nil, err
	}
	pendingIDs := map[uint]bool{}
	for _, p := range pending {
		pendingIDs[p.ID] = true
	}
	var accepted []uint
	for _, id := range in.AffectedRecordIDs {
		if pendingIDs[id] {
			accepted = append(accepted, id)
		}
	}
	if len(accepted) == 0 {
		return nil, ErrNoPendingAbsence
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i] < accepted[j] })

	just := models.Justificacion{
		ID:           uuid.NewString(),
		StudentID:    in.StudentID,
		DateFrom:     in.DateFrom,
		DateTo:       in.DateTo,
		Type:         in.Type,
		SubmittedBy:  actor.ID,
		ReviewStatus: models.ReviewPending,
	}
	if len(in.Evidence) > 0 {
		if raw, err := json.Marshal(in.Evidence); err == nil {
			just.Evidence = datatypes.JSON(raw)
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&just).Error; err != nil {
			return err
		}
		for _, id := range accepted {
			link := models.JustificacionRecord{JustificacionID: just.ID, ClassroomRecordID: id}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, just.StudentID, "justificacion.submitted", just.DateFrom)
	return &just, nil
}

// Review decides a justification exactly once. A second review fails with
// ErrAlreadyReviewed. On APPROVED every linked classroom record flips to
// JUSTIFIED.
func (s *JustificacionService) Review(ctx context.Context, actor Actor, justificacionID string, approve bool) (*models.Justificacion, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	var just models.Justificacion
	if err := s.db.WithContext(ctx).First(&just, "id = ?", justificacionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, just.StudentID).Error; err != nil {
		return nil, err
	}
	if student.InstitutionID != actor.InstitutionID {
		return nil, ErrForbidden
	}
	if just.ReviewedAt != nil {
		return nil, ErrAlreadyReviewed
	}

	decision := models.ReviewApproved
	if !approve {
		decision = models.ReviewRejected
	}
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// reviewed_at IS NULL guard: first reviewer wins, the second gets
		// ErrAlreadyReviewed even under concurrency.
		res := tx.Model(&models.Justificacion{}).
			Where("id = ? AND reviewed_at IS NULL", just.ID).
			Updates(map[string]any{
				"review_status": decision,
				"reviewed_by":   actor.ID,
				"reviewed_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyReviewed
		}
		if decision != models.ReviewApproved {
			return nil
		}
		var links []models.JustificacionRecord
		if err := tx.Where("justificacion_id = ?", just.ID).Find(&links).Error; err != nil {
			return err
		}
		ids := make([]uint, len(links))
		for i, l := range links {
			ids[i] = l.ClassroomRecordID
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&models.ClassroomAttendanceRecord{}).
			Where("id IN ?", ids).
			Update("status", models.ClassJustified).Error
	})
	if err != nil {
		return nil, err
	}

	just.ReviewStatus = decision
	just.ReviewedBy = &actor.ID
	just.ReviewedAt = &now

	event := "justificacion.rejected"
	if approve {
		event = "justificacion.approved"
	}
	s.notify(ctx, just.StudentID, event, just.DateFrom)
	return &just, nil
}

// ListForReview returns an institution's justifications by review status,
// oldest submission first.
func (s *JustificacionService) ListForReview(ctx context.Context, actor Actor, status models.ReviewStatus) ([]models.Justificacion, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	var rows []models.Justificacion
	err := s.db.WithContext(ctx).
		Joins("JOIN students st ON st.id = justificacions.student_id").
		Where("st.institution_id = ? AND justificacions.review_status = ?", actor.InstitutionID, status).
		Order("justificacions.created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (s *JustificacionService) studentsOf(ctx context.Context, guardianID uint, filter *uint) ([]uint, error) {
	var links []models.GuardianStudent
	q := s.db.WithContext(ctx).Where("guardian_id = ?", guardianID)
	if filter != nil {
		q = q.Where("student_id = ?", *filter)
	}
	if err := q.Find(&links).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, len(links))
	for i, l := range links {
		ids[i] = l.StudentID
	}
	return ids, nil
}

func (s *JustificacionService) guardianOf(ctx context.Context, guardianID, studentID uint) bool {
	var n int64
	s.db.WithContext(ctx).Model(&models.GuardianStudent{}).
		Where("guardian_id = ? AND student_id = ?", guardianID, studentID).
		Count(&n)
	return n > 0
}

func dayKey(studentID uint, date string) string {
	return fmt.Sprintf("%d|%s", studentID, date)
}

func (s *JustificacionService) notify(ctx context.Context, studentID uint, event, date string) {
	_, err := s.dispatcher.Dispatch(ctx, studentID, event, date, func(st *models.Student, _ *models.Guardian) (string, string) {
		return fmt.Sprintf("Justificacion de %s %s", st.FirstName, st.LastName),
			fmt.Sprintf("Justificacion de inasistencia de %s %s (%s)", st.FirstName, st.LastName, date)
	})
	if err != nil {
		log.Printf("[justificacion] dispatch %s for student %d failed: %v", event, studentID, err)
	}
}
