package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"asistencia_backend/models"
)

// ClassroomService handles per-session teacher confirmation, seeded by the
// day's gate records.
type ClassroomService struct {
	db         *gorm.DB
	settings   *SettingsProvider
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewClassroomService(db *gorm.DB, settings *SettingsProvider, dispatcher *Dispatcher) *ClassroomService {
	return &ClassroomService{db: db, settings: settings, dispatcher: dispatcher, now: time.Now}
}

func (s *ClassroomService) WithClock(now func() time.Time) *ClassroomService {
	s.now = now
	return s
}

// Confirm creates the classroom record for (student, date, session). A record
// already under that key fails with ErrDuplicateRecord: teachers correct
// through Correct, never through a second create.
func (s *ClassroomService) Confirm(ctx context.Context, actor Actor, studentID uint, date string, session int, status models.ClassStatus, source models.ClassSource) (*models.ClassroomAttendanceRecord, error) {
	if !status.Valid() || status == models.ClassJustified || !source.Valid() || session < 1 {
		return nil, ErrInvalidArgument
	}
	student, set, err := s.studentInScope(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = set.LocalDate(s.now())
	}

	rec := models.ClassroomAttendanceRecord{
		StudentID:  student.ID,
		Date:       date,
		Session:    session,
		Status:     status,
		Source:     source,
		RecordTime: set.LocalClock(s.now()),
		RecordedBy: actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateRecord
		}
		return nil, err
	}

	s.notify(ctx, student.ID, "classroom."+strings.ToLower(string(status)), date, session)
	return &rec, nil
}

// ConfirmScan auto-creates a record from a QR scan event. The default status
// mirrors the gate's PRESENT/LATE tie-break but against the classroom cutoff,
// which is configured independently.
func (s *ClassroomService) ConfirmScan(ctx context.Context, actor Actor, studentID uint, session int, at time.Time) (*models.ClassroomAttendanceRecord, error) {
	student, set, err := s.studentInScope(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = s.now()
	}
	status := models.ClassPresent
	if set.LocalClock(at) > set.ClassroomLimit {
		status = models.ClassLate
	}
	return s.Confirm(ctx, actor, student.ID, set.LocalDate(at), session, status, models.SourceTeacherQR)
}

// Correct is the explicit correction path: it rewrites the status of an
// existing record in place. JUSTIFIED is owned by the justification flow and
// cannot be set here.
func (s *ClassroomService) Correct(ctx context.Context, actor Actor, recordID uint, status models.ClassStatus) (*models.ClassroomAttendanceRecord, error) {
	if !status.Valid() || status == models.ClassJustified {
		return nil, ErrInvalidArgument
	}
	var rec models.ClassroomAttendanceRecord
	if err := s.db.WithContext(ctx).First(&rec, recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, _, err := s.studentInScope(ctx, actor, rec.StudentID); err != nil {
		return nil, err
	}

	now := s.now()
	updates := map[string]any{
		"status":       status,
		"source":       models.SourceManual,
		"corrected_by": actor.ID,
		"corrected_at": now,
	}
	if err := s.db.WithContext(ctx).Model(&rec).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// RosterRow is one enrolled student joined with the day's gate preload and
// any existing classroom record, so callers can tell apart "nothing yet",
// "preloaded, unconfirmed" and "confirmed".
type RosterRow struct {
	Student   models.Student                    `json:"student"`
	Gate      *models.GateAttendanceRecord      `json:"gate,omitempty"`
	Classroom *models.ClassroomAttendanceRecord `json:"classroom,omitempty"`
	State     string                            `json:"state"` // none | preloaded | confirmed
}

// ListClassFor returns the roster of one grade/section for a date and session.
func (s *ClassroomService) ListClassFor(ctx context.Context, actor Actor, grade, section, date string, session int) ([]RosterRow, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	var students []models.Student
	err := s.db.WithContext(ctx).
		Where("institution_id = ? AND grade = ? AND section = ? AND status = ?",
			actor.InstitutionID, grade, section, models.StudentActive).
		Order("last_name ASC, first_name ASC").
		Find(&students).Error
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return []RosterRow{}, nil
	}

	ids := make([]uint, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}

	var gates []models.GateAttendanceRecord
	if err := s.db.WithContext(ctx).
		Where("student_id IN ? AND date = ?", ids, date).
		Find(&gates).Error; err != nil {
		return nil, err
	}
	gateBy := make(map[uint]*models.GateAttendanceRecord, len(gates))
	for i := range gates {
		gateBy[gates[i].StudentID] = &gates[i]
	}

	var rooms []models.ClassroomAttendanceRecord
	if err := s.db.WithContext(ctx).
		Where("student_id IN ? AND date = ? AND session = ?", ids, date, session).
		Find(&rooms).Error; err != nil {
		return nil, err
	}
	roomBy := make(map[uint]*models.ClassroomAttendanceRecord, len(rooms))
	for i := range rooms {
		roomBy[rooms[i].StudentID] = &rooms[i]
	}

	rows := make([]RosterRow, 0, len(students))
	for _, st := range students {
		row := RosterRow{Student: st, Gate: gateBy[st.ID], Classroom: roomBy[st.ID], State: "none"}
		if row.Gate != nil {
			row.State = "preloaded"
		}
		if row.Classroom != nil {
			row.State = "confirmed"
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *ClassroomService) studentInScope(ctx context.Context, actor Actor, studentID uint) (*models.Student, *Settings, error) {
	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if !actor.IsStaff() || student.InstitutionID != actor.InstitutionID {
		return nil, nil, ErrForbidden
	}
	set, err := s.settings.Get(student.InstitutionID)
	if err != nil {
		return nil, nil, err
	}
	return &student, set, nil
}

func (s *ClassroomService) notify(ctx context.Context, studentID uint, event, date string, session int) {
	_, err := s.dispatcher.Dispatch(ctx, studentID, event, date, func(st *models.Student, _ *models.Guardian) (string, string) {
		return fmt.Sprintf("Asistencia en aula de %s %s", st.FirstName, st.LastName),
			fmt.Sprintf("%s %s: registro de aula del %s, sesion %d", st.FirstName, st.LastName, date, session)
	})
	if err != nil {
		log.Printf("[classroom] dispatch %s for student %d failed: %v", event, studentID, err)
	}
}
