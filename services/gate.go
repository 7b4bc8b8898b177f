package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"asistencia_backend/models"
)

// GateService records entry/exit events captured at the institution entrance.
// One row per student per day; entry time is set at most once.
type GateService struct {
	db         *gorm.DB
	settings   *SettingsProvider
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewGateService(db *gorm.DB, settings *SettingsProvider, dispatcher *Dispatcher) *GateService {
	return &GateService{db: db, settings: settings, dispatcher: dispatcher, now: time.Now}
}

// WithClock overrides the service clock; tests use it to pin "now".
func (s *GateService) WithClock(now func() time.Time) *GateService {
	s.now = now
	return s
}

// RecordEntry captures a student's arrival. Status is PRESENT when the local
// clock is at or before the gate cutoff plus tolerance, LATE otherwise. A
// second entry for the same day fails with ErrAlreadyRecorded; the loser of a
// concurrent create race gets the same answer via the unique key.
func (s *GateService) RecordEntry(ctx context.Context, actor Actor, studentID uint, at time.Time) (*models.GateAttendanceRecord, error) {
	student, set, err := s.studentInScope(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = s.now()
	}
	date := set.LocalDate(at)
	clock := set.LocalClock(at)

	status := models.GatePresent
	if clock > set.GateLimit {
		status = models.GateLate
	}

	rec := models.GateAttendanceRecord{
		StudentID:       student.ID,
		Date:            date,
		Status:          status,
		EntryTime:       clock,
		RecordedByEntry: &actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// A row already exists: either a real earlier entry (reject) or a
		// sweep-created ABSENT row we can claim. The entry_time guard makes
		// the claim race-safe.
		res := s.db.WithContext(ctx).Model(&models.GateAttendanceRecord{}).
			Where("student_id = ? AND date = ? AND entry_time = ''", student.ID, date).
			Updates(map[string]any{
				"status":            status,
				"entry_time":        clock,
				"recorded_by_entry": actor.ID,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrAlreadyRecorded
		}
		if err := s.db.WithContext(ctx).
			Where("student_id = ? AND date = ?", student.ID, date).
			First(&rec).Error; err != nil {
			return nil, err
		}
	}

	s.notify(ctx, student.ID, "gate.entry", date, fmt.Sprintf("ingreso %s", clock))
	if status == models.GateLate {
		// Late arrivals additionally raise an alert event for the guardian.
		s.notify(ctx, student.ID, "gate.late", date, fmt.Sprintf("llegada tarde %s", clock))
	}
	return &rec, nil
}

// RecordExit stamps the departure on the day's record. Fails with ErrNotFound
// when no entry preceded it and ErrAlreadyRecorded on a second exit.
func (s *GateService) RecordExit(ctx context.Context, actor Actor, studentID uint, at time.Time) (*models.GateAttendanceRecord, error) {
	student, set, err := s.studentInScope(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = s.now()
	}
	date := set.LocalDate(at)
	clock := set.LocalClock(at)

	res := s.db.WithContext(ctx).Model(&models.GateAttendanceRecord{}).
		Where("student_id = ? AND date = ? AND entry_time <> '' AND exit_time = ''", student.ID, date).
		Updates(map[string]any{
			"status":           models.GateDeparted,
			"exit_time":        clock,
			"recorded_by_exit": actor.ID,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var existing models.GateAttendanceRecord
		err := s.db.WithContext(ctx).
			Where("student_id = ? AND date = ?", student.ID, date).
			First(&existing).Error
		if err != nil || existing.EntryTime == "" {
			return nil, ErrNotFound // no prior entry today
		}
		return nil, ErrAlreadyRecorded
	}

	var rec models.GateAttendanceRecord
	if err := s.db.WithContext(ctx).
		Where("student_id = ? AND date = ?", student.ID, date).
		First(&rec).Error; err != nil {
		return nil, err
	}
	s.notify(ctx, student.ID, "gate.exit", date, fmt.Sprintf("salida %s", clock))
	return &rec, nil
}

// DayForStudent returns the gate record for one local date, or ErrNotFound.
// The actor must be staff of the student's institution.
func (s *GateService) DayForStudent(ctx context.Context, actor Actor, studentID uint, date string) (*models.GateAttendanceRecord, error) {
	if _, _, err := s.studentInScope(ctx, actor, studentID); err != nil {
		return nil, err
	}
	var rec models.GateAttendanceRecord
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND date = ?", studentID, date).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// MarkDeparted is the hook the retiro flow uses when an authorized pickup
// completes: the in-progress day record gets stamped DEPARTED without an
// auxiliary at the gate.
func (s *GateService) MarkDeparted(ctx context.Context, studentID uint, date, clock string) error {
	return s.db.WithContext(ctx).Model(&models.GateAttendanceRecord{}).
		Where("student_id = ? AND date = ? AND entry_time <> '' AND exit_time = ''", studentID, date).
		Updates(map[string]any{"status": models.GateDeparted, "exit_time": clock}).Error
}

func (s *GateService) studentInScope(ctx context.Context, actor Actor, studentID uint) (*models.Student, *Settings, error) {
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

// notify is best-effort: a dispatch log/storage error must not fail the gate
// operation that already committed.
func (s *GateService) notify(ctx context.Context, studentID uint, event, date, detail string) {
	_, err := s.dispatcher.Dispatch(ctx, studentID, event, date, func(st *models.Student, _ *models.Guardian) (string, string) {
		return fmt.Sprintf("Asistencia de %s %s", st.FirstName, st.LastName),
			fmt.Sprintf("%s %s: %s (%s)", st.FirstName, st.LastName, detail, date)
	})
	if err != nil {
		log.Printf("[gate] dispatch %s for student %d failed: %v", event, studentID, err)
	}
}
