package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"asistencia_backend/models"
)

// SweepResult is what one sweep run accomplished. Per-student failures are
// logged and counted out, never returned as errors.
type SweepResult struct {
	Marked   int `json:"marked"`
	Notified int `json:"notified"`
}

// SweepService is the time-triggered batch pass that turns "no gate record by
// cutoff" into an explicit ABSENT record, once per institution per day. The
// run is re-entrant: the per-student existence check plus the dispatch log
// make overlapping or retried runs produce no duplicate rows and no duplicate
// notifications.
type SweepService struct {
	db         *gorm.DB
	settings   *SettingsProvider
	dispatcher *Dispatcher

	// Fan-out bounds: workers caps concurrent per-student work, perStudent
	// bounds one student's notification round-trip so a dead channel cannot
	// stall the batch.
	workers    int
	perStudent time.Duration
}

func NewSweepService(db *gorm.DB, settings *SettingsProvider, dispatcher *Dispatcher) *SweepService {
	return &SweepService{
		db:         db,
		settings:   settings,
		dispatcher: dispatcher,
		workers:    8,
		perStudent: 10 * time.Second,
	}
}

// RunSweep marks every ACTIVE student without a gate record for asOf's local
// date as ABSENT and notifies their guardian. Preconditions: asOf is past the
// institution's sweep cutoff and falls on a working day; otherwise the call
// is a no-op with zero counts. Honors ctx deadlines by not starting new
// per-student work once the context is done, returning partial counts.
func (s *SweepService) RunSweep(ctx context.Context, institutionID uint, asOf time.Time) (SweepResult, error) {
	set, err := s.settings.Get(institutionID)
	if err != nil {
		return SweepResult{}, err
	}
	if set.LocalClock(asOf) < set.SweepCutoff || !set.IsWorkingDay(asOf) {
		return SweepResult{}, nil
	}
	date := set.LocalDate(asOf)

	var students []models.Student
	err = s.db.WithContext(ctx).
		Where("institution_id = ? AND status = ?", institutionID, models.StudentActive).
		Order("id ASC").
		Find(&students).Error
	if err != nil {
		return SweepResult{}, err
	}

	var marked, notified int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, st := range students {
		if gctx.Err() != nil {
			break // deadline hit: stop starting new work, keep partial counts
		}
		st := st
		g.Go(func() error {
			s.sweepStudent(gctx, st, date, &marked, &notified)
			return nil // per-student isolation: nothing aborts the group
		})
	}
	_ = g.Wait()

	return SweepResult{Marked: int(marked), Notified: int(notified)}, nil
}

func (s *SweepService) sweepStudent(ctx context.Context, st models.Student, date string, marked, notified *int64) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.GateAttendanceRecord{}).
		Where("student_id = ? AND date = ?", st.ID, date).
		Count(&n).Error; err != nil {
		log.Printf("[sweep] student %d: existence check failed: %v", st.ID, err)
		return
	}
	if n > 0 {
		return // already has a gate event (or a previous run got here first)
	}

	rec := models.GateAttendanceRecord{
		StudentID: st.ID,
		Date:      date,
		Status:    models.GateAbsent,
		// no actor: the sweep is the only writer of ABSENT without a gate event
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return // concurrent run won the insert; nothing more to do
		}
		log.Printf("[sweep] student %d: create ABSENT failed: %v", st.ID, err)
		return
	}
	atomic.AddInt64(marked, 1)

	nctx, cancel := context.WithTimeout(ctx, s.perStudent)
	defer cancel()
	res, err := s.dispatcher.Dispatch(nctx, st.ID, "attendance.absent", date, func(student *models.Student, _ *models.Guardian) (string, string) {
		return fmt.Sprintf("Inasistencia de %s %s", student.FirstName, student.LastName),
			fmt.Sprintf("%s %s no registra ingreso el %s.", student.FirstName, student.LastName, date)
	})
	if err != nil {
		log.Printf("[sweep] student %d: absence dispatch failed: %v", st.ID, err)
		return
	}
	if res.Email || res.SMS {
		atomic.AddInt64(notified, 1)
	}
}
