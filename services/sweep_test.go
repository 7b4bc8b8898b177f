package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"asistencia_backend/models"
)

func TestSweepMarksMissingStudentsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	aux := f.staff(models.RoleAuxiliary)

	present := f.student("S001")
	missing1 := f.student("S002")
	missing2 := f.student("S003")
	f.guardianFor(missing1, "s002@familia.pe", "911222333")
	f.guardianFor(missing2, "s003@familia.pe", "944555666")

	if _, err := f.gate.RecordEntry(context.Background(), aux, present.ID, monday(7, 35)); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	res, err := f.sweep.RunSweep(context.Background(), f.inst.ID, monday(8, 30))
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if res.Marked != 2 || res.Notified != 2 {
		t.Fatalf("first run = %+v, want marked=2 notified=2", res)
	}

	for _, st := range []models.Student{missing1, missing2} {
		var rec models.GateAttendanceRecord
		if err := f.db.Where("student_id = ? AND date = ?", st.ID, mondayDate).First(&rec).Error; err != nil {
			t.Fatalf("student %d: no ABSENT row: %v", st.ID, err)
		}
		if rec.Status != models.GateAbsent || rec.RecordedByEntry != nil {
			t.Fatalf("student %d: unexpected row %+v", st.ID, rec)
		}
	}

	// re-run: no duplicate records, no duplicate notifications
	res2, err := f.sweep.RunSweep(context.Background(), f.inst.ID, monday(8, 45))
	if err != nil {
		t.Fatalf("second RunSweep: %v", err)
	}
	if res2.Marked != 0 || res2.Notified != 0 {
		t.Fatalf("second run = %+v, want all zero", res2)
	}
	var rows, logs int64
	f.db.Model(&models.GateAttendanceRecord{}).Where("date = ? AND status = ?", mondayDate, models.GateAbsent).Count(&rows)
	f.db.Model(&models.NotificationDispatchLog{}).Where("event_type = ?", "attendance.absent").Count(&logs)
	if rows != 2 || logs != 2 {
		t.Fatalf("rows=%d logs=%d after re-run, want 2 and 2", rows, logs)
	}
}

func TestSweepBeforeCutoffIsNoop(t *testing.T) {
	f := newFixture(t)
	f.student("S010")

	res, err := f.sweep.RunSweep(context.Background(), f.inst.ID, monday(7, 0))
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if res.Marked != 0 || res.Notified != 0 {
		t.Fatalf("pre-cutoff run = %+v, want all zero", res)
	}
	var n int64
	f.db.Model(&models.GateAttendanceRecord{}).Count(&n)
	if n != 0 {
		t.Fatalf("records created by a no-op run: %d", n)
	}
}

func TestSweepSkipsNonWorkingDays(t *testing.T) {
	f := newFixture(t)
	f.student("S020")

	// 2026-03-01 fell on a Sunday
	sunday := monday(10, 0).AddDate(0, 0, -1)
	res, err := f.sweep.RunSweep(context.Background(), f.inst.ID, sunday)
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if res.Marked != 0 {
		t.Fatalf("sunday run marked %d students", res.Marked)
	}
}

func TestSweepIgnoresInactiveStudents(t *testing.T) {
	f := newFixture(t)
	st := f.student("S030")
	if err := f.db.Model(&st).Update("status", models.StudentWithdrawn).Error; err != nil {
		t.Fatalf("withdraw student: %v", err)
	}

	res, err := f.sweep.RunSweep(context.Background(), f.inst.ID, monday(8, 30))
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if res.Marked != 0 {
		t.Fatalf("withdrawn student swept: %+v", res)
	}
}

func TestConcurrentSweepsProduceNoDuplicates(t *testing.T) {
	f := newFixture(t)
	m1 := f.student("S041")
	m2 := f.student("S042")
	f.guardianFor(m1, "s041@familia.pe", "")
	f.guardianFor(m2, "s042@familia.pe", "")

	var wg sync.WaitGroup
	results := make([]SweepResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.sweep.RunSweep(context.Background(), f.inst.ID, monday(8, 30))
			if err != nil {
				t.Errorf("RunSweep[%d]: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	if got := results[0].Marked + results[1].Marked; got != 2 {
		t.Fatalf("total marked across overlapping runs = %d, want 2", got)
	}
	var rows, logs int64
	f.db.Model(&models.GateAttendanceRecord{}).Where("date = ?", mondayDate).Count(&rows)
	f.db.Model(&models.NotificationDispatchLog{}).Where("event_type = ?", "attendance.absent").Count(&logs)
	if rows != 2 || logs != 2 {
		t.Fatalf("rows=%d logs=%d after concurrent runs, want 2 and 2", rows, logs)
	}
}

func TestSweepSlowChannelCannotStallTheBatch(t *testing.T) {
	f := newFixture(t)
	f.sweep.perStudent = 50 * time.Millisecond
	f.transport.delay = 2 * time.Second

	for i := 0; i < 3; i++ {
		st := f.student(fmt.Sprintf("S10%d", i))
		f.guardianFor(st, st.Code+"@familia.pe", fmt.Sprintf("93300010%d", i))
	}

	start := time.Now()
	res, err := f.sweep.RunSweep(context.Background(), f.inst.ID, monday(8, 30))
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("run took %v, the per-student timeout did not bound it", elapsed)
	}
	// Every student still gets marked; no delivery succeeds within the bound.
	if res.Marked != 3 || res.Notified != 0 {
		t.Fatalf("result = %+v, want marked=3 notified=0", res)
	}
	var logs int64
	f.db.Model(&models.NotificationDispatchLog{}).
		Where("event_type = ? AND email_sent = ? AND sms_sent = ?", "attendance.absent", false, false).
		Count(&logs)
	if logs != 3 {
		t.Fatalf("undelivered log rows = %d, want 3", logs)
	}
}

func TestSweepDeadlineStopsNewWorkWithPartialCounts(t *testing.T) {
	f := newFixture(t)
	f.sweep.workers = 1
	f.transport.delay = 2 * time.Second

	for i := 0; i < 4; i++ {
		st := f.student(fmt.Sprintf("S11%d", i))
		f.guardianFor(st, st.Code+"@familia.pe", fmt.Sprintf("93400011%d", i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := f.sweep.RunSweep(ctx, f.inst.ID, monday(8, 30))
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("run took %v after the deadline, want an early stop", elapsed)
	}
	// The first student gets marked before the deadline cuts its delivery
	// off; the rest never start.
	if res.Marked != 1 || res.Notified != 0 {
		t.Fatalf("result = %+v, want marked=1 notified=0", res)
	}
	var rows int64
	f.db.Model(&models.GateAttendanceRecord{}).
		Where("date = ? AND status = ?", mondayDate, models.GateAbsent).
		Count(&rows)
	if rows != 1 {
		t.Fatalf("ABSENT rows = %d, want 1", rows)
	}
}
