package services

import (
	"context"
	"errors"
	"testing"

	"asistencia_backend/models"
)

func TestConfirmRejectsSecondCreateForKey(t *testing.T) {
	f := newFixture(t)
	st := f.student("C001")
	teacher := f.staff(models.RoleTeacher)

	if _, err := f.classroom.Confirm(context.Background(), teacher, st.ID, mondayDate, 1, models.ClassPresent, models.SourceManual); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	_, err := f.classroom.Confirm(context.Background(), teacher, st.ID, mondayDate, 1, models.ClassAbsent, models.SourceManual)
	if !errors.Is(err, ErrDuplicateRecord) {
		t.Fatalf("second confirm err = %v, want ErrDuplicateRecord", err)
	}

	// another session is a different key
	if _, err := f.classroom.Confirm(context.Background(), teacher, st.ID, mondayDate, 2, models.ClassPresent, models.SourceManual); err != nil {
		t.Fatalf("confirm other session: %v", err)
	}
}

func TestConfirmScanUsesClassroomCutoff(t *testing.T) {
	f := newFixture(t)
	teacher := f.staff(models.RoleTeacher)

	// classroom limit is 07:45 + 5min, independent of the gate's 07:40
	onTime := f.student("C010")
	rec, err := f.classroom.ConfirmScan(context.Background(), teacher, onTime.ID, 1, monday(7, 50))
	if err != nil {
		t.Fatalf("scan on time: %v", err)
	}
	if rec.Status != models.ClassPresent || rec.Source != models.SourceTeacherQR {
		t.Fatalf("unexpected record: %+v", rec)
	}

	late := f.student("C011")
	rec, err = f.classroom.ConfirmScan(context.Background(), teacher, late.ID, 1, monday(7, 51))
	if err != nil {
		t.Fatalf("scan late: %v", err)
	}
	if rec.Status != models.ClassLate {
		t.Fatalf("status = %s, want LATE", rec.Status)
	}
}

func TestConfirmCannotWriteJustified(t *testing.T) {
	f := newFixture(t)
	st := f.student("C020")
	teacher := f.staff(models.RoleTeacher)

	if _, err := f.classroom.Confirm(context.Background(), teacher, st.ID, mondayDate, 1, models.ClassJustified, models.SourceManual); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("confirm JUSTIFIED err = %v, want ErrInvalidArgument", err)
	}
}

func TestCorrectRewritesStatusInPlace(t *testing.T) {
	f := newFixture(t)
	st := f.student("C030")
	teacher := f.staff(models.RoleTeacher)

	rec, err := f.classroom.Confirm(context.Background(), teacher, st.ID, mondayDate, 1, models.ClassAbsent, models.SourceManual)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := f.classroom.Correct(context.Background(), teacher, rec.ID, models.ClassJustified); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("correct to JUSTIFIED err = %v, want ErrInvalidArgument", err)
	}

	if _, err := f.classroom.Correct(context.Background(), teacher, rec.ID, models.ClassPresent); err != nil {
		t.Fatalf("correct: %v", err)
	}
	var out models.ClassroomAttendanceRecord
	if err := f.db.First(&out, rec.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if out.Status != models.ClassPresent || out.Source != models.SourceManual || out.CorrectedBy == nil {
		t.Fatalf("unexpected corrected record: %+v", out)
	}

	var n int64
	f.db.Model(&models.ClassroomAttendanceRecord{}).Where("student_id = ?", st.ID).Count(&n)
	if n != 1 {
		t.Fatalf("correction created a new row: %d", n)
	}
}

func TestRosterDistinguishesStates(t *testing.T) {
	f := newFixture(t)
	teacher := f.staff(models.RoleTeacher)
	aux := f.staff(models.RoleAuxiliary)

	nothing := f.student("C040")
	preloaded := f.student("C041")
	confirmed := f.student("C042")

	if _, err := f.gate.RecordEntry(context.Background(), aux, preloaded.ID, monday(7, 35)); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if _, err := f.gate.RecordEntry(context.Background(), aux, confirmed.ID, monday(7, 36)); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if _, err := f.classroom.Confirm(context.Background(), teacher, confirmed.ID, mondayDate, 1, models.ClassPresent, models.SourceGatePreload); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	rows, err := f.classroom.ListClassFor(context.Background(), teacher, "5to", "B", mondayDate, 1)
	if err != nil {
		t.Fatalf("ListClassFor: %v", err)
	}
	states := map[uint]string{}
	for _, r := range rows {
		states[r.Student.ID] = r.State
	}
	if states[nothing.ID] != "none" || states[preloaded.ID] != "preloaded" || states[confirmed.ID] != "confirmed" {
		t.Fatalf("states = %v", states)
	}
}
