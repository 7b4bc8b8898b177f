package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"asistencia_backend/models"
)

func (f *fixture) pendingRetiro(st models.Student, g models.Guardian) *models.Retiro {
	f.t.Helper()
	rec, err := f.retiro.Create(context.Background(), f.guardianActor(g), CreateRetiroInput{
		StudentID:  st.ID,
		Date:       mondayDate,
		Time:       "10:30",
		PickupType: models.PickupMedical,
	})
	if err != nil {
		f.t.Fatalf("create retiro: %v", err)
	}
	return rec
}

func TestCreateRetiroRequiresGuardianLink(t *testing.T) {
	f := newFixture(t)
	st := f.student("R001")
	other := f.student("R002")
	g := f.guardianFor(st, "r001@example.com", "999000001")

	if _, err := f.retiro.Create(context.Background(), f.guardianActor(g), CreateRetiroInput{
		StudentID:  other.ID,
		Date:       mondayDate,
		Time:       "10:00",
		PickupType: models.PickupFamily,
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("create for unlinked student err = %v, want ErrForbidden", err)
	}

	rec := f.pendingRetiro(st, g)
	if rec.Status != models.RetiroPending || rec.Final {
		t.Fatalf("unexpected new retiro: %+v", rec)
	}
}

func TestRetiroEditableWhilePending(t *testing.T) {
	f := newFixture(t)
	st := f.student("R010")
	g := f.guardianFor(st, "r010@example.com", "999000010")
	rec := f.pendingRetiro(st, g)

	newTime := "11:15"
	out, err := f.retiro.Edit(context.Background(), f.guardianActor(g), rec.ID, RetiroPatch{Time: &newTime})
	if err != nil {
		t.Fatalf("edit pending: %v", err)
	}
	if out.Time != newTime {
		t.Fatalf("time = %s, want %s", out.Time, newTime)
	}

	if err := f.retiro.Delete(context.Background(), f.guardianActor(g), rec.ID); err != nil {
		t.Fatalf("delete pending: %v", err)
	}
	var n int64
	f.db.Model(&models.Retiro{}).Where("id = ?", rec.ID).Count(&n)
	if n != 0 {
		t.Fatalf("retiro still present after delete")
	}
}

func TestRetiroFinalStatesRejectEveryMutation(t *testing.T) {
	f := newFixture(t)
	aux := f.staff(models.RoleAuxiliary)

	freeze := map[string]func(*models.Retiro) error{
		"AUTHORIZED": func(r *models.Retiro) error {
			_, err := f.retiro.Authorize(context.Background(), aux, r.ID, true, "")
			return err
		},
		"REJECTED": func(r *models.Retiro) error {
			_, err := f.retiro.Authorize(context.Background(), aux, r.ID, false, "sin sustento")
			return err
		},
		"COMPLETED": func(r *models.Retiro) error {
			if _, err := f.retiro.Authorize(context.Background(), aux, r.ID, true, ""); err != nil {
				return err
			}
			_, err := f.retiro.Complete(context.Background(), aux, r.ID)
			return err
		},
	}

	i := 0
	for name, reach := range freeze {
		st := f.student("R02" + string(rune('0'+i)))
		i++
		g := f.guardianFor(st, st.Code+"@example.com", "99900002"+st.Code[3:])
		rec := f.pendingRetiro(st, g)
		if err := reach(rec); err != nil {
			t.Fatalf("%s: reach state: %v", name, err)
		}

		obs := "cambio"
		if _, err := f.retiro.Edit(context.Background(), f.guardianActor(g), rec.ID, RetiroPatch{Observations: &obs}); !errors.Is(err, ErrImmutableRecord) {
			t.Errorf("%s: edit err = %v, want ErrImmutableRecord", name, err)
		}
		if err := f.retiro.Delete(context.Background(), f.guardianActor(g), rec.ID); !errors.Is(err, ErrImmutableRecord) {
			t.Errorf("%s: delete err = %v, want ErrImmutableRecord", name, err)
		}
		if _, err := f.retiro.Authorize(context.Background(), aux, rec.ID, true, ""); !errors.Is(err, ErrImmutableRecord) {
			t.Errorf("%s: re-authorize err = %v, want ErrImmutableRecord", name, err)
		}
	}
}

func TestRetiroRejectIsTerminal(t *testing.T) {
	f := newFixture(t)
	st := f.student("R030")
	g := f.guardianFor(st, "r030@example.com", "999000030")
	aux := f.staff(models.RoleAuxiliary)
	rec := f.pendingRetiro(st, g)

	out, err := f.retiro.Authorize(context.Background(), aux, rec.ID, false, "")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if out.Status != models.RetiroRejected || !out.Final {
		t.Fatalf("unexpected rejected retiro: %+v", out)
	}
	if _, err := f.retiro.Complete(context.Background(), aux, rec.ID); !errors.Is(err, ErrImmutableRecord) {
		t.Fatalf("complete rejected err = %v, want ErrImmutableRecord", err)
	}
}

func TestRetiroCompleteMarksGateDeparted(t *testing.T) {
	f := newFixture(t)
	st := f.student("R040")
	g := f.guardianFor(st, "r040@example.com", "999000040")
	aux := f.staff(models.RoleAuxiliary)

	if _, err := f.gate.RecordEntry(context.Background(), aux, st.ID, monday(7, 35)); err != nil {
		t.Fatalf("entry: %v", err)
	}

	rec := f.pendingRetiro(st, g)
	if _, err := f.retiro.Authorize(context.Background(), aux, rec.ID, true, ""); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	f.retiro.WithClock(func() time.Time { return monday(10, 45) })
	out, err := f.retiro.Complete(context.Background(), aux, rec.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.Status != models.RetiroCompleted {
		t.Fatalf("status = %s, want COMPLETED", out.Status)
	}

	var gateRec models.GateAttendanceRecord
	if err := f.db.Where("student_id = ? AND date = ?", st.ID, mondayDate).First(&gateRec).Error; err != nil {
		t.Fatalf("reload gate record: %v", err)
	}
	if gateRec.Status != models.GateDeparted || gateRec.ExitTime == "" {
		t.Fatalf("gate record not departed: %+v", gateRec)
	}
}

func TestListForStudentScopedToInstitution(t *testing.T) {
	f := newFixture(t)
	st := f.student("R050")
	g := f.guardianFor(st, "r050@example.com", "999000050")
	f.pendingRetiro(st, g)

	rows, err := f.retiro.ListForStudent(context.Background(), f.staff(models.RoleTeacher), st.ID)
	if err != nil {
		t.Fatalf("own-institution list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}

	foreign := Actor{ID: 9, Role: models.RoleTeacher, InstitutionID: f.inst.ID + 100}
	if _, err := f.retiro.ListForStudent(context.Background(), foreign, st.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign staff list err = %v, want ErrForbidden", err)
	}

	otherGuardian := f.guardianFor(f.student("R051"), "r051@example.com", "999000051")
	if _, err := f.retiro.ListForStudent(context.Background(), f.guardianActor(otherGuardian), st.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unlinked guardian list err = %v, want ErrForbidden", err)
	}
}
