package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"asistencia_backend/database"
	"asistencia_backend/models"
	"asistencia_backend/notifier"
)

var testDBSeq int64

// newTestDB opens a fresh shared in-memory sqlite database with the full
// schema. cache=shared keeps the database alive across the pool's
// connections, which the concurrency tests need.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc%d?mode=memory&cache=shared&_busy_timeout=5000", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type sentMsg struct {
	Channel   notifier.Channel
	Recipient string
	Subject   string
}

// fakeTransport records sends and can fail individual channels or delay
// deliveries to exercise timeouts.
type fakeTransport struct {
	mu    sync.Mutex
	sends []sentMsg
	fail  map[notifier.Channel]bool
	delay time.Duration
}

func (f *fakeTransport) Send(ctx context.Context, ch notifier.Channel, recipient, subject, _ string) bool {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return false
		}
	}
	f.mu.Lock()
	f.sends = append(f.sends, sentMsg{Channel: ch, Recipient: recipient, Subject: subject})
	f.mu.Unlock()
	return f.fail == nil || !f.fail[ch]
}

func (f *fakeTransport) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

// fixture seeds one institution (UTC, gate limit 07:40, classroom limit
// 07:50, sweep cutoff 08:00, Mon-Fri) and wires the full service graph over
// a fake transport.
type fixture struct {
	t          *testing.T
	db         *gorm.DB
	inst       models.Institution
	transport  *fakeTransport
	settings   *SettingsProvider
	dispatcher *Dispatcher
	gate       *GateService
	classroom  *ClassroomService
	sweep      *SweepService
	retiro     *RetiroService
	just       *JustificacionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	inst := models.Institution{
		Code:                  "SEDE01",
		Name:                  "Sede Principal",
		Timezone:              "UTC",
		GateEntryTime:         "07:30",
		GateToleranceMin:      10,
		ClassroomEntryTime:    "07:45",
		ClassroomToleranceMin: 5,
		SweepCutoff:           "08:00",
		WorkingDays:           pq.Int64Array{1, 2, 3, 4, 5},
	}
	if err := db.Create(&inst).Error; err != nil {
		t.Fatalf("seed institution: %v", err)
	}

	transport := &fakeTransport{}
	settings := NewSettingsProvider(db)
	dispatcher := NewDispatcher(db, transport)
	gate := NewGateService(db, settings, dispatcher)
	classroom := NewClassroomService(db, settings, dispatcher)
	sweep := NewSweepService(db, settings, dispatcher)
	retiro := NewRetiroService(db, settings, dispatcher, gate)
	just := NewJustificacionService(db, dispatcher)

	return &fixture{
		t: t, db: db, inst: inst,
		transport: transport, settings: settings, dispatcher: dispatcher,
		gate: gate, classroom: classroom, sweep: sweep, retiro: retiro, just: just,
	}
}

func (f *fixture) student(code string) models.Student {
	f.t.Helper()
	st := models.Student{
		InstitutionID: f.inst.ID,
		Code:          code,
		FirstName:     "Alumno",
		LastName:      code,
		Grade:         "5to",
		Section:       "B",
		Status:        models.StudentActive,
	}
	if err := f.db.Create(&st).Error; err != nil {
		f.t.Fatalf("seed student %s: %v", code, err)
	}
	return st
}

func (f *fixture) guardianFor(st models.Student, email, phone string) models.Guardian {
	f.t.Helper()
	g := models.Guardian{Email: email, Phone: phone, Password: "x", Name: "Apoderado " + st.Code}
	if err := f.db.Create(&g).Error; err != nil {
		f.t.Fatalf("seed guardian: %v", err)
	}
	link := models.GuardianStudent{GuardianID: g.ID, StudentID: st.ID, Relationship: "madre", Primary: true}
	if err := f.db.Create(&link).Error; err != nil {
		f.t.Fatalf("seed guardian link: %v", err)
	}
	return g
}

func (f *fixture) staff(role string) Actor {
	return Actor{ID: 1, Role: role, InstitutionID: f.inst.ID}
}

func (f *fixture) guardianActor(g models.Guardian) Actor {
	return Actor{ID: g.ID, Role: models.RoleGuardian}
}

// monday is a fixed working day (2026-03-02 fell on a Monday).
func monday(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

// marchDay picks other days of the same week.
func marchDay(day, hour, min int) time.Time {
	return time.Date(2026, 3, day, hour, min, 0, 0, time.UTC)
}

const mondayDate = "2026-03-02"
