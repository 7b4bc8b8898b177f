package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"asistencia_backend/models"
)

// Settings is the schedule configuration of one institution, resolved to a
// usable form (loaded *time.Location, weekday set, precomputed late limits).
type Settings struct {
	InstitutionID  uint
	Location       *time.Location
	GateLimit      string // HH:MM; entries after this are LATE
	ClassroomLimit string // independent cutoff for scan-created classroom rows
	SweepCutoff    string
	WorkingDays    map[time.Weekday]bool
}

// LocalDate formats t as the institution-local calendar date.
func (s *Settings) LocalDate(t time.Time) string {
	return t.In(s.Location).Format("2006-01-02")
}

// LocalClock formats t as institution-local HH:MM.
func (s *Settings) LocalClock(t time.Time) string {
	return t.In(s.Location).Format("15:04")
}

func (s *Settings) IsWorkingDay(t time.Time) bool {
	return s.WorkingDays[t.In(s.Location).Weekday()]
}

// SettingsProvider loads institution schedule settings with a short TTL cache
// in front of the settings table; cutoffs change rarely but are read on every
// gate scan.
type SettingsProvider struct {
	db    *gorm.DB
	cache *cache.Cache
}

func NewSettingsProvider(db *gorm.DB) *SettingsProvider {
	return &SettingsProvider{
		db:    db,
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (p *SettingsProvider) Get(institutionID uint) (*Settings, error) {
	key := fmt.Sprintf("inst:%d", institutionID)
	if v, ok := p.cache.Get(key); ok {
		return v.(*Settings), nil
	}

	var inst models.Institution
	if err := p.db.First(&inst, institutionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	loc, err := time.LoadLocation(inst.Timezone)
	if err != nil {
		return nil, fmt.Errorf("institution %d: bad timezone %q: %w", inst.ID, inst.Timezone, err)
	}

	days := make(map[time.Weekday]bool, len(inst.WorkingDays))
	for _, d := range inst.WorkingDays {
		days[time.Weekday(d)] = true
	}

	s := &Settings{
		InstitutionID:  inst.ID,
		Location:       loc,
		GateLimit:      addMinutes(inst.GateEntryTime, inst.GateToleranceMin),
		ClassroomLimit: addMinutes(inst.ClassroomEntryTime, inst.ClassroomToleranceMin),
		SweepCutoff:    inst.SweepCutoff,
		WorkingDays:    days,
	}
	p.cache.Set(key, s, cache.DefaultExpiration)
	return s, nil
}

// Invalidate drops the cached settings after an admin update.
func (p *SettingsProvider) Invalidate(institutionID uint) {
	p.cache.Delete(fmt.Sprintf("inst:%d", institutionID))
}

// addMinutes shifts an HH:MM clock string by n minutes, clamped to the same
// day. A tolerance that would wrap past midnight pins the limit at 23:59;
// wrapping to "00:xx" would invert the lexicographic cutoff compare.
func addMinutes(clock string, n int) string {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return clock
	}
	shifted := t.Add(time.Duration(n) * time.Minute)
	if shifted.Day() != t.Day() {
		return "23:59"
	}
	return shifted.Format("15:04")
}
