package store

import (
	"fmt"
	log "log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dhwani/internal/kv"
)

const minutesPerDay = 24 * 60

// Reminders is the set of scheduled farm tasks.
type Reminders struct {
	mu  sync.Mutex
	db  kv.Store
	now func() time.Time
}

// Due is a reminder together with the minutes left until it next occurs.
type Due struct {
	Reminder Reminder
	Minutes  int
}

func NewReminders(db kv.Store, now func() time.Time) *Reminders {
	if now == nil {
		now = time.Now
	}
	return &Reminders{db: db, now: now}
}

// List returns reminders in insertion order, seeding defaults on first run.
// It returns nothing when the store cannot be read.
func (r *Reminders) List() []Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.read()
	if err != nil {
		log.Error("Failed to read reminders", "err", err)
		return nil
	}
	return list
}

func (r *Reminders) Get(id string) (Reminder, bool) {
	for _, rem := range r.List() {
		if rem.ID == id {
			return rem, true
		}
	}
	return Reminder{}, false
}

func (r *Reminders) Add(task, at string) (Reminder, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return Reminder{}, ErrEmptyTask
	}
	minute, err := ParseClock(at)
	if err != nil {
		return Reminder{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rem := Reminder{
		ID:        uuid.NewString(),
		Task:      task,
		Time:      clockString(minute),
		CreatedAt: r.now(),
	}
	list, err := r.read()
	if err != nil {
		return Reminder{}, fmt.Errorf("add reminder: %w", err)
	}
	list = append(list, rem)
	if err := save(r.db, KeyReminders, list); err != nil {
		return Reminder{}, fmt.Errorf("add reminder: %w", err)
	}
	return rem, nil
}

// Remove deletes the reminder with id and reports whether it existed.
func (r *Reminders) Remove(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.read()
	if err != nil {
		return false, fmt.Errorf("remove reminder: %w", err)
	}
	kept := make([]Reminder, 0, len(list))
	for _, rem := range list {
		if rem.ID != id {
			kept = append(kept, rem)
		}
	}
	if len(kept) == len(list) {
		return false, nil
	}
	if err := save(r.db, KeyReminders, kept); err != nil {
		return false, fmt.Errorf("remove reminder: %w", err)
	}
	return true, nil
}

// NextDue returns the reminder that comes up soonest after now, wrapping
// past midnight. Ties keep the earlier entry.
func (r *Reminders) NextDue(now time.Time) (Due, bool) {
	nowMinute := MinuteOfDay(now)

	var (
		best  Due
		found bool
	)
	for _, rem := range r.List() {
		m, err := ParseClock(rem.Time)
		if err != nil {
			log.Warn("Skipping reminder with bad time", "id", rem.ID, "time", rem.Time)
			continue
		}
		delta := MinutesUntil(nowMinute, m)
		if !found || delta < best.Minutes {
			best = Due{Reminder: rem, Minutes: delta}
			found = true
		}
	}
	return best, found
}

// read reseeds a missing or undecodable list. A failed read is returned
// as is so that nothing gets written over data that may still be there.
func (r *Reminders) read() ([]Reminder, error) {
	var list []Reminder
	found, err := load(r.db, KeyReminders, &list)
	switch {
	case isDecode(err):
		warnDecode(err)
		return r.seed(), nil
	case err != nil:
		return nil, err
	case !found:
		return r.seed(), nil
	}
	if list == nil {
		list = []Reminder{}
	}
	return list, nil
}

func (r *Reminders) seed() []Reminder {
	now := r.now()
	defaults := []Reminder{
		{ID: "1", Task: "Irrigate Field 1", Time: "06:00", CreatedAt: now.Add(-24 * time.Hour)},
		{ID: "2", Task: "Pesticide Spraying", Time: "17:00", CreatedAt: now.Add(-12 * time.Hour)},
	}
	if err := save(r.db, KeyReminders, defaults); err != nil {
		log.Warn("Failed to persist default reminders", "err", err)
	}
	log.Debug("Seeded default reminders")
	return defaults
}

// MinuteOfDay reduces t to its wall-clock minute in [0, 1440).
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// MinutesUntil is (target - now) mod 1440.
func MinutesUntil(now, target int) int {
	if target >= now {
		return target - now
	}
	return minutesPerDay - now + target
}

// ParseClock parses "HH:MM" (one or two digit hour) into a minute of day.
func ParseClock(s string) (int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(ms) != 2 || len(hs) == 0 || len(hs) > 2 || !digits(hs) || !digits(ms) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return h*60 + m, nil
}

// FormatClock renders "17:05" as "5:05 PM". Unparseable input is returned as is.
func FormatClock(s string) string {
	m, err := ParseClock(s)
	if err != nil {
		return s
	}
	h := m / 60
	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m%60, period)
}

func digits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func clockString(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
