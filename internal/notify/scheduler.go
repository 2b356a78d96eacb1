package notify

import (
	log "log/slog"
	"sort"
	"sync"
	"time"

	"dhwani/internal/clock"
	"dhwani/internal/store"
	"dhwani/pkg/lang"
)

// Gate reports whether alerts are currently wanted and in which language.
type Gate func() (enabled bool, l lang.Language)

type Translator interface {
	T(key string, l lang.Language) string
}

type armed struct {
	timer clock.Timer
	seq   uint64
}

// Scheduler keeps at most one pending timer per reminder. Timers live in
// memory only; alerts armed before a restart are lost.
type Scheduler struct {
	notifier Notifier
	clock    clock.Clock
	gate     Gate
	tr       Translator

	mu      sync.Mutex
	seq     uint64
	pending map[string]armed
	onFire  func(r store.Reminder)
}

func NewScheduler(n Notifier, c clock.Clock, gate Gate, tr Translator) *Scheduler {
	return &Scheduler{
		notifier: n,
		clock:    c,
		gate:     gate,
		tr:       tr,
		pending:  make(map[string]armed),
	}
}

// NextOccurrence is the first instant at or after now's minute where the
// wall clock reads hhmm; a time that is not strictly ahead rolls to tomorrow.
func NextOccurrence(now time.Time, hhmm string) (time.Time, error) {
	minute, err := store.ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := now.Date()
	target := time.Date(y, m, d, minute/60, minute%60, 0, 0, now.Location())
	if !target.After(now) {
		target = time.Date(y, m, d+1, minute/60, minute%60, 0, 0, now.Location())
	}
	return target, nil
}

// Schedule arms an alert for the reminder's next occurrence. It reports
// the fire time and whether a timer was armed; without permission it
// quietly does nothing.
func (s *Scheduler) Schedule(r store.Reminder) (time.Time, bool) {
	enabled, _ := s.gate()
	if !enabled {
		log.Debug("Notifications disabled, not scheduling", "id", r.ID)
		return time.Time{}, false
	}
	if p := s.notifier.Permission(); p != Granted {
		log.Debug("Notification permission not granted", "id", r.ID, "permission", p)
		return time.Time{}, false
	}

	now := s.clock.Now()
	at, err := NextOccurrence(now, r.Time)
	if err != nil {
		log.Warn("Cannot schedule reminder", "id", r.ID, "err", err)
		return time.Time{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.pending[r.ID]; ok {
		a.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.pending[r.ID] = armed{
		timer: s.clock.AfterFunc(at.Sub(now), func() { s.fire(r, seq) }),
		seq:   seq,
	}

	log.Info("Reminder scheduled", "id", r.ID, "task", r.Task, "at", at.Format(time.DateTime))
	return at, true
}

// RearmAll schedules every reminder and returns how many were armed.
func (s *Scheduler) RearmAll(rs []store.Reminder) int {
	n := 0
	for _, r := range rs {
		if _, ok := s.Schedule(r); ok {
			n++
		}
	}
	return n
}

// Cancel disarms the reminder's pending alert, if any.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.pending[id]
	if !ok {
		return false
	}
	a.timer.Stop()
	delete(s.pending, id)
	return true
}

// Stop disarms everything.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.pending {
		a.timer.Stop()
		delete(s.pending, id)
	}
}

// Pending lists the ids with an armed alert.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OnFire sets fn to run after each alert is handed to the notifier.
func (s *Scheduler) OnFire(fn func(r store.Reminder)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFire = fn
}

func (s *Scheduler) fire(r store.Reminder, seq uint64) {
	s.mu.Lock()
	if a, ok := s.pending[r.ID]; !ok || a.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.pending, r.ID)
	onFire := s.onFire
	s.mu.Unlock()

	_, l := s.gate()
	if err := s.notifier.Fire(s.tr.T("notificationTitle", l), r.Task); err != nil {
		log.Warn("Failed to show reminder", "id", r.ID, "err", err)
		return
	}
	log.Info("Reminder fired", "id", r.ID, "task", r.Task)
	if onFire != nil {
		onFire(r)
	}
}
