package store

import (
	"fmt"
	log "log/slog"
	"sync"

	"dhwani/internal/kv"
)

// SettingsStore owns the installation-wide settings. Update is the only
// way to change them; it merges, persists and notifies in one step.
type SettingsStore struct {
	mu      sync.RWMutex
	db      kv.Store
	current Settings
	subs    []func(Settings)
}

// LoadSettings reads persisted settings, falling back to defaults for a
// missing or unreadable blob and for fields the blob leaves out.
func LoadSettings(db kv.Store) *SettingsStore {
	s := DefaultSettings()
	if _, err := load(db, KeySettings, &s); err != nil {
		if isDecode(err) {
			warnDecode(err)
		} else {
			log.Error("Failed to read settings, using defaults", "err", err)
		}
		s = DefaultSettings()
	}
	if !s.Language.Valid() {
		log.Warn("Unknown stored language, using default", "language", s.Language)
		s.Language = DefaultSettings().Language
	}
	return &SettingsStore{db: db, current: s}
}

func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies p as one merge. Fields changed together land together.
func (s *SettingsStore) Update(p Patch) (Settings, error) {
	if p.Language != nil && !p.Language.Valid() {
		return s.Get(), fmt.Errorf("unsupported language %q", *p.Language)
	}

	s.mu.Lock()
	next := s.current.Merge(p)
	s.current = next
	subs := append([]func(Settings){}, s.subs...)
	err := save(s.db, KeySettings, next)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	if err != nil {
		return next, fmt.Errorf("save settings: %w", err)
	}
	return next, nil
}

// Subscribe registers fn to run after every Update.
func (s *SettingsStore) Subscribe(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}
