package store

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"

	"dhwani/internal/kv"
)

// DecodeError reports a persisted blob that could not be read back.
// Stores recover from it by substituting defaults; it is only logged.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var (
	ErrEmptyTask   = errors.New("reminder task is empty")
	ErrInvalidTime = errors.New("reminder time must be HH:MM")
)

// load reads key into v. It returns found=false when the key is absent and
// a *DecodeError when the stored bytes are unusable. Any other error comes
// from the store itself and means nothing is known about the stored value.
func load(db kv.Store, key string, v any) (found bool, err error) {
	raw, err := db.Get(key)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, &DecodeError{Key: key, Err: err}
	}
	return true, nil
}

func save(db kv.Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := db.Set(key, raw); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func isDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func warnDecode(err error) {
	log.Warn("Discarding unreadable stored data", "err", err)
}
