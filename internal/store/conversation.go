package store

import (
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"dhwani/internal/kv"
)

// HistoryLimit is the number of chat entries kept; older ones are dropped.
const HistoryLimit = 50

// Conversation is the capped, append-only chat log.
type Conversation struct {
	mu  sync.Mutex
	db  kv.Store
	now func() time.Time
}

func NewConversation(db kv.Store, now func() time.Time) *Conversation {
	if now == nil {
		now = time.Now
	}
	return &Conversation{db: db, now: now}
}

// Append records a message and trims the log to HistoryLimit entries.
func (c *Conversation) Append(role Role, text string) (ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: c.now(),
	}

	history, err := c.read()
	if err != nil {
		return msg, fmt.Errorf("append %s message: %w", role, err)
	}
	history = append(history, msg)
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}

	if err := save(c.db, KeyChat, history); err != nil {
		return msg, fmt.Errorf("append %s message: %w", role, err)
	}
	return msg, nil
}

// All returns the log oldest first, or nothing when the store cannot be read.
func (c *Conversation) All() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	history, err := c.read()
	if err != nil {
		log.Error("Failed to read history", "err", err)
		return []ChatMessage{}
	}
	return history
}

func (c *Conversation) Len() int {
	return len(c.All())
}

func (c *Conversation) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.db.Delete(KeyChat); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (c *Conversation) read() ([]ChatMessage, error) {
	var history []ChatMessage
	if _, err := load(c.db, KeyChat, &history); err != nil {
		if !isDecode(err) {
			return nil, err
		}
		warnDecode(err)
		return []ChatMessage{}, nil
	}
	if history == nil {
		history = []ChatMessage{}
	}
	return history, nil
}
