// Package store holds the assistant's persisted collections: chat history,
// reminders and settings. Each collection is one JSON blob in a kv.Store.
package store

import (
	"time"

	"dhwani/pkg/lang"
)

// Keys of the persisted blobs.
const (
	KeyReminders = "reminders"
	KeyChat      = "chat"
	KeySettings  = "settings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type Reminder struct {
	ID        string    `json:"id"`
	Task      string    `json:"task"`
	Time      string    `json:"time"` // HH:MM wall clock, no zone
	CreatedAt time.Time `json:"createdAt"`
}

type Settings struct {
	Language             lang.Language `json:"language"`
	NotificationsEnabled bool          `json:"notificationsEnabled"`
	VoiceEnabled         bool          `json:"voiceEnabled"`
	OfflineMode          bool          `json:"offlineMode"`
}

func DefaultSettings() Settings {
	return Settings{
		Language:             lang.Default,
		NotificationsEnabled: true,
		VoiceEnabled:         true,
		OfflineMode:          false,
	}
}

// Patch is a partial settings update; nil fields are left alone.
type Patch struct {
	Language             *lang.Language `json:"language,omitempty"`
	NotificationsEnabled *bool          `json:"notificationsEnabled,omitempty"`
	VoiceEnabled         *bool          `json:"voiceEnabled,omitempty"`
	OfflineMode          *bool          `json:"offlineMode,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Language == nil && p.NotificationsEnabled == nil &&
		p.VoiceEnabled == nil && p.OfflineMode == nil
}

func (s Settings) Merge(p Patch) Settings {
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.NotificationsEnabled != nil {
		s.NotificationsEnabled = *p.NotificationsEnabled
	}
	if p.VoiceEnabled != nil {
		s.VoiceEnabled = *p.VoiceEnabled
	}
	if p.OfflineMode != nil {
		s.OfflineMode = *p.OfflineMode
	}
	return s
}
