// Package notify arms one-shot local alerts for reminders.
package notify

type Permission int

const (
	Default Permission = iota // not asked yet
	Granted
	Denied
)

func (p Permission) String() string {
	switch p {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "default"
	}
}

// Notifier shows a local alert.
type Notifier interface {
	Permission() Permission
	RequestPermission() Permission
	Fire(title, body string) error
}

// Discard is a Notifier that is never granted.
type Discard struct{}

func (Discard) Permission() Permission        { return Denied }
func (Discard) RequestPermission() Permission { return Denied }
func (Discard) Fire(string, string) error     { return nil }
