// Package speech drives one voice session at a time: capturing an
// utterance, handing it off for processing, and speaking a reply.
package speech

type State int

const (
	Idle State = iota
	Listening
	Processing
	Speaking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case Speaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Label is the catalog key of the user-facing state label.
func (s State) Label() string {
	switch s {
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case Speaking:
		return "speaking"
	default:
		return "tapToSpeak"
	}
}

// Transition is one edge of the session state machine.
type Transition struct {
	From State
	To   State
}

// Allowed lists every edge the controller may take.
var Allowed = map[Transition]bool{
	{Idle, Listening}:       true,
	{Listening, Processing}: true,
	{Processing, Idle}:      true,
	{Listening, Idle}:       true,
	{Idle, Speaking}:        true,
	{Speaking, Idle}:        true,
}
