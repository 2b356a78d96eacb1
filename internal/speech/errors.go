package speech

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// CapabilityUnavailable: the runtime has no capture or synthesis.
	CapabilityUnavailable ErrorKind = iota + 1
	// RecognitionFailure: capture started but did not produce text.
	RecognitionFailure
)

func (k ErrorKind) String() string {
	switch k {
	case CapabilityUnavailable:
		return "capability_unavailable"
	case RecognitionFailure:
		return "recognition_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a user-facing speech error. Message is already localized; the
// underlying cause, if any, stays in Err for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrNoCapability = errors.New("speech: capability not available")
	ErrBusy         = errors.New("speech: still processing the last request")
)

// IsKind reports whether err is a speech *Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}
