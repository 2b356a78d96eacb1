package speech

// CaptureListener receives the outcome of one capture session. A session
// ends with exactly one of Result or Error, optionally followed by End, or
// with End alone when it was stopped. Hearing nothing is an Error.
type CaptureListener interface {
	Result(text string)
	Error(err error)
	End()
}

// Capture is a speech-to-text source such as a microphone plus recognizer.
type Capture interface {
	Available() bool
	// Start begins a session tagged with a locale such as "hi-IN".
	// It must not block until recognition completes.
	Start(locale string, l CaptureListener) error
	// Stop ends the current session. Stopping an idle capture is a no-op.
	Stop()
}

type SynthesisListener interface {
	Done()
	Error(err error)
}

// Synthesizer speaks text aloud.
type Synthesizer interface {
	Available() bool
	Speak(text, locale string, l SynthesisListener) error
	Cancel()
}

// Unavailable is a Capture and Synthesizer for hosts without audio.
type Unavailable struct{}

func (Unavailable) Available() bool                               { return false }
func (Unavailable) Start(string, CaptureListener) error            { return ErrNoCapability }
func (Unavailable) Stop()                                          {}
func (Unavailable) Speak(string, string, SynthesisListener) error { return ErrNoCapability }
func (Unavailable) Cancel()                                        {}
