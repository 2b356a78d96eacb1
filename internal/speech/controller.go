package speech

import (
	log "log/slog"
	"sync"

	"dhwani/pkg/lang"
)

// Preferences are read at the start of every capture or synthesis.
type Preferences struct {
	Language     lang.Language
	VoiceEnabled bool
}

type Translator interface {
	T(key string, l lang.Language) string
}

// Handlers are called outside the controller lock, in the order the
// triggering events were processed.
type Handlers struct {
	// OnResult receives recognized text. The controller is in Processing
	// until FinishProcessing is called.
	OnResult func(text string)
	OnError  func(err *Error)
	OnState  func(t Transition)
}

// Controller is the voice session state machine. Capture and synthesis
// share one state field, so at most one of them is active.
type Controller struct {
	capture Capture
	synth   Synthesizer
	prefs   func() Preferences
	tr      Translator
	h       Handlers

	mu         sync.Mutex
	state      State
	captureGen uint64
	capturing  bool
	speakGen   uint64
	speaking   bool
}

func NewController(capture Capture, synth Synthesizer, prefs func() Preferences, tr Translator, h Handlers) *Controller {
	if capture == nil {
		capture = Unavailable{}
	}
	if synth == nil {
		synth = Unavailable{}
	}
	return &Controller{
		capture: capture,
		synth:   synth,
		prefs:   prefs,
		tr:      tr,
		h:       h,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// notes collects what happened under the lock so it can be reported after.
type notes struct {
	transitions []Transition
	err         *Error
}

func (n *notes) move(c *Controller, to State) {
	from := c.state
	if from == to {
		return
	}
	if from != Idle && to != Idle {
		n.transitions = append(n.transitions, Transition{from, Idle})
		from = Idle
	}
	c.state = to
	n.transitions = append(n.transitions, Transition{from, to})
}

func (c *Controller) report(n notes) {
	if c.h.OnState != nil {
		for _, t := range n.transitions {
			c.h.OnState(t)
		}
	}
	if n.err != nil {
		log.Debug("Speech error", "kind", n.err.Kind, "err", n.err.Err)
		if c.h.OnError != nil {
			c.h.OnError(n.err)
		}
	}
}

func (c *Controller) newError(kind ErrorKind, key string, l lang.Language, cause error) *Error {
	return &Error{Kind: kind, Message: c.tr.T(key, l), Err: cause}
}

// StartListening opens a capture session. Any synthesis in progress is
// cancelled and a capture already running is superseded.
func (c *Controller) StartListening() error {
	p := c.prefs()

	if !c.capture.Available() {
		err := c.newError(CapabilityUnavailable, "errorSpeech", p.Language, ErrNoCapability)
		c.report(notes{err: err})
		return err
	}

	var n notes
	c.mu.Lock()
	if c.state == Processing {
		c.mu.Unlock()
		return ErrBusy
	}
	cancelSpeech := c.speaking
	if cancelSpeech {
		c.speakGen++
		c.speaking = false
	}
	stopCapture := c.capturing
	c.captureGen++
	gen := c.captureGen
	c.capturing = true
	n.move(c, Listening)
	c.mu.Unlock()

	if cancelSpeech {
		c.synth.Cancel()
	}
	if stopCapture {
		c.capture.Stop()
	}
	c.report(n)

	log.Debug("Listening", "locale", p.Language.Locale())
	if err := c.capture.Start(p.Language.Locale(), captureSession{c, gen}); err != nil {
		n = notes{}
		c.mu.Lock()
		if gen == c.captureGen && c.capturing {
			c.capturing = false
			n.move(c, Idle)
		}
		c.mu.Unlock()

		n.err = c.newError(RecognitionFailure, "errorMic", p.Language, err)
		c.report(n)
		return n.err
	}
	return nil
}

// StopListening returns to Idle from any state, ending capture and
// synthesis alike.
func (c *Controller) StopListening() {
	var n notes
	c.mu.Lock()
	stopCapture := c.capturing
	if stopCapture {
		c.captureGen++
		c.capturing = false
	}
	cancelSpeech := c.speaking
	if cancelSpeech {
		c.speakGen++
		c.speaking = false
	}
	n.move(c, Idle)
	c.mu.Unlock()

	if stopCapture {
		c.capture.Stop()
	}
	if cancelSpeech {
		c.synth.Cancel()
	}
	c.report(n)
}

// FinishProcessing ends the Processing phase once a reply is ready.
func (c *Controller) FinishProcessing() {
	var n notes
	c.mu.Lock()
	if c.state == Processing {
		n.move(c, Idle)
	}
	c.mu.Unlock()
	c.report(n)
}

// Speak says text and calls onDone when speech finishes or fails. With
// voice disabled onDone runs at once and nothing changes. A synthesis that
// is cancelled or replaced never calls its onDone.
func (c *Controller) Speak(text string, onDone func()) {
	if onDone == nil {
		onDone = func() {}
	}
	p := c.prefs()
	if !p.VoiceEnabled {
		onDone()
		return
	}
	if !c.synth.Available() {
		c.report(notes{err: c.newError(CapabilityUnavailable, "errorVoice", p.Language, ErrNoCapability)})
		onDone()
		return
	}

	var n notes
	c.mu.Lock()
	stopCapture := c.capturing
	if stopCapture {
		c.captureGen++
		c.capturing = false
	}
	cancelPrior := c.speaking
	c.speakGen++
	gen := c.speakGen
	c.speaking = true
	n.move(c, Speaking)
	c.mu.Unlock()

	if stopCapture {
		c.capture.Stop()
	}
	if cancelPrior {
		c.synth.Cancel()
	}
	c.report(n)

	if err := c.synth.Speak(text, p.Language.Locale(), speakSession{c, gen, onDone}); err != nil {
		log.Warn("Failed to start speech", "err", err)
		c.speechFinished(gen, onDone)
	}
}

// CancelSpeaking stops synthesis and returns to Idle. It does nothing
// unless the controller is speaking.
func (c *Controller) CancelSpeaking() {
	var n notes
	c.mu.Lock()
	if !c.speaking {
		c.mu.Unlock()
		return
	}
	c.speakGen++
	c.speaking = false
	n.move(c, Idle)
	c.mu.Unlock()

	c.synth.Cancel()
	c.report(n)
}

func (c *Controller) captureResult(gen uint64, text string) {
	var n notes
	c.mu.Lock()
	if gen != c.captureGen || !c.capturing {
		c.mu.Unlock()
		log.Debug("Dropping result of stale capture")
		return
	}
	c.capturing = false
	n.move(c, Processing)
	c.mu.Unlock()

	c.report(n)
	if c.h.OnResult != nil {
		c.h.OnResult(text)
	}
}

func (c *Controller) captureFailed(gen uint64, cause error) {
	var n notes
	c.mu.Lock()
	if gen != c.captureGen || !c.capturing {
		c.mu.Unlock()
		return
	}
	c.capturing = false
	n.move(c, Idle)
	c.mu.Unlock()

	n.err = c.newError(RecognitionFailure, "errorMic", c.prefs().Language, cause)
	c.report(n)
}

func (c *Controller) captureEnded(gen uint64) {
	var n notes
	c.mu.Lock()
	if gen == c.captureGen && c.capturing {
		c.capturing = false
		n.move(c, Idle)
	}
	c.mu.Unlock()
	c.report(n)
}

func (c *Controller) speechFinished(gen uint64, onDone func()) {
	var n notes
	c.mu.Lock()
	if gen != c.speakGen || !c.speaking {
		c.mu.Unlock()
		return
	}
	c.speaking = false
	n.move(c, Idle)
	c.mu.Unlock()

	c.report(n)
	onDone()
}

type captureSession struct {
	c   *Controller
	gen uint64
}

func (s captureSession) Result(text string) { s.c.captureResult(s.gen, text) }
func (s captureSession) Error(err error)    { s.c.captureFailed(s.gen, err) }
func (s captureSession) End()               { s.c.captureEnded(s.gen) }

type speakSession struct {
	c      *Controller
	gen    uint64
	onDone func()
}

func (s speakSession) Done() { s.c.speechFinished(s.gen, s.onDone) }

func (s speakSession) Error(err error) {
	log.Warn("Speech synthesis failed", "err", err)
	s.c.speechFinished(s.gen, s.onDone)
}
