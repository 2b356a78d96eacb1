package speech

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhwani/pkg/lang"
)

type fakeCapture struct {
	mu        sync.Mutex
	available bool
	startErr  error
	active    bool
	locales   []string
	listener  CaptureListener
	starts    int
	stops     int
}

func (f *fakeCapture) Available() bool { return f.available }

func (f *fakeCapture) Start(locale string, l CaptureListener) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	f.locales = append(f.locales, locale)
	f.listener = l
	return nil
}

func (f *fakeCapture) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.active = false
}

func (f *fakeCapture) current() CaptureListener {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	return f.listener
}

func (f *fakeCapture) isActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

type fakeSynth struct {
	mu        sync.Mutex
	available bool
	active    bool
	spoken    []string
	listener  SynthesisListener
	cancels   int
}

func (f *fakeSynth) Available() bool { return f.available }

func (f *fakeSynth) Speak(text, locale string, l SynthesisListener) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = true
	f.spoken = append(f.spoken, text+"@"+locale)
	f.listener = l
	return nil
}

func (f *fakeSynth) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	f.active = false
}

func (f *fakeSynth) current() SynthesisListener {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	return f.listener
}

func (f *fakeSynth) isActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

type keyTranslator struct{}

func (keyTranslator) T(key string, l lang.Language) string { return key + "/" + string(l) }

type harness struct {
	ctl     *Controller
	capture *fakeCapture
	synth   *fakeSynth
	prefs   Preferences

	mu          sync.Mutex
	results     []string
	errs        []*Error
	transitions []Transition
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		capture: &fakeCapture{available: true},
		synth:   &fakeSynth{available: true},
		prefs:   Preferences{Language: lang.Hindi, VoiceEnabled: true},
	}
	h.ctl = NewController(h.capture, h.synth, func() Preferences { return h.prefs }, keyTranslator{}, Handlers{
		OnResult: func(text string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.results = append(h.results, text)
		},
		OnError: func(err *Error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.errs = append(h.errs, err)
		},
		OnState: func(tr Transition) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.transitions = append(h.transitions, tr)
		},
	})
	return h
}

func (h *harness) checkTransitions(t *testing.T) {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := Idle
	for i, tr := range h.transitions {
		require.True(t, Allowed[tr], "transition %d %v->%v not allowed", i, tr.From, tr.To)
		require.Equal(t, prev, tr.From, "transition %d does not continue from %v", i, prev)
		prev = tr.To
	}
	require.Equal(t, prev, h.ctl.State(), "last reported state differs from controller state")
}

func TestStartListeningUnavailable(t *testing.T) {
	h := newHarness(t)
	h.capture.available = false

	err := h.ctl.StartListening()

	require.Error(t, err)
	assert.True(t, IsKind(err, CapabilityUnavailable))
	assert.Equal(t, "errorSpeech/hi", err.Error())
	assert.Equal(t, Idle, h.ctl.State())
	require.Len(t, h.errs, 1)
	assert.Equal(t, CapabilityUnavailable, h.errs[0].Kind)
	assert.Zero(t, h.capture.starts)
}

func TestCaptureResultMovesToProcessing(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.ctl.StartListening())
	assert.Equal(t, Listening, h.ctl.State())
	assert.Equal(t, []string{"hi-IN"}, h.capture.locales)

	h.capture.current().Result("पानी कब दें")
	assert.Equal(t, Processing, h.ctl.State())
	assert.Equal(t, []string{"पानी कब दें"}, h.results)

	// the platform usually follows a result with an end event
	h.capture.listener.End()
	assert.Equal(t, Processing, h.ctl.State())

	h.ctl.FinishProcessing()
	assert.Equal(t, Idle, h.ctl.State())
	h.checkTransitions(t)
}

func TestCaptureErrorReturnsToIdle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctl.StartListening())

	h.capture.current().Error(errors.New("no-speech"))

	assert.Equal(t, Idle, h.ctl.State())
	require.Len(t, h.errs, 1)
	assert.Equal(t, RecognitionFailure, h.errs[0].Kind)
	assert.Equal(t, "errorMic/hi", h.errs[0].Message)
	assert.Empty(t, h.results)
	h.checkTransitions(t)
}

func TestCaptureEndWithoutResultIsSilent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctl.StartListening())

	h.capture.current().End()

	assert.Equal(t, Idle, h.ctl.State())
	assert.Empty(t, h.errs)
	h.checkTransitions(t)
}

func TestCaptureStartFailure(t *testing.T) {
	h := newHarness(t)
	h.capture.startErr = errors.New("device busy")

	err := h.ctl.StartListening()

	assert.True(t, IsKind(err, RecognitionFailure))
	assert.Equal(t, Idle, h.ctl.State())
	require.Len(t, h.errs, 1)
	h.checkTransitions(t)
}

func TestRestartSupersedesPriorCapture(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctl.StartListening())
	first := h.capture.listener

	require.NoError(t, h.ctl.StartListening())
	assert.Equal(t, 1, h.capture.stops)
	assert.Equal(t, 2, h.capture.starts)
	assert.Equal(t, Listening, h.ctl.State())

	first.Result("old")
	first.Error(errors.New("old"))
	assert.Equal(t, Listening, h.ctl.State())
	assert.Empty(t, h.results)
	assert.Empty(t, h.errs)

	h.capture.current().Result("new")
	assert.Equal(t, []string{"new"}, h.results)
	h.checkTransitions(t)
}

func TestStopListeningDropsLateResult(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctl.StartListening())
	l := h.capture.listener

	h.ctl.StopListening()
	assert.Equal(t, Idle, h.ctl.State())
	assert.Equal(t, 1, h.capture.stops)

	l.Result("too late")
	assert.Equal(t, Idle, h.ctl.State())
	assert.Empty(t, h.results)
	h.checkTransitions(t)
}

func TestStopListeningFromProcessing(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctl.StartListening())
	h.capture.current().Result("x")

	h.ctl.StopListening()
	assert.Equal(t, Idle, h.ctl.State())

	// the pipeline finishing afterwards is harmless
	h.ctl.FinishProcessing()
	assert.Equal(t, Idle, h.ctl.State())
	h.checkTransitions(t)
}

func TestStartWhileProcessingIsBusy(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctl.StartListening())
	h.capture.current().Result("x")

	assert.ErrorIs(t, h.ctl.StartListening(), ErrBusy)
	assert.Equal(t, Processing, h.ctl.State())
}

func TestSpeakVoiceDisabled(t *testing.T) {
	h := newHarness(t)
	h.prefs.VoiceEnabled = false

	done := 0
	h.ctl.Speak("hello", func() { done++ })

	assert.Equal(t, 1, done)
	assert.Equal(t, Idle, h.ctl.State())
	assert.Empty(t, h.synth.spoken)
	assert.Empty(t, h.transitions)
}

func TestSpeakCompletes(t *testing.T) {
	h := newHarness(t)

	done := 0
	h.ctl.Speak("hello", func() { done++ })
	assert.Equal(t, Speaking, h.ctl.State())
	assert.Equal(t, []string{"hello@hi-IN"}, h.synth.spoken)
	assert.Zero(t, done)

	h.synth.current().Done()
	assert.Equal(t, Idle, h.ctl.State())
	assert.Equal(t, 1, done)

	// duplicate platform events are ignored
	h.synth.listener.Done()
	assert.Equal(t, 1, done)
	h.checkTransitions(t)
}

func TestSpeakErrorStillCallsDone(t *testing.T) {
	h := newHarness(t)
	done := 0
	h.ctl.Speak("hello", func() { done++ })

	h.synth.current().Error(errors.New("audio device lost"))

	assert.Equal(t, Idle, h.ctl.State())
	assert.Equal(t, 1, done)
	assert.Empty(t, h.errs)
}

func TestSpeakSupersedesPriorSynthesis(t *testing.T) {
	h := newHarness(t)
	var done []string
	h.ctl.Speak("one", func() { done = append(done, "one") })
	first := h.synth.listener

	h.ctl.Speak("two", func() { done = append(done, "two") })
	assert.Equal(t, 1, h.synth.cancels)
	assert.Equal(t, Speaking, h.ctl.State())

	first.Done()
	assert.Equal(t, Speaking, h.ctl.State())
	assert.Empty(t, done)

	h.synth.current().Done()
	assert.Equal(t, []string{"two"}, done)
	assert.Equal(t, Idle, h.ctl.State())
	h.checkTransitions(t)
}

func TestCancelSpeaking(t *testing.T) {
	h := newHarness(t)
	done := 0
	h.ctl.Speak("hello", func() { done++ })
	l := h.synth.listener

	h.ctl.CancelSpeaking()
	assert.Equal(t, Idle, h.ctl.State())
	assert.Equal(t, 1, h.synth.cancels)

	l.Done()
	assert.Zero(t, done)
	h.checkTransitions(t)
}

func TestCancelSpeakingWhenNotSpeaking(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctl.StartListening())

	h.ctl.CancelSpeaking()
	assert.Equal(t, Listening, h.ctl.State())
	assert.Zero(t, h.synth.cancels)
}

func TestSpeakWhileListeningStopsCapture(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctl.StartListening())
	l := h.capture.listener

	h.ctl.Speak("reply", nil)
	assert.Equal(t, Speaking, h.ctl.State())
	assert.Equal(t, 1, h.capture.stops)

	l.Result("late")
	assert.Equal(t, Speaking, h.ctl.State())
	assert.Empty(t, h.results)
	h.checkTransitions(t)
}

func TestListenWhileSpeakingCancelsSynthesis(t *testing.T) {
	h := newHarness(t)
	done := 0
	h.ctl.Speak("reply", func() { done++ })
	l := h.synth.listener

	require.NoError(t, h.ctl.StartListening())
	assert.Equal(t, Listening, h.ctl.State())
	assert.Equal(t, 1, h.synth.cancels)

	l.Done()
	assert.Equal(t, Listening, h.ctl.State())
	assert.Zero(t, done)
	h.checkTransitions(t)
}

func TestSpeakSynthUnavailable(t *testing.T) {
	h := newHarness(t)
	h.synth.available = false

	done := 0
	h.ctl.Speak("hello", func() { done++ })

	assert.Equal(t, 1, done)
	assert.Equal(t, Idle, h.ctl.State())
	require.Len(t, h.errs, 1)
	assert.Equal(t, CapabilityUnavailable, h.errs[0].Kind)
	assert.Equal(t, "errorVoice/hi", h.errs[0].Message)
}

func TestNilCapabilitiesAreUnavailable(t *testing.T) {
	ctl := NewController(nil, nil, func() Preferences {
		return Preferences{Language: lang.English, VoiceEnabled: true}
	}, keyTranslator{}, Handlers{})

	assert.True(t, IsKind(ctl.StartListening(), CapabilityUnavailable))

	done := false
	ctl.Speak("x", func() { done = true })
	assert.True(t, done)
	assert.Equal(t, Idle, ctl.State())
}

// TestRandomSequencesKeepOneActiveMode drives the controller with random
// API calls and platform events and checks that capture and synthesis are
// never active together and that every reported transition is legal.
func TestRandomSequencesKeepOneActiveMode(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		h := newHarness(t)

		for step := 0; step < 200; step++ {
			switch rng.Intn(10) {
			case 0:
				_ = h.ctl.StartListening()
			case 1:
				h.ctl.StopListening()
			case 2:
				h.ctl.Speak("text", nil)
			case 3:
				h.ctl.CancelSpeaking()
			case 4:
				h.ctl.FinishProcessing()
			case 5:
				if l := h.capture.listener; l != nil {
					h.capture.current()
					l.Result("utterance")
				}
			case 6:
				if l := h.capture.listener; l != nil {
					h.capture.current()
					l.Error(errors.New("boom"))
				}
			case 7:
				if l := h.capture.listener; l != nil {
					h.capture.current()
					l.End()
				}
			case 8:
				if l := h.synth.listener; l != nil {
					h.synth.current()
					l.Done()
				}
			case 9:
				if l := h.synth.listener; l != nil {
					h.synth.current()
					l.Error(errors.New("boom"))
				}
			}

			require.False(t, h.capture.isActive() && h.synth.isActive(),
				"seed %d step %d: capture and synthesis both active", seed, step)
			st := h.ctl.State()
			if h.capture.isActive() {
				require.Equal(t, Listening, st, "seed %d step %d", seed, step)
			}
			if h.synth.isActive() {
				require.Equal(t, Speaking, st, "seed %d step %d", seed, step)
			}
		}
		h.checkTransitions(t)
	}
}
