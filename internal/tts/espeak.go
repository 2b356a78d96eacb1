// Package tts speaks text through espeak-ng.
package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <string.h>
#include <espeak-ng/speak_lib.h>

static int
dh_init(void)
{
	return espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0);
}

static int
dh_voice(const char *lang)
{
	espeak_VOICE specs;
	memset(&specs, 0, sizeof(specs));
	specs.languages = lang;
	return espeak_SetVoiceByProperties(&specs);
}

static int
dh_rate(int wpm)
{
	return espeak_SetParameter(espeakRATE, wpm, 0);
}

static int
dh_say(const char *text)
{
	if (!text)
	{ return -1; }

	espeak_ERROR rc = espeak_Synth(text, strlen(text) + 1, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL);
	if (rc != EE_OK)
	{ return rc; }
	return espeak_Synchronize();
}

static void
dh_cancel(void)
{
	espeak_Cancel();
}

static void
dh_terminate(void)
{
	espeak_Terminate();
}
*/
import "C"

import (
	"fmt"
	log "log/slog"
	"sync"
	"unsafe"

	"dhwani/internal/speech"
	"dhwani/pkg/lang"
)

// normalRate is espeak's default speed in words per minute.
const normalRate = 175

type Espeak struct {
	rate int

	sayMu sync.Mutex // one utterance at a time
	mu    sync.Mutex
	gen   uint64
	wg    sync.WaitGroup
}

// New initialises espeak; speed is relative to normal, e.g. 0.9.
func New(speed float64) (*Espeak, error) {
	if rc := C.dh_init(); rc < 0 {
		return nil, fmt.Errorf("espeak init failed: %d", int(rc))
	}
	if speed <= 0 {
		speed = 1
	}
	return &Espeak{rate: int(normalRate * speed)}, nil
}

func (e *Espeak) Available() bool { return true }

// Speak returns at once; l hears about the outcome unless Cancel is
// called first.
func (e *Espeak) Speak(text, locale string, l speech.SynthesisListener) error {
	if text == "" {
		l.Done()
		return nil
	}

	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := e.say(gen, text, voiceFor(locale))
		if !e.current(gen) {
			return
		}
		if err != nil {
			l.Error(err)
			return
		}
		l.Done()
	}()
	return nil
}

func (e *Espeak) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.gen
}

func (e *Espeak) say(gen uint64, text, voice string) error {
	e.sayMu.Lock()
	defer e.sayMu.Unlock()
	if !e.current(gen) {
		return nil
	}

	cvoice := C.CString(voice)
	defer C.free(unsafe.Pointer(cvoice))
	if rc := C.dh_voice(cvoice); rc != 0 {
		log.Warn("espeak voice not found, using default", "voice", voice, "rc", int(rc))
	}
	C.dh_rate(C.int(e.rate))

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	if rc := C.dh_say(ctext); rc != 0 {
		return fmt.Errorf("espeak_say failed: %d", int(rc))
	}
	return nil
}

func (e *Espeak) Cancel() {
	e.mu.Lock()
	e.gen++
	e.mu.Unlock()
	C.dh_cancel()
}

func (e *Espeak) Close() {
	e.Cancel()
	e.wg.Wait()
	C.dh_terminate()
}

// voiceFor maps "hi-IN" to espeak's "hi".
func voiceFor(locale string) string {
	if code := lang.FromLocale(locale); code != "" {
		return code
	}
	return string(lang.Default)
}
