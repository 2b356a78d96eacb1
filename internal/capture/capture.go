// Package capture turns recorded audio into recognized text for the speech
// controller. Where the audio comes from, microphone or voice-note file, is
// a Source.
package capture

import (
	"context"
	"errors"
	log "log/slog"
	"sync"

	"dhwani/internal/speech"
)

// Source produces one utterance of 16 kHz mono PCM.
type Source interface {
	Record(ctx context.Context) ([]float32, error)
}

type Transcriber interface {
	Text(ctx context.Context, pcm []float32, locale string) (string, error)
}

var ErrNoSpeech = errors.New("no speech detected")

// Capture runs one record-then-transcribe job at a time. Starting a new
// job stops the previous one.
type Capture struct {
	src Source
	stt Transcriber

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(src Source, stt Transcriber) *Capture {
	return &Capture{src: src, stt: stt}
}

func (c *Capture) Available() bool {
	return c.src != nil && c.stt != nil
}

func (c *Capture) Start(locale string, l speech.CaptureListener) error {
	if !c.Available() {
		return speech.ErrNoCapability
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.run(ctx, locale, l)
	}()
	return nil
}

func (c *Capture) run(ctx context.Context, locale string, l speech.CaptureListener) {
	pcm, err := c.src.Record(ctx)
	if ctx.Err() != nil {
		l.End()
		return
	}
	if err != nil {
		l.Error(err)
		return
	}
	if len(pcm) == 0 {
		l.Error(ErrNoSpeech)
		return
	}
	log.Debug("Recorded", "samples", len(pcm))

	text, err := c.stt.Text(ctx, pcm, locale)
	switch {
	case ctx.Err() != nil:
		l.End()
	case err != nil:
		l.Error(err)
	case text == "":
		l.Error(ErrNoSpeech)
	default:
		log.Info("Heard", "text", text, "locale", locale)
		l.Result(text)
	}
}

func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Close stops the current job and waits for it to finish.
func (c *Capture) Close() {
	c.Stop()
	c.wg.Wait()
}
