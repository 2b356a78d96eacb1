// Package audio records utterances from the default microphone.
package audio

import (
	"context"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate       = 16000
	frameSize        = 320 // 20ms
	frameDur         = 20 * time.Millisecond
	silenceThreshRMS = 0.015
)

type Recorder struct {
	// Silence ends an utterance once speech has started.
	Silence time.Duration
	// MaxLength caps an utterance; NoSpeech gives up when nobody talks.
	MaxLength time.Duration
	NoSpeech  time.Duration
}

func NewRecorder() *Recorder {
	return &Recorder{
		Silence:   600 * time.Millisecond,
		MaxLength: 10 * time.Second,
		NoSpeech:  5 * time.Second,
	}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record implements capture.Source.
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	return r.RecordAuto(ctx)
}

// RecordAuto records until the speaker pauses, MaxLength passes, or ctx
// is done. It returns nothing if no speech was heard.
func (r *Recorder) RecordAuto(ctx context.Context) ([]float32, error) {
	buf := make([]float32, frameSize)
	out := make([]float32, 0, SampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking      bool
		silenceFrames int
	)
	maxFrames := int(r.MaxLength / frameDur)
	idleFrames := int(r.NoSpeech / frameDur)
	endFrames := int(r.Silence / frameDur)

	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}

		if frameRMS(buf) > silenceThreshRMS {
			speaking = true
			silenceFrames = 0
			out = append(out, buf...)
			continue
		}
		if !speaking {
			if i >= idleFrames {
				return nil, nil
			}
			continue
		}
		silenceFrames++
		if silenceFrames >= endFrames {
			break
		}
		out = append(out, buf...)
	}

	return out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
