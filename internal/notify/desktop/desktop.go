// Package desktop shows reminder alerts through notify-send and plays an
// optional mp3 chime on the default audio device.
package desktop

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"

	"dhwani/internal/notify"
)

const sendTimeout = 5 * time.Second

var ErrNoChime = errors.New("no chime configured")

type Notifier struct {
	// ChimePath is an mp3 played with every alert; empty disables it.
	ChimePath string
	AppName   string

	mu         sync.Mutex
	permission notify.Permission
	sendPath   string

	speakerOnce sync.Once
	speakerRate beep.SampleRate
	speakerErr  error
}

func New(appName, chimePath string) *Notifier {
	return &Notifier{AppName: appName, ChimePath: chimePath}
}

func (n *Notifier) Permission() notify.Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.permission
}

// RequestPermission is granted when notify-send is on PATH.
func (n *Notifier) RequestPermission() notify.Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.permission != notify.Default {
		return n.permission
	}
	path, err := exec.LookPath("notify-send")
	if err != nil {
		log.Warn("notify-send not found, reminders will be silent", "err", err)
		n.permission = notify.Denied
		return n.permission
	}
	n.sendPath = path
	n.permission = notify.Granted
	return n.permission
}

func (n *Notifier) Fire(title, body string) error {
	n.mu.Lock()
	path, p := n.sendPath, n.permission
	n.mu.Unlock()
	if p != notify.Granted {
		return fmt.Errorf("notification permission %s", p)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	args := []string{"--urgency=normal"}
	if n.AppName != "" {
		args = append(args, "--app-name="+n.AppName)
	}
	args = append(args, title, body)
	if out, err := exec.CommandContext(ctx, path, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send: %w: %s", err, out)
	}

	if n.ChimePath != "" {
		go func() {
			if err := n.Chime(); err != nil {
				log.Warn("Failed to play chime", "err", err)
			}
		}()
	}
	return nil
}

// Chime plays the configured mp3 and blocks until it has finished.
func (n *Notifier) Chime() error {
	if n.ChimePath == "" {
		return ErrNoChime
	}
	f, err := os.Open(n.ChimePath)
	if err != nil {
		return fmt.Errorf("open chime: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode chime: %w", err)
	}
	defer streamer.Close()

	rate, err := n.initSpeaker(format.SampleRate)
	if err != nil {
		return err
	}

	var s beep.Streamer = streamer
	if format.SampleRate != rate {
		s = beep.Resample(4, format.SampleRate, rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

// The speaker can only be initialised once per process; later chimes are
// resampled to the first one's rate.
func (n *Notifier) initSpeaker(rate beep.SampleRate) (beep.SampleRate, error) {
	n.speakerOnce.Do(func() {
		n.speakerRate = rate
		n.speakerErr = speaker.Init(rate, rate.N(time.Second/10))
	})
	if n.speakerErr != nil {
		return 0, fmt.Errorf("init speaker: %w", n.speakerErr)
	}
	return n.speakerRate, nil
}
