// Package duck lowers the volume of other applications' PulseAudio streams
// while the assistant is listening or talking, and restores it afterwards.
package duck

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type stream struct {
	ID      int
	Volume  int
	AppName string
}

type fade struct {
	id   int
	from int
	to   int
}

// Mixer is the sound server: pactl in production.
type Mixer interface {
	ListSinkInputs(ctx context.Context) (string, error)
	SetVolume(ctx context.Context, id, percent int) error
}

type Pactl struct{}

func (Pactl) ListSinkInputs(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return "", fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return string(out), nil
}

func (Pactl) SetVolume(ctx context.Context, id, percent int) error {
	return exec.CommandContext(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent)).Run()
}

// Ducker leaves streams whose application.name is in self untouched.
type Ducker struct {
	mixer     Mixer
	self      []string
	factor    float64
	minVolume int
	fadeFor   time.Duration
	sleep     func(time.Duration)

	mu       sync.Mutex
	active   bool
	original map[int]int
}

func NewDucker(m Mixer, self []string, factor float64, minVolume int, fadeFor time.Duration) *Ducker {
	return &Ducker{
		mixer:     m,
		self:      append([]string(nil), self...),
		factor:    factor,
		minVolume: clamp(minVolume),
		fadeFor:   fadeFor,
		sleep:     time.Sleep,
		original:  make(map[int]int),
	}
}

func (d *Ducker) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Duck fades every foreign stream to factor of its volume, not below
// minVolume. Ducking twice is a no-op.
func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return nil
	}

	streams, err := d.streams(ctx)
	if err != nil {
		return err
	}

	d.original = make(map[int]int)
	var fades []fade
	for _, s := range streams {
		to := int(math.Round(float64(s.Volume) * d.factor))
		if to < d.minVolume {
			to = d.minVolume
		}
		d.original[s.ID] = s.Volume
		fades = append(fades, fade{id: s.ID, from: s.Volume, to: clamp(to)})
	}

	if err := d.fade(ctx, fades); err != nil {
		return err
	}
	d.active = true
	log.Debug("Ducked streams", "count", len(fades))
	return nil
}

// Restore fades ducked streams back. Streams that appeared after Duck are
// left alone.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return nil
	}

	streams, err := d.streams(ctx)
	if err != nil {
		return err
	}

	var fades []fade
	for _, s := range streams {
		if orig, ok := d.original[s.ID]; ok {
			fades = append(fades, fade{id: s.ID, from: s.Volume, to: orig})
		}
	}
	if err := d.fade(ctx, fades); err != nil {
		return err
	}

	d.original = make(map[int]int)
	d.active = false
	return nil
}

// Wish holds the latest wanted ducking state. A wish nobody has taken yet
// is replaced, so a follower always ends on the last one offered.
type Wish chan bool

func NewWish() Wish {
	return make(Wish, 1)
}

func (w Wish) Offer(on bool) {
	for {
		select {
		case w <- on:
			return
		default:
		}
		select {
		case <-w:
		default:
		}
	}
}

// Follow ducks and restores as wishes arrive until ctx is done, and leaves
// the streams restored.
func (d *Ducker) Follow(ctx context.Context, w Wish) {
	defer func() {
		restore, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := d.Restore(restore); err != nil {
			log.Warn("Failed to restore other streams", "err", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case on := <-w:
			var err error
			if on {
				err = d.Duck(ctx)
			} else {
				err = d.Restore(ctx)
			}
			if err != nil {
				log.Warn("Failed to adjust other streams", "err", err)
			}
		}
	}
}

func (d *Ducker) streams(ctx context.Context) ([]stream, error) {
	out, err := d.mixer.ListSinkInputs(ctx)
	if err != nil {
		return nil, err
	}
	var foreign []stream
	for _, s := range parseSinkInputs(out) {
		if !d.isSelf(s) {
			foreign = append(foreign, s)
		}
	}
	return foreign, nil
}

func (d *Ducker) isSelf(s stream) bool {
	for _, name := range d.self {
		if s.AppName == name {
			return true
		}
	}
	return false
}

const minStep = 10 * time.Millisecond

func (d *Ducker) fade(ctx context.Context, fades []fade) error {
	if len(fades) == 0 {
		return nil
	}
	steps := int(d.fadeFor / minStep)
	if steps < 1 {
		steps = 1
	}
	step := d.fadeFor / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frac := float64(i) / float64(steps)
		for _, f := range fades {
			v := int(math.Round(float64(f.from) + float64(f.to-f.from)*frac))
			if err := d.mixer.SetVolume(ctx, f.id, clamp(v)); err != nil {
				return fmt.Errorf("set volume id=%d: %w", f.id, err)
			}
		}
		if i < steps {
			d.sleep(step)
		}
	}
	return nil
}

// parseSinkInputs reads `pactl list sink-inputs` output.
func parseSinkInputs(text string) []stream {
	parts := strings.Split(text, "Sink Input #")
	var res []stream
	for _, block := range parts[1:] {
		nl := strings.IndexByte(block, '\n')
		if nl <= 0 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(block[:nl]))
		if err != nil {
			continue
		}

		s := stream{ID: id}
		for _, line := range strings.Split(block[nl+1:], "\n") {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "Volume:") && s.Volume == 0:
				if m := percentRe.FindStringSubmatch(line); m != nil {
					s.Volume, _ = strconv.Atoi(m[1])
				}
			case strings.HasPrefix(line, "application.name =") && s.AppName == "":
				if i := strings.IndexByte(line, '"'); i >= 0 {
					rest := line[i+1:]
					if j := strings.IndexByte(rest, '"'); j >= 0 {
						s.AppName = rest[:j]
					}
				}
			}
		}
		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}
	return res
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxVolume {
		return maxVolume
	}
	return v
}
