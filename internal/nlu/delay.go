package nlu

import (
	"context"
	"math/rand/v2"
	"time"
)

// Bounds of the production "thinking" pause.
const (
	MinDelay = 800 * time.Millisecond
	MaxDelay = 1200 * time.Millisecond
)

// Delay yields how long to pause before a reply is delivered.
type Delay func() time.Duration

func NoDelay() time.Duration { return 0 }

// RandomDelay picks uniformly from [lo, hi].
func RandomDelay(lo, hi time.Duration) Delay {
	if hi < lo {
		lo, hi = hi, lo
	}
	return func() time.Duration {
		if hi == lo {
			return lo
		}
		return lo + rand.N(hi-lo+1)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
