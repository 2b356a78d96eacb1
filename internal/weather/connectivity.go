package weather

import (
	"context"
	log "log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

type Connectivity interface {
	Online() bool
	// Subscribe registers fn for every change of the online flag.
	Subscribe(fn func(online bool))
}

type watchers struct {
	mu     sync.Mutex
	online bool
	subs   []func(bool)
}

func (w *watchers) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

func (w *watchers) Subscribe(fn func(bool)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

func (w *watchers) set(online bool) {
	w.mu.Lock()
	if w.online == online {
		w.mu.Unlock()
		return
	}
	w.online = online
	subs := append(([]func(bool))(nil), w.subs...)
	w.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// Static is a manually set connectivity flag.
type Static struct {
	watchers
}

func NewStatic(online bool) *Static {
	s := &Static{}
	s.online = online
	return s
}

func (s *Static) Set(online bool) { s.set(online) }

// Probe considers the device online while a TCP connection to Addr can be
// opened.
type Probe struct {
	watchers
	Addr     string
	Interval time.Duration
	Timeout  time.Duration
	// Dialer defaults to a direct net.Dialer.
	Dialer proxy.ContextDialer
}

func NewProbe(addr string, interval time.Duration) *Probe {
	return &Probe{Addr: addr, Interval: interval, Timeout: 3 * time.Second, Dialer: &net.Dialer{}}
}

// Check dials once and updates the flag.
func (p *Probe) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	conn, err := p.Dialer.DialContext(ctx, "tcp", p.Addr)
	online := err == nil
	if online {
		conn.Close()
	}
	if online != p.Online() {
		log.Info("Connectivity changed", "online", online, "addr", p.Addr)
	}
	p.set(online)
	return online
}

// Run checks immediately and then every Interval until ctx is done.
func (p *Probe) Run(ctx context.Context) error {
	p.Check(ctx)
	t := time.NewTicker(p.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			p.Check(ctx)
		}
	}
}
