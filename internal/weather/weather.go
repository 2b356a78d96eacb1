// Package weather provides the local weather snapshot and the irrigation
// advice derived from it.
package weather

import (
	"context"
	"errors"
	log "log/slog"
	"time"
)

type Condition string

const (
	Sunny  Condition = "sunny"
	Cloudy Condition = "cloudy"
	Rainy  Condition = "rainy"
)

func (c Condition) Icon() string {
	switch c {
	case Sunny:
		return "☀️"
	case Cloudy:
		return "⛅"
	case Rainy:
		return "🌧️"
	}
	return ""
}

type Snapshot struct {
	Condition   Condition `json:"condition"`
	Temperature int       `json:"temperature"`
	Humidity    int       `json:"humidity"`
	Wind        int       `json:"wind"`
	Location    string    `json:"location"`
	Alert       string    `json:"alert,omitempty"`
}

var ErrOffline = errors.New("offline")

type Fetcher interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

var scenarios = [...]Snapshot{
	{Condition: Sunny, Temperature: 28, Humidity: 45, Wind: 12, Location: "Telangana"},
	{Condition: Cloudy, Temperature: 24, Humidity: 72, Wind: 18, Location: "Telangana"},
	{Condition: Rainy, Temperature: 21, Humidity: 89, Wind: 25, Location: "Telangana",
		Alert: "Heavy rain expected tomorrow. Postpone spraying."},
}

const DefaultLatency = 600 * time.Millisecond

// Rotator stands in for a forecast service. It cycles through three fixed
// scenarios, one per wall-clock minute.
type Rotator struct {
	Now     func() time.Time
	Latency time.Duration
}

func NewRotator() *Rotator {
	return &Rotator{Now: time.Now, Latency: DefaultLatency}
}

func (r *Rotator) Fetch(ctx context.Context) (Snapshot, error) {
	if r.Latency > 0 {
		t := time.NewTimer(r.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-t.C:
		}
	}
	minute := r.Now().Unix() / 60
	s := scenarios[minute%int64(len(scenarios))]
	log.Debug("Weather fetched", "condition", s.Condition, "temp", s.Temperature)
	return s, nil
}

// Gate refuses to fetch while the device is offline or the user has chosen
// offline mode.
type Gate struct {
	Fetcher Fetcher
	Conn    Connectivity
	// OfflineMode reports the user's preference.
	OfflineMode func() bool
}

func (g *Gate) Fetch(ctx context.Context) (Snapshot, error) {
	if g.OfflineMode != nil && g.OfflineMode() {
		return Snapshot{}, ErrOffline
	}
	if g.Conn != nil && !g.Conn.Online() {
		return Snapshot{}, ErrOffline
	}
	return g.Fetcher.Fetch(ctx)
}
