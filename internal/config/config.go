// Package config reads daemon settings from DHWANI_* environment
// variables, usually loaded from a .env file first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dhwani/internal/ipc"
	"dhwani/internal/kv"
)

const (
	CaptureMic  = "mic"
	CaptureFile = "file"
	CaptureNone = "none"

	VoiceEspeak = "espeak"
	VoiceNone   = "none"
)

type Config struct {
	DBPath string
	Socket string

	BusURL string
	Shard  string

	Capture      string
	WhisperModel string
	Voice        string
	VoiceRate    float64
	Chime        string
	Duck         bool

	RearmOnStart bool

	ProbeAddr     string
	ProbeInterval time.Duration
	Proxy         string

	LogLevel string
}

func Default() Config {
	return Config{
		DBPath:        kv.DefaultPath(),
		Socket:        ipc.SocketPath,
		Shard:         "dhwani",
		Capture:       CaptureMic,
		WhisperModel:  "models/ggml-small.bin",
		Voice:         VoiceEspeak,
		VoiceRate:     0.9,
		ProbeAddr:     "1.1.1.1:53",
		ProbeInterval: 30 * time.Second,
		LogLevel:      "info",
	}
}

// FromEnv overlays the environment on Default.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	var err error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" && err == nil {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			*dst = b
		}
	}

	str("DHWANI_DB", &c.DBPath)
	str("DHWANI_SOCKET", &c.Socket)
	str("DHWANI_BUS_URL", &c.BusURL)
	str("DHWANI_SHARD", &c.Shard)
	str("DHWANI_CAPTURE", &c.Capture)
	str("DHWANI_WHISPER_MODEL", &c.WhisperModel)
	str("DHWANI_VOICE", &c.Voice)
	str("DHWANI_CHIME", &c.Chime)
	str("DHWANI_PROBE_ADDR", &c.ProbeAddr)
	str("DHWANI_PROXY", &c.Proxy)
	str("DHWANI_LOG", &c.LogLevel)
	boolean("DHWANI_DUCK", &c.Duck)
	boolean("DHWANI_REARM_ON_START", &c.RearmOnStart)

	if v, ok := lookup("DHWANI_VOICE_RATE"); ok && v != "" && err == nil {
		if c.VoiceRate, err = strconv.ParseFloat(v, 64); err != nil {
			err = fmt.Errorf("DHWANI_VOICE_RATE: %w", err)
		}
	}
	if v, ok := lookup("DHWANI_PROBE_INTERVAL"); ok && v != "" && err == nil {
		if c.ProbeInterval, err = time.ParseDuration(v); err != nil {
			err = fmt.Errorf("DHWANI_PROBE_INTERVAL: %w", err)
		}
	}
	if err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Capture {
	case CaptureMic, CaptureFile, CaptureNone:
	default:
		return fmt.Errorf("unknown capture mode %q (mic|file|none)", c.Capture)
	}
	switch c.Voice {
	case VoiceEspeak, VoiceNone:
	default:
		return fmt.Errorf("unknown voice backend %q (espeak|none)", c.Voice)
	}
	if c.VoiceRate <= 0 || c.VoiceRate > 3 {
		return fmt.Errorf("voice rate %v out of range", c.VoiceRate)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe interval must be positive")
	}
	if c.Shard == "" || c.Socket == "" || c.DBPath == "" {
		return fmt.Errorf("shard, socket and db path must be set")
	}
	return nil
}
