package weather

import (
	"context"
	log "log/slog"

	"dhwani/pkg/lang"
)

type Scenario string

const (
	Morning Scenario = "morning"
	Rain    Scenario = "rain"
	Hot     Scenario = "hot"
	Normal  Scenario = "normal"
)

// HotAbove is the temperature, in °C, past which midday watering is advised.
const HotAbove = 32

// Key is the catalog key holding the scenario's advice.
func (s Scenario) Key() string {
	switch s {
	case Morning:
		return "irrigationMorning"
	case Rain:
		return "irrigationRain"
	case Hot:
		return "irrigationHot"
	}
	return "irrigationNormal"
}

func Recommend(s Snapshot) Scenario {
	switch {
	case s.Condition == Rainy:
		return Rain
	case s.Temperature > HotAbove:
		return Hot
	}
	return Morning
}

type Translator interface {
	T(key string, l lang.Language) string
}

type Advice struct {
	Scenario Scenario  `json:"scenario"`
	Text     string    `json:"text"`
	Weather  *Snapshot `json:"weather,omitempty"`
}

type Advisor struct {
	fetcher Fetcher
	tr      Translator
}

func NewAdvisor(f Fetcher, tr Translator) *Advisor {
	return &Advisor{fetcher: f, tr: tr}
}

// Advise never fails: without weather it falls back to the general advice.
func (a *Advisor) Advise(ctx context.Context, l lang.Language) Advice {
	s, err := a.fetcher.Fetch(ctx)
	if err != nil {
		log.Info("No weather for irrigation advice", "err", err)
		return Advice{Scenario: Normal, Text: a.tr.T(Normal.Key(), l)}
	}
	sc := Recommend(s)
	return Advice{Scenario: sc, Text: a.tr.T(sc.Key(), l), Weather: &s}
}
