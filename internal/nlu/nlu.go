// Package nlu turns an utterance into one of a fixed set of farming
// intents and answers it with a canned, localized recommendation.
// Matching is keyword based and deterministic.
package nlu

import (
	"context"
	_ "embed"
	"fmt"
	log "log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"dhwani/pkg/lang"
)

type Intent string

const (
	Irrigation Intent = "irrigation"
	Pesticide  Intent = "pesticide"
	Weather    Intent = "weather"
	Fertilizer Intent = "fertilizer"
	Soil       Intent = "soil"
	Default    Intent = "default"
)

// Order is the fixed match order.
var Order = []Intent{Irrigation, Pesticide, Weather, Fertilizer, Soil}

//go:embed intents.yaml
var builtin []byte

type Reply struct {
	Intent Intent `json:"intent"`
	Text   string `json:"text"`
}

type table struct {
	Intents []struct {
		Name      Intent            `yaml:"name"`
		Triggers  []string          `yaml:"triggers"`
		Responses map[string]string `yaml:"responses"`
	} `yaml:"intents"`
}

type rule struct {
	intent   Intent
	triggers []string
}

// Responder classifies utterances and looks up responses. It holds no
// per-request state.
type Responder struct {
	rules     []rule
	responses map[Intent]map[lang.Language]string
	delay     Delay
}

type Option func(*Responder)

// WithDelay replaces the simulated thinking time.
func WithDelay(d Delay) Option {
	return func(r *Responder) { r.delay = d }
}

// NewResponder builds a responder from the built-in intent table.
func NewResponder(opts ...Option) (*Responder, error) {
	return ParseResponder(builtin, opts...)
}

// ParseResponder builds a responder from a YAML table. Every intent in
// Order plus Default must answer in every language.
func ParseResponder(data []byte, opts ...Option) (*Responder, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse intents: %w", err)
	}

	r := &Responder{
		responses: make(map[Intent]map[lang.Language]string),
		delay:     RandomDelay(MinDelay, MaxDelay),
	}

	known := map[Intent]bool{Default: true}
	for _, in := range Order {
		known[in] = true
	}

	triggers := make(map[Intent][]string)
	for _, e := range t.Intents {
		if !known[e.Name] {
			return nil, fmt.Errorf("unknown intent %q", e.Name)
		}
		row := make(map[lang.Language]string)
		for code, text := range e.Responses {
			l, err := lang.Parse(code)
			if err != nil {
				return nil, fmt.Errorf("intent %s: %w", e.Name, err)
			}
			row[l] = text
		}
		r.responses[e.Name] = row
		for _, trg := range e.Triggers {
			triggers[e.Name] = append(triggers[e.Name], strings.ToLower(trg))
		}
	}

	for in := range known {
		for _, l := range lang.All() {
			if r.responses[in][l] == "" {
				return nil, fmt.Errorf("intent %s: missing %s response", in, l)
			}
		}
	}
	for _, in := range Order {
		if len(triggers[in]) == 0 {
			return nil, fmt.Errorf("intent %s: no triggers", in)
		}
		r.rules = append(r.rules, rule{intent: in, triggers: triggers[in]})
	}

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Classify returns the first intent whose trigger occurs in the utterance.
func (r *Responder) Classify(utterance string) Intent {
	text := strings.ToLower(utterance)
	if strings.TrimSpace(text) == "" {
		return Default
	}
	for _, ru := range r.rules {
		for _, trg := range ru.triggers {
			if strings.Contains(text, trg) {
				return ru.intent
			}
		}
	}
	return Default
}

// Response is the canned answer for an intent. Unknown intents and
// languages fall back to Default and lang.Default.
func (r *Responder) Response(in Intent, l lang.Language) string {
	row, ok := r.responses[in]
	if !ok {
		row = r.responses[Default]
	}
	if text, ok := row[l]; ok {
		return text
	}
	return row[lang.Default]
}

// Respond classifies and answers after the configured delay.
func (r *Responder) Respond(ctx context.Context, utterance string, l lang.Language) (Reply, error) {
	in := r.Classify(utterance)

	if err := wait(ctx, r.delay()); err != nil {
		return Reply{}, err
	}

	log.Debug("Classified", "intent", in, "lang", l)
	return Reply{Intent: in, Text: r.Response(in, l)}, nil
}
