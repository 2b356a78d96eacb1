package vox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dhwani/internal/kv"
	"dhwani/internal/nlu"
	"dhwani/internal/store"
	"dhwani/pkg/lang"
)

// Symptoms lists the quick complaints the crop doctor offers, in display order.
var Symptoms = []string{"yellow-leaves", "pest-attack", "leaf-spots", "root-rot"}

var symptomKeys = map[string]string{
	"yellow-leaves": "symptomYellowLeaves",
	"pest-attack":   "symptomPestAttack",
	"leaf-spots":    "symptomLeafSpots",
	"root-rot":      "symptomRootRot",
}

var ErrUnknownSymptom = errors.New("unknown symptom")

// Doctor is the crop diagnosis consultation. It lives in memory only and
// starts over from its greeting every time it is opened.
type Doctor struct {
	settings  *store.SettingsStore
	responder *nlu.Responder
	tr        Translator
	now       func() time.Time

	mu      sync.Mutex
	session *store.Conversation
}

func NewDoctor(settings *store.SettingsStore, responder *nlu.Responder, tr Translator, now func() time.Time) *Doctor {
	if now == nil {
		now = time.Now
	}
	return &Doctor{settings: settings, responder: responder, tr: tr, now: now}
}

// Open drops any previous consultation and starts a new one.
func (d *Doctor) Open() ([]store.ChatMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.open(); err != nil {
		return nil, err
	}
	return d.session.All(), nil
}

func (d *Doctor) open() (*store.Conversation, error) {
	session := store.NewConversation(kv.NewMemory(), d.now)
	if _, err := session.Append(store.RoleAssistant, d.tr.T("cropDoctorGreeting", d.lang())); err != nil {
		return nil, fmt.Errorf("open consultation: %w", err)
	}
	d.session = session
	return session, nil
}

// Messages returns the current consultation, or nothing if none is open.
func (d *Doctor) Messages() []store.ChatMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	return d.session.All()
}

// Symptom returns the complaint text for a quick symptom name in l.
func (d *Doctor) Symptom(name string, l lang.Language) (string, error) {
	key, ok := symptomKeys[name]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownSymptom, name)
	}
	return d.tr.T(key, l), nil
}

// Ask answers text within the current consultation, opening one first if
// needed.
func (d *Doctor) Ask(ctx context.Context, text string) (Exchange, error) {
	d.mu.Lock()
	session := d.session
	if session == nil {
		var err error
		if session, err = d.open(); err != nil {
			d.mu.Unlock()
			return Exchange{}, err
		}
	}
	d.mu.Unlock()

	l := d.lang()
	q, err := session.Append(store.RoleUser, text)
	if err != nil {
		return Exchange{}, err
	}
	reply, err := d.responder.Respond(ctx, text, l)
	if err != nil {
		return Exchange{}, fmt.Errorf("respond: %w", err)
	}
	ans, err := session.Append(store.RoleAssistant, reply.Text)
	if err != nil {
		return Exchange{}, err
	}
	return Exchange{Question: q, Answer: ans, Intent: reply.Intent}, nil
}

func (d *Doctor) lang() lang.Language {
	return d.settings.Get().Language
}
