// Package vox is the farming assistant itself: it turns recognized or typed
// questions into stored, spoken answers and serves the control commands.
package vox

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"dhwani/internal/nlu"
	"dhwani/internal/store"
	"dhwani/pkg/lang"
)

type Translator interface {
	T(key string, l lang.Language) string
}

// Voice is the part of the speech controller the pipeline drives.
type Voice interface {
	FinishProcessing()
	Speak(text string, onDone func())
}

type Exchange struct {
	Question store.ChatMessage `json:"question"`
	Answer   store.ChatMessage `json:"answer"`
	Intent   nlu.Intent        `json:"intent"`
}

type Assistant struct {
	history   *store.Conversation
	settings  *store.SettingsStore
	responder *nlu.Responder
	tr        Translator

	ctx   context.Context
	voice Voice
	wg    sync.WaitGroup

	// OnExchange, if set, sees every question answered from the voice
	// session. Typed questions are answered to their caller only.
	OnExchange func(Exchange)
}

// NewAssistant builds the pipeline. Background work started by
// HandleUtterance is abandoned when ctx is done.
func NewAssistant(ctx context.Context, history *store.Conversation, settings *store.SettingsStore, responder *nlu.Responder, tr Translator) *Assistant {
	return &Assistant{
		ctx:       ctx,
		history:   history,
		settings:  settings,
		responder: responder,
		tr:        tr,
	}
}

// SetVoice attaches the speech controller. It must be called before the
// first utterance arrives.
func (a *Assistant) SetVoice(v Voice) {
	a.voice = v
}

func (a *Assistant) lang() lang.Language {
	return a.settings.Get().Language
}

// Open returns the chat log. A fresh log starts with a spoken greeting.
func (a *Assistant) Open() ([]store.ChatMessage, error) {
	if a.history.Len() > 0 {
		return a.history.All(), nil
	}
	greeting, err := a.greet()
	if err != nil {
		return nil, err
	}
	if a.voice != nil {
		a.voice.Speak(greeting.Text, nil)
	}
	return []store.ChatMessage{greeting}, nil
}

// Reset clears the log and leaves only a new greeting, unspoken.
func (a *Assistant) Reset() ([]store.ChatMessage, error) {
	if err := a.history.Clear(); err != nil {
		return nil, err
	}
	greeting, err := a.greet()
	if err != nil {
		return nil, err
	}
	return []store.ChatMessage{greeting}, nil
}

func (a *Assistant) greet() (store.ChatMessage, error) {
	msg, err := a.history.Append(store.RoleAssistant, a.tr.T("greeting", a.lang()))
	if err != nil {
		return store.ChatMessage{}, fmt.Errorf("greet: %w", err)
	}
	return msg, nil
}

// HandleUtterance is the controller's result handler. The answer is
// produced in the background; the controller leaves Processing once it is
// stored and then speaks it.
func (a *Assistant) HandleUtterance(text string) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ex, err := a.exchange(a.ctx, text)
		if a.voice == nil {
			return
		}
		a.voice.FinishProcessing()
		if err != nil {
			log.Error("Failed to answer", "err", err)
			return
		}
		if a.OnExchange != nil {
			a.OnExchange(ex)
		}
		a.voice.Speak(ex.Answer.Text, nil)
	}()
}

// Ask answers a typed question without touching the voice session.
func (a *Assistant) Ask(ctx context.Context, text string) (Exchange, error) {
	return a.exchange(ctx, text)
}

// Wait blocks until background answers have finished.
func (a *Assistant) Wait() {
	a.wg.Wait()
}

func (a *Assistant) exchange(ctx context.Context, text string) (Exchange, error) {
	l := a.lang()
	start := time.Now()

	q, err := a.history.Append(store.RoleUser, text)
	if err != nil {
		return Exchange{}, err
	}

	reply, err := a.responder.Respond(ctx, text, l)
	if err != nil {
		return Exchange{}, fmt.Errorf("respond: %w", err)
	}

	ans, err := a.history.Append(store.RoleAssistant, reply.Text)
	if err != nil {
		return Exchange{}, err
	}

	log.Info("Answered", "intent", reply.Intent, "lang", l, "took", time.Since(start).Round(time.Millisecond))
	return Exchange{Question: q, Answer: ans, Intent: reply.Intent}, nil
}
