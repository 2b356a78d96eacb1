package vox

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"dhwani/internal/ipc"
	"dhwani/internal/notify"
	"dhwani/internal/speech"
	"dhwani/internal/store"
	"dhwani/internal/weather"
	"dhwani/pkg/lang"
)

// Session is the speech controller as seen by the control commands.
type Session interface {
	Voice
	StartListening() error
	StopListening()
	CancelSpeaking()
	State() speech.State
}

// FileQueue feeds recorded voice notes to the next capture.
type FileQueue interface {
	Enqueue(path string) error
}

// Service answers control socket and bus requests.
type Service struct {
	Assistant *Assistant
	Doctor    *Doctor
	Session   Session
	Reminders *store.Reminders
	Settings  *store.SettingsStore
	Scheduler *notify.Scheduler
	Notifier  notify.Notifier
	Weather   weather.Fetcher
	Advisor   *weather.Advisor
	Tr        Translator
	// Files is nil unless capture reads voice notes.
	Files FileQueue
	Now   func() time.Time
}

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoFileCapture  = errors.New("capture does not read files")
	ErrNotFound       = errors.New("reminder not found")
	ErrEmptyPatch     = errors.New("nothing to change")
)

type StateInfo struct {
	State string `json:"state"`
	Label string `json:"label"`
}

type NextInfo struct {
	Reminder store.Reminder `json:"reminder"`
	Minutes  int            `json:"minutes"`
	Display  string         `json:"display"`
}

type ReminderInfo struct {
	Reminder store.Reminder `json:"reminder"`
	Alert    *time.Time     `json:"alert,omitempty"`
}

// SOSInfo is the emergency screen: advice steps and the helpline.
type SOSInfo struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Advice      []string `json:"advice"`
	CallLabel   string   `json:"call_label"`
	Helpline    string   `json:"helpline"`
}

var sosAdviceKeys = []string{"sosAdvice1", "sosAdvice2", "sosAdvice3", "sosAdvice4"}

type WeatherInfo struct {
	weather.Snapshot
	Icon string `json:"icon"`
}

func (s *Service) lang() lang.Language {
	return s.Settings.Get().Language
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Cmd {
	case "listen":
		return s.listen(req)
	case "stop":
		s.Session.StopListening()
		return s.state()
	case "hush":
		s.Session.CancelSpeaking()
		return s.state()
	case "state":
		return s.state()
	case "ask":
		return s.ask(ctx, req)
	case "say":
		if req.Text == "" {
			return ipc.Fail(errors.New("nothing to say"))
		}
		s.Session.Speak(req.Text, nil)
		return ipc.OK(req.Text, nil)
	case "history":
		msgs, err := s.Assistant.Open()
		if err != nil {
			return ipc.Fail(err)
		}
		return ipc.OK("", msgs)
	case "clear":
		msgs, err := s.Assistant.Reset()
		if err != nil {
			return ipc.Fail(err)
		}
		return ipc.OK("", msgs)
	case "reminders":
		return s.reminders()
	case "remind":
		return s.remind(req)
	case "forget":
		return s.forget(req)
	case "next":
		return s.next()
	case "settings":
		return ipc.OK("", s.Settings.Get())
	case "set":
		return s.set(req)
	case "doctor":
		return s.doctor(ctx, req)
	case "sos":
		l := s.lang()
		s.Session.Speak(s.Tr.T("emergencyKeyword", l), nil)
		return ipc.OK(s.Tr.T("sosActive", l), s.sos(l))
	case "sos-advice":
		text := strings.Join(s.sos(s.lang()).Advice, ". ")
		s.Session.Speak(text, nil)
		return ipc.OK(text, nil)
	case "weather":
		return s.weather(ctx)
	case "irrigation":
		a := s.Advisor.Advise(ctx, s.lang())
		return ipc.OK(a.Text, a)
	default:
		log.Warn("Unknown command", "cmd", req.Cmd)
		return ipc.Fail(fmt.Errorf("%w %q", ErrUnknownCommand, req.Cmd))
	}
}

func (s *Service) state() ipc.Response {
	st := s.Session.State()
	label := s.Tr.T(st.Label(), s.lang())
	return ipc.OK(label, StateInfo{State: st.String(), Label: label})
}

func (s *Service) listen(req ipc.Request) ipc.Response {
	if req.File != "" {
		if s.Files == nil {
			return ipc.Fail(ErrNoFileCapture)
		}
		if err := s.Files.Enqueue(req.File); err != nil {
			return ipc.Fail(err)
		}
	}
	if err := s.Session.StartListening(); err != nil {
		if errors.Is(err, speech.ErrBusy) {
			return ipc.Fail(errors.New(s.Tr.T("busy", s.lang())))
		}
		return ipc.Fail(err)
	}
	return s.state()
}

func (s *Service) ask(ctx context.Context, req ipc.Request) ipc.Response {
	if req.Text == "" {
		return ipc.Fail(errors.New("empty question"))
	}
	ex, err := s.Assistant.Ask(ctx, req.Text)
	if err != nil {
		return ipc.Fail(err)
	}
	return ipc.OK(ex.Answer.Text, ex)
}

func (s *Service) reminders() ipc.Response {
	list := s.Reminders.List()
	if len(list) == 0 {
		return ipc.OK(s.Tr.T("noReminders", s.lang()), list)
	}
	return ipc.OK("", list)
}

func (s *Service) remind(req ipc.Request) ipc.Response {
	r, err := s.Reminders.Add(req.Text, req.Time)
	if err != nil {
		return ipc.Fail(err)
	}
	info := ReminderInfo{Reminder: r}
	if at, ok := s.Scheduler.Schedule(r); ok {
		info.Alert = &at
	}
	return ipc.OK(s.Tr.T("reminderAdded", s.lang()), info)
}

func (s *Service) forget(req ipc.Request) ipc.Response {
	ok, err := s.Reminders.Remove(req.ID)
	if err != nil {
		return ipc.Fail(err)
	}
	if !ok {
		return ipc.Fail(fmt.Errorf("%w: %s", ErrNotFound, req.ID))
	}
	s.Scheduler.Cancel(req.ID)
	return ipc.OK(s.Tr.T("reminderDeleted", s.lang()), nil)
}

func (s *Service) next() ipc.Response {
	l := s.lang()
	due, ok := s.Reminders.NextDue(s.now())
	if !ok {
		return ipc.OK(s.Tr.T("noReminders", l), nil)
	}
	display := store.FormatClock(due.Reminder.Time)
	text := fmt.Sprintf("%s: %s, %s", s.Tr.T("nextReminder", l), due.Reminder.Task, display)
	return ipc.OK(text, NextInfo{Reminder: due.Reminder, Minutes: due.Minutes, Display: display})
}

func (s *Service) set(req ipc.Request) ipc.Response {
	var p store.Patch
	if req.Lang != "" {
		l, err := lang.Parse(req.Lang)
		if err != nil {
			return ipc.Fail(err)
		}
		p.Language = &l
	}
	p.VoiceEnabled = req.Voice
	p.NotificationsEnabled = req.Notify
	p.OfflineMode = req.Offline
	if p.Empty() {
		return ipc.Fail(ErrEmptyPatch)
	}

	after, err := s.Settings.Update(p)
	if err != nil {
		return ipc.Fail(err)
	}
	return ipc.OK("", after)
}

// WatchSettings makes the service react to every settings change: alerts
// stop or re-arm with the notifications switch and speech stops when voice
// is turned off. Call it once, before serving requests.
func (s *Service) WatchSettings() {
	var mu sync.Mutex
	prev := s.Settings.Get()
	s.Settings.Subscribe(func(next store.Settings) {
		mu.Lock()
		defer mu.Unlock()
		before := prev
		prev = next

		switch {
		case before.NotificationsEnabled && !next.NotificationsEnabled:
			s.Scheduler.Stop()
		case !before.NotificationsEnabled && next.NotificationsEnabled:
			if s.Notifier.RequestPermission() == notify.Granted {
				n := s.Scheduler.RearmAll(s.Reminders.List())
				log.Info("Reminders re-armed", "count", n)
			}
		}
		if before.VoiceEnabled && !next.VoiceEnabled {
			s.Session.CancelSpeaking()
		}
	})
}

// doctor opens a consultation when there is nothing to ask, otherwise it
// answers the question or quick symptom and speaks the answer.
func (s *Service) doctor(ctx context.Context, req ipc.Request) ipc.Response {
	text := strings.TrimSpace(req.Text)
	if req.Symptom != "" {
		var err error
		if text, err = s.Doctor.Symptom(req.Symptom, s.lang()); err != nil {
			return ipc.Fail(err)
		}
	}
	if text == "" {
		msgs, err := s.Doctor.Open()
		if err != nil {
			return ipc.Fail(err)
		}
		s.Session.Speak(msgs[0].Text, nil)
		return ipc.OK("", msgs)
	}

	ex, err := s.Doctor.Ask(ctx, text)
	if err != nil {
		return ipc.Fail(err)
	}
	s.Session.Speak(ex.Answer.Text, nil)
	return ipc.OK(ex.Answer.Text, ex)
}

func (s *Service) sos(l lang.Language) SOSInfo {
	info := SOSInfo{
		Title:       s.Tr.T("sosTitle", l),
		Description: s.Tr.T("sosDesc", l),
		CallLabel:   s.Tr.T("sosEmergencyHelp", l),
		Helpline:    s.Tr.T("sosHelplineNumber", l),
	}
	for _, key := range sosAdviceKeys {
		info.Advice = append(info.Advice, s.Tr.T(key, l))
	}
	return info
}

func (s *Service) weather(ctx context.Context) ipc.Response {
	snap, err := s.Weather.Fetch(ctx)
	if err != nil {
		if errors.Is(err, weather.ErrOffline) {
			return ipc.Fail(errors.New(s.Tr.T("offline", s.lang())))
		}
		return ipc.Fail(err)
	}
	return ipc.OK("", WeatherInfo{Snapshot: snap, Icon: snap.Condition.Icon()})
}
