package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/lmittmann/tint"
	log "log/slog"

	"dhwani/internal/audio"
	"dhwani/internal/capture"
	"dhwani/internal/clock"
	"dhwani/internal/config"
	"dhwani/internal/duck"
	"dhwani/internal/i18n"
	"dhwani/internal/ipc"
	"dhwani/internal/kv"
	"dhwani/internal/nlu"
	"dhwani/internal/notify"
	"dhwani/internal/notify/desktop"
	"dhwani/internal/proxy"
	"dhwani/internal/speech"
	"dhwani/internal/store"
	"dhwani/internal/tts"
	"dhwani/internal/vox"
	"dhwani/internal/weather"
	"dhwani/pkg/lang"
	"dhwani/pkg/protocol"
	"dhwani/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "", "Log level (debug|info|warn|error)")
	socket := cli.StringP("socket", "s", "", "Control socket path")
	busURL := cli.StringP("bus", "b", "", "Url of hub, empty to stay off the bus")
	dbPath := cli.String("db", "", "SQLite database path")
	captureMode := cli.String("capture", "", "Capture backend (mic|file|none)")
	voice := cli.String("voice", "", "Voice backend (espeak|none)")
	cli.Parse()

	envErr := godotenv.Load(*envFile)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("Bad configuration", "err", err)
		os.Exit(1)
	}
	override(&cfg.LogLevel, *logLevel)
	override(&cfg.Socket, *socket)
	override(&cfg.BusURL, *busURL)
	override(&cfg.DBPath, *dbPath)
	override(&cfg.Capture, *captureMode)
	override(&cfg.Voice, *voice)
	if err := cfg.Validate(); err != nil {
		log.Error("Bad configuration", "err", err)
		os.Exit(1)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevelMap[cfg.LogLevel],
		TimeFormat: time.TimeOnly,
	})))

	log.Info("Booting up")
	if envErr != nil {
		log.Debug("No env file loaded", "path", *envFile, "err", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Daemon failed", "err", err)
		os.Exit(1)
	}
	log.Info("Bye")
}

func override(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}

func run(ctx context.Context, cfg config.Config) error {
	db, err := kv.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Debug("Opened database", "path", cfg.DBPath)

	catalog, err := i18n.Load()
	if err != nil {
		return err
	}
	responder, err := nlu.NewResponder(nlu.WithDelay(nlu.RandomDelay(nlu.MinDelay, nlu.MaxDelay)))
	if err != nil {
		return err
	}

	settings := store.LoadSettings(db)
	history := store.NewConversation(db, time.Now)
	reminders := store.NewReminders(db, time.Now)

	capt, files, closeCapture, err := openCapture(cfg)
	if err != nil {
		return err
	}
	defer closeCapture()

	synth, closeSynth, err := openSynth(cfg)
	if err != nil {
		return err
	}
	defer closeSynth()

	notifier := desktop.New(catalog.T("appName", lang.Default), cfg.Chime)
	log.Info("Notification permission", "state", notifier.RequestPermission())
	scheduler := notify.NewScheduler(notifier, clock.Real{}, func() (bool, lang.Language) {
		s := settings.Get()
		return s.NotificationsEnabled, s.Language
	}, catalog)
	defer scheduler.Stop()

	dialer, err := proxy.NewDialer(cfg.Proxy)
	if err != nil {
		return err
	}
	probe := weather.NewProbe(cfg.ProbeAddr, cfg.ProbeInterval)
	probe.Dialer = dialer
	forecast := &weather.Gate{
		Fetcher:     weather.NewRotator(),
		Conn:        probe,
		OfflineMode: func() bool { return settings.Get().OfflineMode },
	}

	var ducker *duck.Ducker
	if cfg.Duck {
		ducker = duck.NewDucker(duck.Pactl{}, []string{"dhwanid", "espeak-ng"}, 0.3, 10, 150*time.Millisecond)
	}
	ducking := duck.NewWish()

	var bus *protocol.Protocol
	asst := vox.NewAssistant(ctx, history, settings, responder, catalog)

	ctrl := speech.NewController(capt, synth, func() speech.Preferences {
		s := settings.Get()
		return speech.Preferences{Language: s.Language, VoiceEnabled: s.VoiceEnabled}
	}, catalog, speech.Handlers{
		OnResult: asst.HandleUtterance,
		OnError: func(e *speech.Error) {
			log.Warn("Voice error", "kind", e.Kind, "msg", e.Message, "err", e.Err)
			if bus != nil {
				bus.Transmit(protocol.Envelope{Kind: protocol.KindError, Content: e.Message})
			}
		},
		OnState: func(t speech.Transition) {
			log.Debug("Voice state", "from", t.From, "to", t.To)
			if t.To == speech.Listening && cfg.Chime != "" {
				go notifier.Chime()
			}
			if ducker != nil {
				ducking.Offer(t.To != speech.Idle)
			}
			if bus != nil {
				bus.Transmit(protocol.Envelope{Kind: protocol.KindState, Content: t.To.String()})
			}
		},
	})
	asst.SetVoice(ctrl)
	defer asst.Wait()
	defer ctrl.StopListening()

	svc := &vox.Service{
		Assistant: asst,
		Doctor:    vox.NewDoctor(settings, responder, catalog, time.Now),
		Session:   ctrl,
		Reminders: reminders,
		Settings:  settings,
		Scheduler: scheduler,
		Notifier:  notifier,
		Weather:   forecast,
		Advisor:   weather.NewAdvisor(forecast, catalog),
		Tr:        catalog,
		Now:       time.Now,
	}
	if files != nil {
		svc.Files = files
	}
	svc.WatchSettings()

	if cfg.BusURL != "" {
		bus, err = protocol.NewProtocol(ctx, protocol.PtclConfig{
			Shard:  cfg.Shard,
			Url:    cfg.BusURL,
			Reconn: 2 * time.Second,
			EmitOut: func(e *protocol.Envelope) {
				handleEnvelope(ctx, bus, svc, e)
			},
		})
		if err != nil {
			return err
		}
		scheduler.OnFire(func(r store.Reminder) {
			bus.Transmit(protocol.Envelope{Kind: protocol.KindAlert, Content: r.Task})
		})
	}

	asst.OnExchange = func(ex vox.Exchange) {
		log.Info("Voice exchange", "intent", ex.Intent)
		if bus != nil {
			bus.Transmit(protocol.Envelope{Kind: protocol.KindReply, Content: ex.Answer.Text})
		}
	}
	probe.Subscribe(func(online bool) {
		log.Info("Connectivity changed", "online", online)
		if bus != nil {
			state := "offline"
			if online {
				state = "online"
			}
			bus.Transmit(protocol.Envelope{Kind: protocol.KindState, Content: state})
		}
	})

	if cfg.RearmOnStart {
		log.Info("Re-armed reminders", "count", scheduler.RearmAll(reminders.List()))
	}

	log.Info("Boot up - successful", "capture", cfg.Capture, "voice", cfg.Voice, "bus", cfg.BusURL != "")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ipc.Serve(gctx, cfg.Socket, func(req ipc.Request) ipc.Response {
			return svc.Handle(gctx, req)
		})
	})
	g.Go(func() error {
		return probe.Run(gctx)
	})
	if bus != nil {
		g.Go(func() error {
			return bus.Run(gctx)
		})
	}
	if ducker != nil {
		g.Go(func() error {
			ducker.Follow(gctx, ducking)
			return nil
		})
	}
	return g.Wait()
}

func openCapture(cfg config.Config) (speech.Capture, *capture.Files, func(), error) {
	if cfg.Capture == config.CaptureNone {
		return nil, nil, func() {}, nil
	}

	whisper, err := stt.NewTranscriber(cfg.WhisperModel)
	if err != nil {
		log.Error("Failed to init whisper", "model", cfg.WhisperModel, "err", err)
		return nil, nil, nil, err
	}
	log.Debug("Loaded whisper")

	if cfg.Capture == config.CaptureFile {
		files := capture.NewFiles()
		c := capture.New(files, whisper)
		return c, files, func() {
			c.Close()
			whisper.Close()
		}, nil
	}

	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		whisper.Close()
		log.Error("Failed to init audio", "err", err)
		return nil, nil, nil, err
	}
	log.Debug("Loaded recorder")

	c := capture.New(rec, whisper)
	return c, nil, func() {
		c.Close()
		rec.Close()
		whisper.Close()
	}, nil
}

func openSynth(cfg config.Config) (speech.Synthesizer, func(), error) {
	if cfg.Voice == config.VoiceNone {
		return nil, func() {}, nil
	}
	es, err := tts.New(cfg.VoiceRate)
	if err != nil {
		log.Error("Failed to init espeak", "err", err)
		return nil, nil, err
	}
	return es, es.Close, nil
}

func handleEnvelope(ctx context.Context, bus *protocol.Protocol, svc *vox.Service, e *protocol.Envelope) {
	if e.Kind != protocol.KindQuery {
		log.Debug("Ignoring bus message", "from", e.From, "kind", e.Kind)
		return
	}
	resp := svc.Handle(ctx, ipc.Request{Cmd: "ask", Text: e.Content})
	if !resp.OK {
		bus.Reply(e, protocol.KindError, resp.Error)
		return
	}
	bus.Reply(e, protocol.KindReply, resp.Text)
}
