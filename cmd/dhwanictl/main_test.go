package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhwani/internal/ipc"
	"dhwani/internal/store"
	"dhwani/internal/vox"
	"dhwani/internal/weather"
)

type recorder struct {
	mu   sync.Mutex
	reqs []ipc.Request
}

func (r *recorder) last() ipc.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reqs[len(r.reqs)-1]
}

func (r *recorder) handle(req ipc.Request) ipc.Response {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()

	switch req.Cmd {
	case "state", "listen", "stop", "hush":
		return ipc.OK("Listening...", vox.StateInfo{State: "listening", Label: "Listening..."})
	case "ask":
		return ipc.OK("Water early in the morning.", nil)
	case "history":
		return ipc.OK("", []store.ChatMessage{{Role: store.RoleAssistant, Text: "Namaste", Timestamp: time.Now()}})
	case "reminders":
		return ipc.OK("", []store.Reminder{{ID: "1", Task: "Irrigate Field 1", Time: "06:00"}})
	case "remind":
		return ipc.OK("Reminder added", vox.ReminderInfo{Reminder: store.Reminder{ID: "x", Task: req.Text, Time: req.Time}})
	case "forget":
		return ipc.OK("Reminder deleted", nil)
	case "next":
		return ipc.OK("No reminders yet", nil)
	case "settings", "set":
		s := store.DefaultSettings()
		return ipc.OK("", s)
	case "weather":
		return ipc.OK("", vox.WeatherInfo{Snapshot: weather.Snapshot{Condition: weather.Rainy, Temperature: 21, Location: "Telangana", Alert: "Heavy rain"}, Icon: "🌧️"})
	case "irrigation":
		return ipc.OK("Skip watering today.", weather.Advice{Scenario: weather.Rain, Text: "Skip watering today."})
	case "doctor":
		if req.Text == "" && req.Symptom == "" {
			return ipc.OK("", []store.ChatMessage{{Role: store.RoleAssistant, Text: "I am the Crop Doctor", Timestamp: time.Now()}})
		}
		return ipc.OK("Use neem oil.", vox.Exchange{})
	case "sos":
		return ipc.OK("SOS Active", vox.SOSInfo{Title: "Emergency Help", Advice: []string{"Wash with water"}, CallLabel: "Call for help", Helpline: "1800-180-1551"})
	case "sos-advice":
		return ipc.OK("Wash with water", nil)
	}
	return ipc.Fail(vox.ErrUnknownCommand)
}

func daemon(t *testing.T) (string, *recorder) {
	t.Helper()
	dir, err := os.MkdirTemp("", "dctl")
	require.NoError(t, err)
	path := filepath.Join(dir, "d.sock")

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ipc.Serve(ctx, path, rec.handle)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		os.RemoveAll(dir)
	})

	require.Eventually(t, func() bool {
		c, err := net.Dial("unix", path)
		if err == nil {
			c.Close()
		}
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	return path, rec
}

func execute(t *testing.T, socket string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--socket", socket}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandsBuildRequests(t *testing.T) {
	socket, rec := daemon(t)

	cases := []struct {
		args []string
		want ipc.Request
	}{
		{[]string{"state"}, ipc.Request{Cmd: "state"}},
		{[]string{"stop"}, ipc.Request{Cmd: "stop"}},
		{[]string{"ask", "when", "to", "water"}, ipc.Request{Cmd: "ask", Text: "when to water"}},
		{[]string{"remind", "add", "6:30", "Open", "valve"}, ipc.Request{Cmd: "remind", Time: "6:30", Text: "Open valve"}},
		{[]string{"remind", "rm", "abc"}, ipc.Request{Cmd: "forget", ID: "abc"}},
		{[]string{"remind"}, ipc.Request{Cmd: "reminders"}},
		{[]string{"remind", "next"}, ipc.Request{Cmd: "next"}},
		{[]string{"settings"}, ipc.Request{Cmd: "settings"}},
		{[]string{"weather"}, ipc.Request{Cmd: "weather"}},
		{[]string{"irrigation"}, ipc.Request{Cmd: "irrigation"}},
		{[]string{"history"}, ipc.Request{Cmd: "history"}},
		{[]string{"doctor"}, ipc.Request{Cmd: "doctor"}},
		{[]string{"doctor", "--symptom", "root-rot"}, ipc.Request{Cmd: "doctor", Symptom: "root-rot"}},
		{[]string{"doctor", "white", "spots"}, ipc.Request{Cmd: "doctor", Text: "white spots"}},
		{[]string{"sos"}, ipc.Request{Cmd: "sos"}},
		{[]string{"sos", "--speak"}, ipc.Request{Cmd: "sos-advice"}},
	}
	for _, tc := range cases {
		_, err := execute(t, socket, tc.args...)
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.want, rec.last(), tc.args)
	}
}

func TestSettingsFlagsOnlySendChanged(t *testing.T) {
	socket, rec := daemon(t)

	_, err := execute(t, socket, "settings", "--lang", "hi", "--voice=false")
	require.NoError(t, err)
	req := rec.last()
	assert.Equal(t, "set", req.Cmd)
	assert.Equal(t, "hi", req.Lang)
	require.NotNil(t, req.Voice)
	assert.False(t, *req.Voice)
	assert.Nil(t, req.Notify)
	assert.Nil(t, req.Offline)
}

func TestListenFileIsAbsolute(t *testing.T) {
	socket, rec := daemon(t)

	_, err := execute(t, socket, "listen", "--file", "note.ogg")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(rec.last().File))
	assert.Equal(t, "note.ogg", filepath.Base(rec.last().File))
}

func TestOutput(t *testing.T) {
	socket, _ := daemon(t)

	out, err := execute(t, socket, "ask", "water")
	require.NoError(t, err)
	assert.Contains(t, out, "Water early in the morning.")

	out, err = execute(t, socket, "remind", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Irrigate Field 1")
	assert.Contains(t, out, "6:00 AM")

	out, err = execute(t, socket, "weather")
	require.NoError(t, err)
	assert.Contains(t, out, "Heavy rain")

	out, err = execute(t, socket, "remind", "next")
	require.NoError(t, err)
	assert.Contains(t, out, "No reminders yet")

	out, err = execute(t, socket, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "I am the Crop Doctor")

	out, err = execute(t, socket, "doctor", "pests")
	require.NoError(t, err)
	assert.Contains(t, out, "Use neem oil.")

	out, err = execute(t, socket, "sos")
	require.NoError(t, err)
	assert.Contains(t, out, "SOS Active")
	assert.Contains(t, out, "1. Wash with water")
	assert.Contains(t, out, "1800-180-1551")
}

func TestJSONOutput(t *testing.T) {
	socket, _ := daemon(t)

	out, err := execute(t, socket, "--json", "settings")
	require.NoError(t, err)
	var s store.Settings
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, store.DefaultSettings(), s)
}

func TestArgumentValidation(t *testing.T) {
	socket, _ := daemon(t)
	_, err := execute(t, socket, "ask")
	assert.Error(t, err)
	_, err = execute(t, socket, "remind", "add", "06:00")
	assert.Error(t, err)
}

func TestDaemonDown(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "none.sock"), "state")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dhwanid not running")
}
