package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dhwani/internal/ipc"
	"dhwani/internal/store"
	"dhwani/internal/vox"
	"dhwani/internal/weather"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("34")).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	answerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

func stateStyle(state string) lipgloss.Style {
	color := "243"
	switch state {
	case "listening":
		color = "196"
	case "processing":
		color = "214"
	case "speaking":
		color = "42"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}

func renderHistory(msgs []store.ChatMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		who := assistantStyle.Render("🌿")
		if m.Role == store.RoleUser {
			who = userStyle.Render("👨‍🌾")
		}
		fmt.Fprintf(&b, "%s %s %s\n", dimStyle.Render(m.Timestamp.Local().Format("15:04")), who, answerStyle.Render(m.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderReminders(rs []store.Reminder) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Reminders (%d)", len(rs))))
	for _, r := range rs {
		fmt.Fprintf(&b, "\n  %s  %s  %s",
			timeStyle.Render(fmt.Sprintf("%8s", store.FormatClock(r.Time))),
			answerStyle.Render(r.Task),
			idStyle.Render(r.ID))
	}
	return b.String()
}

func renderAdded(text string, info vox.ReminderInfo) string {
	line := okStyle.Render("✓ "+text) + "  " + answerStyle.Render(info.Reminder.Task) + " " +
		timeStyle.Render(store.FormatClock(info.Reminder.Time))
	if info.Alert == nil {
		return line + "\n" + dimStyle.Render("  notifications are off, no alert armed")
	}
	return line + "\n" + dimStyle.Render("  alert at "+info.Alert.Local().Format("Mon 15:04"))
}

func renderNext(resp ipc.Response) string {
	var next vox.NextInfo
	if err := resp.Decode(&next); err != nil {
		return dimStyle.Render(resp.Text)
	}
	h, m := next.Minutes/60, next.Minutes%60
	return fmt.Sprintf("%s\n  %s %s",
		answerStyle.Render(resp.Text),
		timeStyle.Render(next.Display),
		dimStyle.Render(fmt.Sprintf("(in %dh %02dm)", h, m)))
}

func renderSettings(s store.Settings) string {
	onOff := func(b bool) string {
		if b {
			return okStyle.Render("on")
		}
		return dimStyle.Render("off")
	}
	return strings.Join([]string{
		headerStyle.Render("Settings"),
		"  language       " + timeStyle.Render(string(s.Language)),
		"  voice          " + onOff(s.VoiceEnabled),
		"  notifications  " + onOff(s.NotificationsEnabled),
		"  offline mode   " + onOff(s.OfflineMode),
	}, "\n")
}

func renderWeather(w vox.WeatherInfo) string {
	lines := []string{
		headerStyle.Render(fmt.Sprintf("%s %s, %s", w.Icon, w.Location, w.Condition)),
		fmt.Sprintf("  %s  humidity %d%%  wind %d km/h", timeStyle.Render(fmt.Sprintf("%d°C", w.Temperature)), w.Humidity, w.Wind),
	}
	if w.Alert != "" {
		lines = append(lines, alertStyle.Render("  ⚠ "+w.Alert))
	}
	return strings.Join(lines, "\n")
}

func renderAdvice(a weather.Advice) string {
	head := "💧 " + string(a.Scenario)
	if a.Weather != nil {
		head += dimStyle.Render(fmt.Sprintf("  (%s %d°C)", a.Weather.Condition.Icon(), a.Weather.Temperature))
	}
	return headerStyle.Render(head) + "\n  " + answerStyle.Render(a.Text)
}

func renderSOS(active string, info vox.SOSInfo) string {
	var b strings.Builder
	b.WriteString(alertStyle.Render("🚨 " + active))
	fmt.Fprintf(&b, "\n%s\n%s", headerStyle.Render(info.Title), dimStyle.Render(info.Description))
	for i, a := range info.Advice {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, answerStyle.Render(a))
	}
	fmt.Fprintf(&b, "\n%s %s", info.CallLabel+":", alertStyle.Render(info.Helpline))
	return b.String()
}
