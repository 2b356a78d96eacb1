package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dhwani/internal/ipc"
	"dhwani/internal/store"
	"dhwani/internal/vox"
	"dhwani/internal/weather"
)

type ctl struct {
	socket string
	asJSON bool
}

// send delivers req and turns a daemon-side failure into an error.
func (c *ctl) send(req ipc.Request) (ipc.Response, error) {
	resp, err := ipc.Send(c.socket, req)
	if err != nil {
		return resp, fmt.Errorf("dhwanid not running? %w", err)
	}
	if !resp.OK {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

func newRootCmd() *cobra.Command {
	c := &ctl{}
	root := &cobra.Command{
		Use:   "dhwanictl",
		Short: "Talk to the dhwani farming assistant daemon",
		Long: `Control the dhwani voice assistant over its local socket.

Quick Start:
  dhwanictl listen                     # ask by voice
  dhwanictl ask "when should I water"  # ask by text
  dhwanictl remind add 06:00 Irrigate  # set a daily reminder`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.socket, "socket", "s", ipc.SocketPath, "Daemon control socket")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Print raw JSON responses")

	root.AddCommand(
		c.listenCmd(),
		c.simpleCmd("stop", "Stop listening or speaking"),
		c.simpleCmd("hush", "Stop speaking"),
		c.simpleCmd("state", "Show the voice session state"),
		c.textCmd("ask", "Ask a farming question by text"),
		c.textCmd("say", "Speak text aloud"),
		c.historyCmd("history", "Show the conversation"),
		c.historyCmd("clear", "Clear the conversation"),
		c.remindCmd(),
		c.settingsCmd(),
		c.weatherCmd(),
		c.irrigationCmd(),
		c.doctorCmd(),
		c.sosCmd(),
	)
	return root
}

func (c *ctl) print(cmd *cobra.Command, resp ipc.Response, pretty func() string) {
	out := cmd.OutOrStdout()
	if c.asJSON {
		if len(resp.Data) > 0 {
			fmt.Fprintln(out, string(resp.Data))
		} else {
			fmt.Fprintln(out, resp.Text)
		}
		return
	}
	if s := pretty(); s != "" {
		fmt.Fprintln(out, s)
	}
}

func (c *ctl) stateLine(resp ipc.Response) func() string {
	return func() string {
		var st vox.StateInfo
		if err := resp.Decode(&st); err != nil {
			return resp.Text
		}
		return stateStyle(st.State).Render("● " + st.Label)
	}
}

func (c *ctl) simpleCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.send(ipc.Request{Cmd: name})
			if err != nil {
				return err
			}
			c.print(cmd, resp, c.stateLine(resp))
			return nil
		},
	}
}

func (c *ctl) listenCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Start a voice question",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.Request{Cmd: "listen"}
			if file != "" {
				abs, err := filepath.Abs(file)
				if err != nil {
					return err
				}
				req.File = abs
			}
			resp, err := c.send(req)
			if err != nil {
				return err
			}
			c.print(cmd, resp, c.stateLine(resp))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Voice note to use instead of the microphone")
	return cmd
}

func (c *ctl) textCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <text>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.send(ipc.Request{Cmd: name, Text: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			c.print(cmd, resp, func() string { return answerStyle.Render(resp.Text) })
			return nil
		},
	}
}

func (c *ctl) historyCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.send(ipc.Request{Cmd: name})
			if err != nil {
				return err
			}
			var msgs []store.ChatMessage
			if err := resp.Decode(&msgs); err != nil {
				return err
			}
			c.print(cmd, resp, func() string { return renderHistory(msgs) })
			return nil
		},
	}
}

func (c *ctl) remindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Manage daily reminders",
	}

	list := func(cmd *cobra.Command, args []string) error {
		resp, err := c.send(ipc.Request{Cmd: "reminders"})
		if err != nil {
			return err
		}
		var rs []store.Reminder
		if err := resp.Decode(&rs); err != nil {
			return err
		}
		c.print(cmd, resp, func() string {
			if len(rs) == 0 {
				return dimStyle.Render(resp.Text)
			}
			return renderReminders(rs)
		})
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <HH:MM> <task>",
			Short: "Add a reminder",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := c.send(ipc.Request{Cmd: "remind", Time: args[0], Text: strings.Join(args[1:], " ")})
				if err != nil {
					return err
				}
				var info vox.ReminderInfo
				if err := resp.Decode(&info); err != nil {
					return err
				}
				c.print(cmd, resp, func() string { return renderAdded(resp.Text, info) })
				return nil
			},
		},
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List reminders",
			Args:    cobra.NoArgs,
			RunE:    list,
		},
		&cobra.Command{
			Use:     "rm <id>",
			Aliases: []string{"remove"},
			Short:   "Delete a reminder",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := c.send(ipc.Request{Cmd: "forget", ID: args[0]})
				if err != nil {
					return err
				}
				c.print(cmd, resp, func() string { return okStyle.Render("✓ " + resp.Text) })
				return nil
			},
		},
		&cobra.Command{
			Use:   "next",
			Short: "Show the next reminder due",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := c.send(ipc.Request{Cmd: "next"})
				if err != nil {
					return err
				}
				c.print(cmd, resp, func() string { return renderNext(resp) })
				return nil
			},
		},
	)
	cmd.RunE = list
	return cmd
}

func (c *ctl) settingsCmd() *cobra.Command {
	var (
		language string
		voice    bool
		notify   bool
		offline  bool
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.Request{Cmd: "settings"}
			flags := cmd.Flags()
			if flags.Changed("lang") {
				req.Lang = language
			}
			if flags.Changed("voice") {
				req.Voice = &voice
			}
			if flags.Changed("notify") {
				req.Notify = &notify
			}
			if flags.Changed("offline") {
				req.Offline = &offline
			}
			if req.Lang != "" || req.Voice != nil || req.Notify != nil || req.Offline != nil {
				req.Cmd = "set"
			}

			resp, err := c.send(req)
			if err != nil {
				return err
			}
			var s store.Settings
			if err := resp.Decode(&s); err != nil {
				return err
			}
			c.print(cmd, resp, func() string { return renderSettings(s) })
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "lang", "", "Language (en|hi|te)")
	cmd.Flags().BoolVar(&voice, "voice", true, "Speak answers")
	cmd.Flags().BoolVar(&notify, "notify", true, "Reminder notifications")
	cmd.Flags().BoolVar(&offline, "offline", false, "Offline mode")
	return cmd
}

func (c *ctl) weatherCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weather",
		Short: "Show the local weather",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.send(ipc.Request{Cmd: "weather"})
			if err != nil {
				return err
			}
			var w vox.WeatherInfo
			if err := resp.Decode(&w); err != nil {
				return err
			}
			c.print(cmd, resp, func() string { return renderWeather(w) })
			return nil
		},
	}
}

func (c *ctl) irrigationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "irrigation",
		Short: "Get irrigation advice for today's weather",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.send(ipc.Request{Cmd: "irrigation"})
			if err != nil {
				return err
			}
			var a weather.Advice
			if err := resp.Decode(&a); err != nil {
				return err
			}
			c.print(cmd, resp, func() string { return renderAdvice(a) })
			return nil
		},
	}
}

func (c *ctl) doctorCmd() *cobra.Command {
	var symptom string
	cmd := &cobra.Command{
		Use:   "doctor [question]",
		Short: "Consult the crop doctor",
		Long: `Without a question or symptom a new consultation starts.

Symptoms: ` + strings.Join(vox.Symptoms, ", "),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.Request{Cmd: "doctor", Text: strings.Join(args, " "), Symptom: symptom}
			resp, err := c.send(req)
			if err != nil {
				return err
			}
			if req.Text == "" && req.Symptom == "" {
				var msgs []store.ChatMessage
				if err := resp.Decode(&msgs); err != nil {
					return err
				}
				c.print(cmd, resp, func() string { return renderHistory(msgs) })
				return nil
			}
			c.print(cmd, resp, func() string { return answerStyle.Render(resp.Text) })
			return nil
		},
	}
	cmd.Flags().StringVar(&symptom, "symptom", "", "Ask about a common symptom")
	return cmd
}

func (c *ctl) sosCmd() *cobra.Command {
	var speak bool
	cmd := &cobra.Command{
		Use:   "sos",
		Short: "Show emergency advice and the helpline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if speak {
				resp, err := c.send(ipc.Request{Cmd: "sos-advice"})
				if err != nil {
					return err
				}
				c.print(cmd, resp, func() string { return answerStyle.Render(resp.Text) })
				return nil
			}
			resp, err := c.send(ipc.Request{Cmd: "sos"})
			if err != nil {
				return err
			}
			var info vox.SOSInfo
			if err := resp.Decode(&info); err != nil {
				return err
			}
			c.print(cmd, resp, func() string { return renderSOS(resp.Text, info) })
			return nil
		},
	}
	cmd.Flags().BoolVar(&speak, "speak", false, "Read all advice aloud")
	return cmd
}
