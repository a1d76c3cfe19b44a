// Package tuicmder provides the tui command: a full-screen chat client with
// a session list beside the conversation.
package tuicmder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/pulse/pkg/bootstrap"
	"github.com/papercomputeco/pulse/pkg/logger"
)

// ErrNoTTY is returned when stdout is not a terminal.
var ErrNoTTY = errors.New("pulse tui needs an interactive terminal; use 'pulse chat' for pipes")

func init() {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)
}

const tuiLongDesc string = `Open the full-screen chat client.

Sessions are listed on the left and the selected conversation on the right.
Responses stream into the conversation as they arrive and are kept, even
partially, when a stream fails or is cancelled.

Keys:
  enter      send the message (or open the highlighted session)
  tab        switch focus between the input and the session list
  ctrl+n     new session
  ctrl+x     delete the highlighted session
  ctrl+t     cycle the mode (chat, rag, doc)
  esc        stop the streaming response
  ctrl+c     quit

Logs are written to .pulse/pulse.log.

Examples:
  pulse tui
  pulse tui --mode doc --endpoint http://localhost:8090/api/chat/stream`

const tuiShortDesc string = "Full-screen chat client"

type tuiCommander struct {
	flags     bootstrap.ClientFlags
	configDir string
	debug     bool
}

func NewTUICmd() *cobra.Command {
	cmder := &tuiCommander{}

	cmd := &cobra.Command{
		Use:   "tui",
		Short: tuiShortDesc,
		Long:  tuiLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run(cmd)
		},
	}

	bootstrap.AddClientFlags(cmd, &cmder.flags)

	return cmd
}

func (c *tuiCommander) run(cmd *cobra.Command) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNoTTY
	}

	cfg, err := bootstrap.ResolveConfig(cmd, c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, closeLog := c.newLogger()
	defer closeLog()

	rt, err := bootstrap.New(cfg, c.configDir, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	model := newModel(cmd.Context(), rt.Service, cfg.Client.Endpoint)
	model.markdown = true

	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(cmd.Context()),
		bubbletea.WithAltScreen(),
	)
	_, err = program.Run()
	return err
}

// newLogger logs to the dot-dir file only; anything written to the
// terminal would tear the alt screen.
func (c *tuiCommander) newLogger() (*slog.Logger, func()) {
	f, err := bootstrap.OpenLogFile(c.configDir)
	if err != nil {
		return logger.Nop(), func() {}
	}
	return logger.Client(nil, f, c.debug), func() { _ = f.Close() }
}
