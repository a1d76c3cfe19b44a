// Package chatcmder provides the chat command: a line-mode chat session
// against the configured streaming endpoint.
package chatcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/pulse/pkg/bootstrap"
	"github.com/papercomputeco/pulse/pkg/logger"
)

type chatCommander struct {
	flags     bootstrap.ClientFlags
	configDir string
	debug     bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session in the current terminal.

Each message is posted to the streaming chat endpoint and the response is
printed as it arrives. Sessions are kept in memory until pulse exits.

Commands:
  /new [title]       Start a new session
  /sessions          List sessions
  /select <n|id>     Switch to a session
  /delete [n|id]     Delete a session (defaults to the current one)
  /mode [mode]       Show or set the mode (chat, rag, doc); no argument cycles
  /history           Show the current session's messages
  /help              Show this help
  /exit              Quit (Ctrl+D also works)

Ctrl+C while a response is streaming stops that response and keeps what
arrived so far.

Examples:
  pulse chat --endpoint http://localhost:8090/api/chat/stream
  CHAT_STREAM_URL=https://chat.example.com/stream pulse chat --mode rag
  echo "hello" | pulse chat`

const chatShortDesc string = "Interactive line-mode chat"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			return cmder.run(cmd)
		},
	}

	bootstrap.AddClientFlags(cmd, &cmder.flags)

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command) error {
	cfg, err := bootstrap.ResolveConfig(cmd, c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var closeLog func()
	c.logger, closeLog = c.newLogger()
	defer closeLog()

	rt, err := bootstrap.New(cfg, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	r := &repl{
		svc:         rt.Service,
		endpoint:    cfg.Client.Endpoint,
		userID:      cfg.Client.UserID,
		in:          c.in,
		out:         c.out,
		errOut:      c.errOut,
		interactive: isTerminal(c.in),
		turnContext: func(parent context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(parent, os.Interrupt)
		},
	}

	return r.run(cmd.Context())
}

// newLogger writes errors (everything with --debug) to stderr and keeps a
// JSON trail in .pulse/pulse.log when it can be opened.
func (c *chatCommander) newLogger() (*slog.Logger, func()) {
	f, err := bootstrap.OpenLogFile(c.configDir)
	if err != nil {
		log := logger.Client(c.errOut, nil, c.debug)
		log.Debug("file logging disabled", "error", err)
		return log, func() {}
	}
	return logger.Client(c.errOut, f, c.debug), func() { _ = f.Close() }
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
