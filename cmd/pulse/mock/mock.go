// Package mockcmder provides the mock backend command.
package mockcmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/pulse/mock"
	"github.com/papercomputeco/pulse/pkg/config"
	"github.com/papercomputeco/pulse/pkg/logger"
)

type mockCommander struct {
	listen     string
	delay      time.Duration
	shape      string
	token      string
	errorAfter int
	dropAfter  int
	heartbeat  bool
	debug      bool

	logger *slog.Logger
}

const mockLongDesc string = `Run a local streaming chat backend for development and demos.

Every POST is answered with a scripted Server-Sent Events stream ending in
"data: [DONE]". The frame shape follows the request's mode unless --shape
forces one:

  openai    chat.completion.chunk deltas (mode chat)
  envelope  a {"data":{"type":"thought"}} preamble, then answer envelopes (mode rag)
  event     "event: message{...}" lines with the payload inline (mode doc)
  flat      {"content": ...}, {"token": ...} and {"text": ...} frames

Faults can be injected to exercise clients: --error-after emits an inline
{"error": ...} frame, --drop-after closes the connection mid-stream without
the sentinel.

Examples:
  pulse mock
  pulse mock --listen :9000 --delay 100ms
  pulse mock --shape flat --error-after 3
  pulse mock --token letmein`

const mockShortDesc string = "Run a mock streaming chat backend"

var mockFlagKeys = []string{
	config.FlagMockListen,
	config.FlagMockDelay,
}

func NewMockCmd() *cobra.Command {
	cmder := &mockCommander{}

	cmd := &cobra.Command{
		Use:   "mock",
		Short: mockShortDesc,
		Long:  mockLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.MockFlags, mockFlagKeys)

			cfg := config.FromViper(v)
			cmder.listen = cfg.Mock.Listen
			cmder.delay = cfg.Mock.Delay.Duration
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.logger = logger.New(
				logger.WithWriter(cmd.ErrOrStderr()),
				logger.WithPretty(true),
				logger.WithDebug(cmder.debug),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, nil)
		},
	}

	config.AddStringFlag(cmd, config.MockFlags, config.FlagMockListen, &cmder.listen)
	config.AddDurationFlag(cmd, config.MockFlags, config.FlagMockDelay, &cmder.delay)
	cmd.Flags().StringVar(&cmder.shape, "shape", "", "Force a frame shape ("+shapeNames()+")")
	cmd.Flags().StringVar(&cmder.token, "token", "", "Require this bearer token on every request")
	cmd.Flags().IntVar(&cmder.errorAfter, "error-after", 0, "Emit an inline error frame after N tokens (0 disables)")
	cmd.Flags().IntVar(&cmder.dropAfter, "drop-after", 0, "Drop the connection after N tokens (0 disables)")
	cmd.Flags().BoolVar(&cmder.heartbeat, "heartbeat", false, "Send an SSE comment before the first frame")

	return cmd
}

// run serves until ctx is done. A nil listener listens on c.listen.
func (c *mockCommander) run(ctx context.Context, listener net.Listener) error {
	shape, err := mock.ParseShape(c.shape)
	if err != nil {
		return err
	}

	s, err := mock.New(mock.Config{
		ListenAddr: c.listen,
		Delay:      c.delay,
		Shape:      shape,
		Token:      c.token,
		ErrorAfter: c.errorAfter,
		DropAfter:  c.dropAfter,
		Heartbeat:  c.heartbeat,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating mock backend: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if listener != nil {
			errCh <- s.RunWithListener(listener)
			return
		}
		errCh <- s.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down mock backend")
		if err := s.Close(); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	}
}

func shapeNames() string {
	names := make([]string, 0, len(mock.Shapes()))
	for _, s := range mock.Shapes() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
