// Package pulsecmder
package pulsecmder

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/pulse/cmd/pulse/auth"
	chatcmder "github.com/papercomputeco/pulse/cmd/pulse/chat"
	configcmder "github.com/papercomputeco/pulse/cmd/pulse/config"
	initcmder "github.com/papercomputeco/pulse/cmd/pulse/init"
	mockcmder "github.com/papercomputeco/pulse/cmd/pulse/mock"
	tuicmder "github.com/papercomputeco/pulse/cmd/pulse/tui"
	versioncmder "github.com/papercomputeco/pulse/cmd/version"
)

const pulseLongDesc string = `Pulse is a terminal client for streaming chat endpoints.

It posts each message to the configured endpoint and renders the
server-sent event stream as it arrives. Sessions live in memory for the
lifetime of the process.

Start chatting using:
  pulse chat           Line-mode chat in the current terminal
  pulse tui            Full-screen chat with a session list
  pulse mock           Run a local streaming backend to test against

The endpoint is read from --endpoint, CHAT_STREAM_URL, PULSE_CLIENT_ENDPOINT
or client.endpoint in config.toml. A .env file in the working directory is
loaded first.`

const pulseShortDesc string = "Pulse - streaming chat client"

func NewPulseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pulse",
		Short:         pulseShortDesc,
		Long:          pulseLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv(".env")
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .pulse/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(tuicmder.NewTUICmd())
	cmd.AddCommand(mockcmder.NewMockCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is fine.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
