// Package initcmder provides the init command for initializing a local .pulse
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/pulse/pkg/cliui"
	"github.com/papercomputeco/pulse/pkg/config"
	"github.com/papercomputeco/pulse/pkg/credentials"
)

const (
	dirName = ".pulse"
)

const initLongDesc string = `Initialize a new .pulse/ directory in the current working directory.

Creates a local .pulse/ directory holding a config.toml with default values.
It takes precedence over ~/.pulse/ for configuration, stored tokens and
logs, which keeps per-project endpoints apart.

Examples:
  pulse init
  pulse init --endpoint http://localhost:8090/api/chat/stream`

const initShortDesc string = "Initialize a local .pulse/ directory"

func NewInitCmd() *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), endpoint)
		},
	}

	cmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "Streaming chat endpoint URL to write to config.toml")

	return cmd
}

func runInit(w io.Writer, endpoint string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .pulse directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg := config.NewDefaultConfig()
	cfg.Client.Endpoint = credentials.NormalizeEndpoint(endpoint)
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Initialized .pulse directory: %s\n", cliui.SuccessMark, dir)
	return nil
}
