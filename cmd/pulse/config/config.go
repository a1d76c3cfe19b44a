// Package configcmder provides the config command for managing persistent
// pulse configuration stored in the .pulse/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/pulse/pkg/config"
)

const configLongDesc string = `Manage persistent pulse configuration.

Configuration is stored as config.toml in the .pulse/ directory and provides
default values for command flags. CLI flags and environment variables always
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.endpoint, client.token_file, client.user_id,
  client.timeout, client.mode,
  mock.listen, mock.delay

The bearer token itself is never stored here. Pass it with --token or
AZURE_AD_TOKEN, point client.token_file at a file, or use "pulse auth".

Use subcommands to get, set, or list configuration values:
  pulse config set <key> <value>    Set a configuration value
  pulse config get <key>            Get a configuration value
  pulse config list                 List all configuration values

Examples:
  pulse config set client.endpoint https://chat.example.com/api/chat/stream
  pulse config set client.mode rag
  pulse config get client.timeout
  pulse config list`

const configShortDesc string = "Manage persistent pulse configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}
