// Package authcmder provides the auth command for storing bearer tokens per
// chat endpoint.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/pulse/pkg/cliui"
	"github.com/papercomputeco/pulse/pkg/config"
	"github.com/papercomputeco/pulse/pkg/credentials"
)

const authLongDesc string = `Store a bearer token for a chat endpoint.

Tokens are stored in credentials.toml in the .pulse/ directory, keyed by
endpoint URL, and sent as "Authorization: Bearer <token>" when no token is
given with --token, AZURE_AD_TOKEN or client.token_file.

Without an argument the configured endpoint (client.endpoint or
CHAT_STREAM_URL) is used.

Examples:
  pulse auth                                      Prompt for the configured endpoint's token
  pulse auth https://chat.example.com/api/chat/stream
  pulse auth --list                               List endpoints with stored tokens
  pulse auth --remove https://chat.example.com/api/chat/stream
  az account get-access-token --query accessToken -o tsv | pulse auth`

const authShortDesc string = "Store a bearer token for a chat endpoint"

type authCommander struct {
	configDir string
	in        io.Reader
	out       io.Writer
}

func NewAuthCmd() *cobra.Command {
	var listFlag bool
	var removeFlag string

	cmd := &cobra.Command{
		Use:   "auth [endpoint]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			c := &authCommander{
				configDir: configDir,
				in:        cmd.InOrStdin(),
				out:       cmd.OutOrStdout(),
			}

			switch {
			case listFlag:
				return c.runList()
			case removeFlag != "":
				return c.runRemove(removeFlag)
			}

			endpoint := ""
			if len(args) == 1 {
				endpoint = args[0]
			} else {
				v, err := config.InitViper(configDir)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				endpoint = config.FromViper(v).Client.Endpoint
			}
			if endpoint == "" {
				return fmt.Errorf("endpoint argument required\n\nPass one, or set client.endpoint or %s", config.EnvEndpoint)
			}
			return c.runAuth(endpoint)
		},
		ValidArgsFunction: func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			configDir, _ := cmd.Flags().GetString("config-dir")
			mgr, err := credentials.NewManager(configDir)
			if err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			endpoints, _ := mgr.ListEndpoints()
			return endpoints, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List endpoints with stored tokens")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove the stored token for an endpoint")

	return cmd
}

func (c *authCommander) runAuth(endpoint string) error {
	endpoint = credentials.NormalizeEndpoint(endpoint)
	if err := validateEndpoint(endpoint); err != nil {
		return err
	}

	token, err := c.readToken(endpoint)
	if err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token cannot be empty")
	}

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	err = cliui.Step(c.out, "Saving token", func() error {
		return mgr.SetToken(endpoint, token)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Stored token for %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(endpoint),
		cliui.DimStyle.Render("("+mgr.GetTarget()+")"),
	)
	return nil
}

func (c *authCommander) runList() error {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	endpoints, err := mgr.ListEndpoints()
	if err != nil {
		return err
	}

	if len(endpoints) == 0 {
		fmt.Fprintf(c.out, "\n  %s No stored tokens.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(c.out, "  Use 'pulse auth <endpoint>' to store one.\n\n")
		return nil
	}

	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored tokens"))
	for _, e := range endpoints {
		fmt.Fprintf(c.out, "  %s  %s\n", cliui.SuccessMark, cliui.NameStyle.Render(e))
	}
	fmt.Fprintln(c.out)

	return nil
}

func (c *authCommander) runRemove(endpoint string) error {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveToken(endpoint); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Removed token for %s.\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(credentials.NormalizeEndpoint(endpoint)),
	)
	return nil
}

// readToken reads the first line of piped input, or prompts with hidden
// input when stdin is a terminal.
func (c *authCommander) readToken(endpoint string) (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(c.out, "Enter bearer token for %s: ", endpoint)

		tokenBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return string(tokenBytes), nil
	}

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: expected an absolute http(s) URL", endpoint)
	}
	return nil
}
