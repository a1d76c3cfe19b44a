// Package bootstrap assembles the client side of pulse from configuration:
// token sources, the stream client, the session store and the chat service.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/pulse/pkg/chat"
	"github.com/papercomputeco/pulse/pkg/config"
	"github.com/papercomputeco/pulse/pkg/credentials"
	"github.com/papercomputeco/pulse/pkg/dotdir"
	"github.com/papercomputeco/pulse/pkg/llm"
	"github.com/papercomputeco/pulse/pkg/session"
	"github.com/papercomputeco/pulse/pkg/stream"
)

// ClientFlagKeys are the registry keys of the flags bound by ResolveConfig.
var ClientFlagKeys = []string{
	config.FlagEndpoint,
	config.FlagToken,
	config.FlagTokenFile,
	config.FlagUserID,
	config.FlagTimeout,
	config.FlagMode,
}

// AddClientFlags registers the shared client flags on cmd.
func AddClientFlags(cmd *cobra.Command, flags *ClientFlags) {
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagEndpoint, &flags.Endpoint)
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagToken, &flags.Token)
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagTokenFile, &flags.TokenFile)
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagUserID, &flags.UserID)
	config.AddDurationFlag(cmd, config.ClientFlags, config.FlagTimeout, &flags.Timeout)
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagMode, &flags.Mode)
}

// ResolveConfig merges flags, environment, config.toml and defaults.
func ResolveConfig(cmd *cobra.Command, configDir string) (*config.Config, error) {
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}

	config.BindRegisteredFlags(v, cmd, config.ClientFlags, ClientFlagKeys)

	return config.FromViper(v), nil
}

// Runtime is everything a chat front end needs for one process.
type Runtime struct {
	Config  *config.Config
	Store   *session.Store
	Client  *stream.Client
	Service *chat.Service

	fileToken *credentials.FileToken
}

// New builds a Runtime from cfg. configDir locates credentials.toml.
func New(cfg *config.Config, configDir string, logger *slog.Logger) (*Runtime, error) {
	if cfg.Client.Endpoint == "" {
		return nil, fmt.Errorf("%w: set --endpoint, %s or client.endpoint", stream.ErrNoEndpoint, config.EnvEndpoint)
	}

	mode, err := llm.ParseMode(cfg.Client.Mode)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg}

	tokens, err := rt.tokenSource(cfg, configDir, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	client, err := stream.New(stream.Config{
		Endpoint:    cfg.Client.Endpoint,
		Timeout:     cfg.Client.Timeout.Duration,
		TokenSource: tokens,
	}, logger.With("component", "stream"))
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.Client = client
	rt.Store = session.NewStore()
	rt.Service = chat.NewService(rt.Store, client, chat.Config{
		UserID: cfg.Client.UserID,
		Mode:   mode,
	}, logger.With("component", "chat"))

	return rt, nil
}

// tokenSource builds the token chain: explicit token, then token file, then
// the token stored for the endpoint by "pulse auth".
func (rt *Runtime) tokenSource(cfg *config.Config, configDir string, logger *slog.Logger) (credentials.TokenSource, error) {
	chain := credentials.Chain{credentials.StaticToken(cfg.Client.Token)}

	if cfg.Client.TokenFile != "" {
		ft, err := credentials.NewFileToken(cfg.Client.TokenFile, logger.With("component", "token"))
		if err != nil {
			return nil, fmt.Errorf("watching token file: %w", err)
		}
		rt.fileToken = ft
		chain = append(chain, ft)
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	stored, err := mgr.GetToken(cfg.Client.Endpoint)
	if err != nil {
		logger.Warn("ignoring unreadable credentials file", "path", mgr.GetTarget(), "error", err)
	}
	chain = append(chain, credentials.StaticToken(stored))

	return chain, nil
}

// Close releases the token file watcher, if any.
func (rt *Runtime) Close() error {
	if rt.fileToken == nil {
		return nil
	}
	return rt.fileToken.Close()
}

// LogFile is the name of the log file kept in the .pulse/ directory.
const LogFile = "pulse.log"

// OpenLogFile opens the .pulse/pulse.log file for appending.
func OpenLogFile(configDir string) (*os.File, error) {
	path, err := dotdir.NewManager().File(configDir, LogFile)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
