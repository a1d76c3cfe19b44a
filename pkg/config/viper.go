package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/pulse/pkg/dotdir"
)

// Environment variables understood in addition to the PULSE_ prefixed ones.
// These are the names existing deployments of the chat service already use.
const (
	EnvEndpoint = "CHAT_STREAM_URL"
	EnvToken    = "AZURE_AD_TOKEN"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the PULSE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (PULSE_CLIENT_ENDPOINT, CHAT_STREAM_URL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The prefixed name is listed first so it wins when both are set.
	_ = v.BindEnv("client.endpoint", "PULSE_CLIENT_ENDPOINT", EnvEndpoint)
	_ = v.BindEnv("client.token", "PULSE_CLIENT_TOKEN", EnvToken)

	return v, nil
}

// FromViper resolves the effective Config from v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Client: ClientConfig{
			Endpoint:  strings.TrimSpace(v.GetString("client.endpoint")),
			Token:     strings.TrimSpace(v.GetString("client.token")),
			TokenFile: v.GetString("client.token_file"),
			UserID:    v.GetString("client.user_id"),
			Timeout:   Duration{v.GetDuration("client.timeout")},
			Mode:      v.GetString("client.mode"),
		},
		Mock: MockConfig{
			Listen: v.GetString("mock.listen"),
			Delay:  Duration{v.GetDuration("mock.delay")},
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Client
	v.SetDefault("client.endpoint", d.Client.Endpoint)
	v.SetDefault("client.token", d.Client.Token)
	v.SetDefault("client.token_file", d.Client.TokenFile)
	v.SetDefault("client.user_id", d.Client.UserID)
	v.SetDefault("client.timeout", d.Client.Timeout.Duration)
	v.SetDefault("client.mode", d.Client.Mode)

	// Mock
	v.SetDefault("mock.listen", d.Mock.Listen)
	v.SetDefault("mock.delay", d.Mock.Delay.Duration)
}
