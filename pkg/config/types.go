package config

import (
	"fmt"
	"time"

	"github.com/papercomputeco/pulse/pkg/llm"
)

// Config represents the persistent pulse configuration stored as config.toml
// in the .pulse/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int          `toml:"version"`
	Client  ClientConfig `toml:"client"`
	Mock    MockConfig   `toml:"mock"`
}

// ClientConfig holds settings for the commands that talk to the streaming
// chat endpoint (pulse chat, pulse tui).
type ClientConfig struct {
	// Endpoint is the full URL of the streaming chat endpoint.
	Endpoint string `toml:"endpoint,omitempty"`

	// Token is a static bearer token. It is only ever read from the
	// environment or flags and is never written to config.toml.
	Token string `toml:"-"`

	// TokenFile is a file holding the bearer token. It is re-read whenever
	// the file changes.
	TokenFile string `toml:"token_file,omitempty"`

	UserID  string   `toml:"user_id,omitempty"`
	Timeout Duration `toml:"timeout,omitempty"`
	Mode    string   `toml:"mode,omitempty"`
}

// MockConfig holds settings for the local mock streaming backend.
type MockConfig struct {
	Listen string   `toml:"listen,omitempty"`
	Delay  Duration `toml:"delay,omitempty"`
}

// Duration is a time.Duration that encodes to TOML as a string like "120s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.endpoint": {
		get: func(c *Config) string { return c.Client.Endpoint },
		set: func(c *Config, v string) error { c.Client.Endpoint = v; return nil },
	},
	"client.token_file": {
		get: func(c *Config) string { return c.Client.TokenFile },
		set: func(c *Config, v string) error { c.Client.TokenFile = v; return nil },
	},
	"client.user_id": {
		get: func(c *Config) string { return c.Client.UserID },
		set: func(c *Config, v string) error { c.Client.UserID = v; return nil },
	},
	"client.timeout": {
		get: func(c *Config) string { return durationString(c.Client.Timeout) },
		set: func(c *Config, v string) error {
			return setDuration(&c.Client.Timeout, "client.timeout", v)
		},
	},
	"client.mode": {
		get: func(c *Config) string { return c.Client.Mode },
		set: func(c *Config, v string) error {
			mode, err := llm.ParseMode(v)
			if err != nil {
				return fmt.Errorf("invalid value for client.mode: %w", err)
			}
			c.Client.Mode = string(mode)
			return nil
		},
	},
	"mock.listen": {
		get: func(c *Config) string { return c.Mock.Listen },
		set: func(c *Config, v string) error { c.Mock.Listen = v; return nil },
	},
	"mock.delay": {
		get: func(c *Config) string { return durationString(c.Mock.Delay) },
		set: func(c *Config, v string) error {
			return setDuration(&c.Mock.Delay, "mock.delay", v)
		},
	},
}

func durationString(d Duration) string {
	if d.Duration == 0 {
		return ""
	}
	return d.String()
}

func setDuration(target *Duration, key, v string) error {
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid value for %s: must not be negative", key)
	}
	target.Duration = parsed
	return nil
}
