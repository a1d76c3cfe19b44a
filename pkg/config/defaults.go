package config

import "time"

const (
	defaultUserID  = "test-user"
	defaultTimeout = 120 * time.Second
	defaultMode    = "chat"

	defaultMockListen = ":8090"
	defaultMockDelay  = 40 * time.Millisecond
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			UserID:  defaultUserID,
			Timeout: Duration{defaultTimeout},
			Mode:    defaultMode,
		},
		Mock: MockConfig{
			Listen: defaultMockListen,
			Delay:  Duration{defaultMockDelay},
		},
	}
}
