package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/pulse/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			data := `version = 0

[client]
endpoint = "https://chat.example.com/api/stream"
token_file = "/run/secrets/token"
user_id = "alice"
timeout = "30s"
mode = "rag"

[mock]
listen = ":9999"
delay = "5ms"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Client.Endpoint).To(Equal("https://chat.example.com/api/stream"))
			Expect(cfg.Client.TokenFile).To(Equal("/run/secrets/token"))
			Expect(cfg.Client.UserID).To(Equal("alice"))
			Expect(cfg.Client.Timeout.Duration).To(Equal(30 * time.Second))
			Expect(cfg.Client.Mode).To(Equal("rag"))
			Expect(cfg.Mock.Listen).To(Equal(":9999"))
			Expect(cfg.Mock.Delay.Duration).To(Equal(5 * time.Millisecond))
		})

		It("fills unset fields from defaults", func() {
			data := `[client]
endpoint = "http://localhost:8090/chat"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			defaults := config.NewDefaultConfig()
			Expect(cfg.Client.UserID).To(Equal(defaults.Client.UserID))
			Expect(cfg.Client.Timeout).To(Equal(defaults.Client.Timeout))
			Expect(cfg.Client.Mode).To(Equal(defaults.Client.Mode))
			Expect(cfg.Mock.Listen).To(Equal(defaults.Mock.Listen))
		})

		It("returns error for malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not valid toml [[["), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(cfg).To(BeNil())
		})

		It("returns error for an unparseable duration", func() {
			data := `[client]
timeout = "soon"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
		})

		It("returns error for unsupported config version", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("version = 99\n"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version"))
			Expect(cfg).To(BeNil())
		})
	})

	Describe("SaveConfig", func() {
		It("round-trips through disk", func() {
			cfg := config.NewDefaultConfig()
			cfg.Client.Endpoint = "https://chat.example.com/api/stream"
			cfg.Client.Timeout = config.Duration{Duration: 90 * time.Second}

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("never writes the bearer token", func() {
			cfg := config.NewDefaultConfig()
			cfg.Client.Token = "super-secret"

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(cfg)).To(Succeed())

			raw, err := os.ReadFile(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).NotTo(ContainSubstring("super-secret"))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).NotTo(Succeed())
		})
	})

	Describe("SetConfigValue", func() {
		It("sets a string key and preserves the others", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("client.endpoint", "http://localhost:8090/chat")).To(Succeed())
			Expect(c.SetConfigValue("client.user_id", "bob")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Client.Endpoint).To(Equal("http://localhost:8090/chat"))
			Expect(cfg.Client.UserID).To(Equal("bob"))
		})

		It("parses durations", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("client.timeout", "45s")).To(Succeed())
			val, err := c.GetConfigValue("client.timeout")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("45s"))

			err = c.SetConfigValue("mock.delay", "-1s")
			Expect(err).To(MatchError(ContainSubstring("must not be negative")))

			err = c.SetConfigValue("client.timeout", "later")
			Expect(err).To(MatchError(ContainSubstring("invalid value")))
		})

		It("normalises the mode", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("client.mode", "Document gen")).To(Succeed())
			val, err := c.GetConfigValue("client.mode")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("doc"))

			Expect(c.SetConfigValue("client.mode", "search")).NotTo(Succeed())
		})

		It("refuses to persist the bearer token", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = c.SetConfigValue("client.token", "abc")
			Expect(err).To(MatchError(config.ErrSecretKey))
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = c.SetConfigValue("proxy.upstream", "value")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns defaults when unset", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			val, err := c.GetConfigValue("client.user_id")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("test-user"))

			val, err = c.GetConfigValue("client.endpoint")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(BeEmpty())
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("returns keys in stable order", func() {
		Expect(config.ValidConfigKeys()).To(Equal([]string{
			"client.endpoint",
			"client.token_file",
			"client.user_id",
			"client.timeout",
			"client.mode",
			"mock.listen",
			"mock.delay",
		}))
	})

	It("agrees with IsValidConfigKey", func() {
		for _, k := range config.ValidConfigKeys() {
			Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
		}
		Expect(config.IsValidConfigKey("client.token")).To(BeFalse())
		Expect(config.IsValidConfigKey("endpoint")).To(BeFalse())
	})
})

var _ = Describe("NewDefaultConfig", func() {
	It("returns fully-populated defaults", func() {
		cfg := config.NewDefaultConfig()
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Client.Endpoint).To(BeEmpty())
		Expect(cfg.Client.UserID).To(Equal("test-user"))
		Expect(cfg.Client.Timeout.Duration).To(Equal(120 * time.Second))
		Expect(cfg.Client.Mode).To(Equal("chat"))
		Expect(cfg.Mock.Listen).To(Equal(":8090"))
		Expect(cfg.Mock.Delay.Duration).To(Equal(40 * time.Millisecond))
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())

		for _, env := range []string{
			config.EnvEndpoint, config.EnvToken,
			"PULSE_CLIENT_ENDPOINT", "PULSE_CLIENT_TOKEN", "PULSE_CLIENT_MODE",
		} {
			if old, ok := os.LookupEnv(env); ok {
				DeferCleanup(os.Setenv, env, old)
			}
			os.Unsetenv(env)
		}
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg).To(Equal(config.NewDefaultConfig()))
	})

	It("reads config file values over defaults", func() {
		data := `[client]
endpoint = "http://filehost/chat"
timeout = "10s"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.Client.Endpoint).To(Equal("http://filehost/chat"))
		Expect(cfg.Client.Timeout.Duration).To(Equal(10 * time.Second))
		Expect(cfg.Client.UserID).To(Equal("test-user"))
	})

	It("respects environment variables with PULSE_ prefix", func() {
		os.Setenv("PULSE_CLIENT_MODE", "rag")
		defer os.Unsetenv("PULSE_CLIENT_MODE")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v).Client.Mode).To(Equal("rag"))
	})

	It("reads the endpoint and token from their established names", func() {
		os.Setenv(config.EnvEndpoint, "http://envhost/chat")
		defer os.Unsetenv(config.EnvEndpoint)
		os.Setenv(config.EnvToken, "env-token")
		defer os.Unsetenv(config.EnvToken)

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.Client.Endpoint).To(Equal("http://envhost/chat"))
		Expect(cfg.Client.Token).To(Equal("env-token"))
	})

	It("prefers the PULSE_ variable over CHAT_STREAM_URL", func() {
		os.Setenv(config.EnvEndpoint, "http://legacy/chat")
		defer os.Unsetenv(config.EnvEndpoint)
		os.Setenv("PULSE_CLIENT_ENDPOINT", "http://pulse/chat")
		defer os.Unsetenv("PULSE_CLIENT_ENDPOINT")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v).Client.Endpoint).To(Equal("http://pulse/chat"))
	})

	It("env vars take precedence over config file values", func() {
		data := `[client]
endpoint = "http://filehost/chat"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		os.Setenv(config.EnvEndpoint, "http://envhost/chat")
		defer os.Unsetenv(config.EnvEndpoint)

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v).Client.Endpoint).To(Equal("http://envhost/chat"))
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var endpoint string
		var timeout time.Duration
		config.AddStringFlag(cmd, config.ClientFlags, config.FlagEndpoint, &endpoint)
		config.AddDurationFlag(cmd, config.ClientFlags, config.FlagTimeout, &timeout)

		Expect(cmd.Flags().Set("endpoint", "http://flaghost/chat")).To(Succeed())
		Expect(cmd.Flags().Set("timeout", "5s")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.ClientFlags, []string{config.FlagEndpoint, config.FlagTimeout})

		cfg := config.FromViper(v)
		Expect(cfg.Client.Endpoint).To(Equal("http://flaghost/chat"))
		Expect(cfg.Client.Timeout.Duration).To(Equal(5 * time.Second))
	})

	It("falls through to config when flag not set", func() {
		data := `[mock]
listen = ":5555"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.MockFlags, config.FlagMockListen, &listen)

		config.BindRegisteredFlags(v, cmd, config.MockFlags, []string{config.FlagMockListen})

		Expect(v.GetString("mock.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.FlagSet{}, []string{"nonexistent"})

		Expect(v.GetString("mock.listen")).To(Equal(":8090"))
	})

	It("takes name, shorthand, default and description from the FlagSet", func() {
		cmd := &cobra.Command{Use: "test"}
		var userID string
		config.AddStringFlag(cmd, config.ClientFlags, config.FlagUserID, &userID)

		f := cmd.Flags().Lookup("user-id")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("u"))
		Expect(f.DefValue).To(Equal("test-user"))
		Expect(f.Usage).To(Equal(config.ClientFlags[config.FlagUserID].Description))
	})
})
