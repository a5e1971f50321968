package main

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	goAccount "github.com/MrEthical07/goAccount"
)

const (
	envLinkSecret  = "ACCOUNTD_LINK_SECRET"
	envRememberKey = "ACCOUNTD_REMEMBER_KEY"
)

// serverConfig is the accountd configuration file layout.
type serverConfig struct {
	Addr              string        `koanf:"addr"`
	BaseURL           string        `koanf:"base_url"`
	TrustForwardedFor bool          `koanf:"trust_forwarded_for"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Store struct {
		Driver      string `koanf:"driver"`
		DatabaseURL string `koanf:"database_url"`
	} `koanf:"store"`

	Links struct {
		Secret string `koanf:"secret"`
	} `koanf:"links"`

	RememberMe struct {
		Enabled    bool          `koanf:"enabled"`
		TTL        time.Duration `koanf:"ttl"`
		SigningKey string        `koanf:"signing_key"`
	} `koanf:"remember_me"`

	Session struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"session"`

	Cookies struct {
		Secure bool `koanf:"secure"`
	} `koanf:"cookies"`

	Mail struct {
		LogLinks bool `koanf:"log_links"`
	} `koanf:"mail"`

	Audit struct {
		Enabled bool `koanf:"enabled"`
		// Format is "log" (through the service logger) or "json" (one
		// object per line on stdout).
		Format string `koanf:"format"`
	} `koanf:"audit"`

	Metrics struct {
		Enabled           bool `koanf:"enabled"`
		LatencyHistograms bool `koanf:"latency_histograms"`
	} `koanf:"metrics"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"addr":                "addr",
	"base-url":            "base_url",
	"trust-forwarded-for": "trust_forwarded_for",
	"shutdown-timeout":    "shutdown_timeout",
	"log-level":           "log.level",
	"log-format":          "log.format",
	"redis-addr":          "redis.addr",
	"redis-db":            "redis.db",
	"store":               "store.driver",
	"database-url":        "store.database_url",
	"remember-me":         "remember_me.enabled",
	"secure-cookies":      "cookies.secure",
	"mail-log-links":      "mail.log_links",
	"audit":               "audit.enabled",
	"audit-format":        "audit.format",
	"metrics":             "metrics.enabled",
	"latency-histograms":  "metrics.latency_histograms",
}

// loadConfig reads path (if set) and overlays flags. Flags left at their
// defaults only fill keys the file does not set. Secrets fall back to the
// environment.
func loadConfig(path string, flags *pflag.FlagSet) (serverConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return serverConfig{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return serverConfig{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg serverConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return serverConfig{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if cfg.Links.Secret == "" {
		cfg.Links.Secret = os.Getenv(envLinkSecret)
	}
	if cfg.RememberMe.SigningKey == "" {
		cfg.RememberMe.SigningKey = os.Getenv(envRememberKey)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))

	return cfg, nil
}

// engineConfig layers cfg over the engine defaults.
func (cfg serverConfig) engineConfig() (goAccount.Config, error) {
	out := goAccount.DefaultConfig()

	if cfg.BaseURL != "" {
		out.Links.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	out.Links.Secret = []byte(cfg.Links.Secret)

	out.RememberMe.Enabled = cfg.RememberMe.Enabled
	out.RememberMe.SigningKey = []byte(cfg.RememberMe.SigningKey)
	if cfg.RememberMe.TTL > 0 {
		out.RememberMe.TTL = cfg.RememberMe.TTL
	}
	if cfg.Session.TTL > 0 {
		out.Session.TTL = cfg.Session.TTL
	}

	out.Audit.Enabled = cfg.Audit.Enabled
	out.Metrics.Enabled = cfg.Metrics.Enabled
	out.Metrics.EnableLatencyHistograms = cfg.Metrics.LatencyHistograms

	if err := out.Validate(); err != nil {
		return goAccount.Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return out, nil
}
