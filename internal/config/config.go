package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/muurk/fleetsync/internal/reconcile"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FLEETSYNC"

// Config is the full client configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Session   SessionConfig   `mapstructure:"session"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Log       LogConfig       `mapstructure:"log"`
	Events    EventsConfig    `mapstructure:"events"`
}

// APIConfig points at the fleet backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig selects where the bearer token is kept.
type SessionConfig struct {
	Backend string `mapstructure:"backend"` // file, sqlite or memory
	Path    string `mapstructure:"path"`
}

// ReconcileConfig tunes status verification.
type ReconcileConfig struct {
	InitialDelay   time.Duration `mapstructure:"initial_delay"`
	DelayIncrement time.Duration `mapstructure:"delay_increment"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
}

// LogConfig sets the log level. Empty means silent.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// EventsConfig is the websocket event stream served by serve-events.
// TLS is used when both cert and key are set.
type EventsConfig struct {
	Addr       string `mapstructure:"addr"`
	CertPath   string `mapstructure:"cert"`
	KeyPath    string `mapstructure:"key"`
	CaptureDir string `mapstructure:"capture_dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("session.backend", "file")
	v.SetDefault("session.path", DefaultSessionPath())
	rec := reconcile.DefaultOptions()
	v.SetDefault("reconcile.initial_delay", rec.InitialDelay)
	v.SetDefault("reconcile.delay_increment", rec.DelayIncrement)
	v.SetDefault("reconcile.max_attempts", rec.MaxAttempts)
	v.SetDefault("log.level", "")
	v.SetDefault("events.addr", "127.0.0.1:8090")
	v.SetDefault("events.cert", "")
	v.SetDefault("events.key", "")
	v.SetDefault("events.capture_dir", "")
}

// Load reads configuration. With an empty path it looks for config.yaml in
// GetConfigDir and tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that would otherwise fail later and obscurely.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must start with http:// or https://, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.Reconcile.MaxAttempts < 1 {
		return fmt.Errorf("reconcile.max_attempts must be at least 1, got %d", c.Reconcile.MaxAttempts)
	}
	if (c.Events.CertPath == "") != (c.Events.KeyPath == "") {
		return fmt.Errorf("events.cert and events.key must be set together")
	}
	if c.Reconcile.InitialDelay < 0 || c.Reconcile.DelayIncrement < 0 {
		return fmt.Errorf("reconcile delays must not be negative")
	}
	return nil
}
