package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. HLSTAIL_LOG_LEVEL.
const EnvPrefix = "HLSTAIL"

// Session holds the knobs of a single tailing session.
type Session struct {
	// RefreshInterval is used when a media playlist carries no target duration.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	// StaleTimeout ends a session when no new segment appeared for this long.
	StaleTimeout time.Duration `mapstructure:"stale_timeout"`
	// MaxRetries of zero selects the default; a negative value disables retries.
	MaxRetries   int           `mapstructure:"max_retries"`
	BackoffFloor time.Duration `mapstructure:"backoff_floor"`
	BackoffStep  time.Duration `mapstructure:"backoff_step"`
	// FinishOnEndList stops the session once a playlist carrying EXT-X-ENDLIST has been drained.
	FinishOnEndList bool `mapstructure:"finish_on_endlist"`
}

// Fetch configures the HTTP client used to retrieve playlists.
type Fetch struct {
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Server configures the multi-session daemon.
type Server struct {
	ListenAddr string `mapstructure:"listen_addr"`
	// JournalSize bounds how many emitted segment records are kept per session.
	JournalSize      int           `mapstructure:"journal_size"`
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`
}

// Config holds the fully processed application configuration.
type Config struct {
	LogLevel  string  `mapstructure:"log_level"`
	LogFormat string  `mapstructure:"log_format"`
	Session   Session `mapstructure:"session"`
	Fetch     Fetch   `mapstructure:"fetch"`
	Server    Server  `mapstructure:"server"`
}

// DefaultSession returns the session defaults: 5s refresh fallback, 60s stale
// timeout, 5 retries with a 550ms linear step floored at one second.
func DefaultSession() Session {
	return Session{
		RefreshInterval: 5 * time.Second,
		StaleTimeout:    60 * time.Second,
		MaxRetries:      5,
		BackoffFloor:    time.Second,
		BackoffStep:     550 * time.Millisecond,
	}
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	s := DefaultSession()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("session.refresh_interval", s.RefreshInterval)
	v.SetDefault("session.stale_timeout", s.StaleTimeout)
	v.SetDefault("session.max_retries", s.MaxRetries)
	v.SetDefault("session.backoff_floor", s.BackoffFloor)
	v.SetDefault("session.backoff_step", s.BackoffStep)
	v.SetDefault("session.finish_on_endlist", false)

	v.SetDefault("fetch.user_agent", "hlstail/1.0")
	v.SetDefault("fetch.request_timeout", 10*time.Second)

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.journal_size", 500)
	v.SetDefault("server.eviction_interval", 10*time.Second)
}

// New returns a viper instance with defaults and environment overrides wired.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path into v and decodes the result.
// An empty path skips the file and uses defaults, env and bound flags only.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the session machinery cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Session.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("session.refresh_interval must be positive, got %s", c.Session.RefreshInterval))
	}
	if c.Session.StaleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.stale_timeout must be positive, got %s", c.Session.StaleTimeout))
	}
	if c.Session.BackoffFloor < 0 {
		errs = append(errs, fmt.Errorf("session.backoff_floor must not be negative, got %s", c.Session.BackoffFloor))
	}
	if c.Session.BackoffStep < 0 {
		errs = append(errs, fmt.Errorf("session.backoff_step must not be negative, got %s", c.Session.BackoffStep))
	}
	if c.Server.JournalSize <= 0 {
		errs = append(errs, fmt.Errorf("server.journal_size must be positive, got %d", c.Server.JournalSize))
	}
	return errors.Join(errs...)
}
