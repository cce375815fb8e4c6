package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SubjectConfig identifies whose data the dashboard shows.
type SubjectConfig struct {
	UserID      string `mapstructure:"user_id" yaml:"user_id"`
	WorkspaceID string `mapstructure:"workspace_id" yaml:"workspace_id"`
}

// StoreConfig selects and configures the remote store.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver"`

	// DSN is a file path for sqlite or a connection string for postgres.
	DSN string `mapstructure:"dsn" yaml:"dsn"`

	// Timeout bounds every remote call.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// RealtimeConfig selects the push channel implementation.
type RealtimeConfig struct {
	// Mode is "local" (in-process hub), "postgres" (LISTEN/NOTIFY) or
	// "websocket" (relay).
	Mode string `mapstructure:"mode" yaml:"mode"`

	// URL is the relay base URL for websocket mode.
	URL string `mapstructure:"url" yaml:"url"`

	// Channel is the Postgres NOTIFY channel name.
	Channel string `mapstructure:"channel" yaml:"channel"`
}

// FeedConfig holds activity feed settings.
type FeedConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// RelayConfig holds settings for the push relay server.
type RelayConfig struct {
	Addr      string        `mapstructure:"addr" yaml:"addr"`
	JWTSecret string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Subject  SubjectConfig  `mapstructure:"subject" yaml:"subject"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Realtime RealtimeConfig `mapstructure:"realtime" yaml:"realtime"`
	Feed     FeedConfig     `mapstructure:"feed" yaml:"feed"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Relay    RelayConfig    `mapstructure:"relay" yaml:"relay"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskboard/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "taskboard")
}

var defaults = map[string]any{
	"subject.user_id":      "",
	"subject.workspace_id": "",
	"store.driver":         "sqlite",
	"store.dsn":            filepath.Join(configDir(), "taskboard.db"),
	"store.timeout":        "15s",
	"realtime.mode":        "local",
	"realtime.url":         "http://127.0.0.1:8090",
	"realtime.channel":     "taskboard_changes",
	"feed.limit":           50,
	"log.file":             filepath.Join(configDir(), "taskboard.log"),
	"log.level":            "info",
	"log.format":           "console",
	"log.max_size_mb":      10,
	"log.max_backups":      3,
	"log.max_age_days":     28,
	"relay.addr":           ":8090",
	"relay.jwt_secret":     "",
	"relay.token_ttl":      "1h",
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Every key needs a default so AutomaticEnv can override it.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// after loading a .env file from the working directory if present.
// TASKBOARD_* environment variables override file values. A missing file
// yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return decodeConfig(v, path)
}

func decodeConfig(v *viper.Viper, path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Feed.Limit <= 0 {
		cfg.Feed.Limit = 50
	}
	if cfg.Store.Timeout <= 0 {
		cfg.Store.Timeout = 15 * time.Second
	}
	return cfg, nil
}

// WatchConfig re-reads the file at path whenever it changes and hands the
// new configuration to onChange. Parse failures are passed to onError and
// the previous configuration stays in effect.
func WatchConfig(path string, onChange func(*AppConfig), onError func(error)) {
	v := newViper(path)
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decodeConfig(v, path)
		if err != nil {
			onError(err)
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("subject", cfg.Subject)
	v.Set("store", cfg.Store)
	v.Set("realtime", cfg.Realtime)
	v.Set("feed", cfg.Feed)
	v.Set("log", cfg.Log)
	// The relay secret comes from the environment only.
	relay := cfg.Relay
	relay.JWTSecret = ""
	v.Set("relay", relay)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// SaveSubject records subject in the YAML file at path and leaves every
// other key as the file had it. Environment overrides are not written
// back.
func SaveSubject(path string, subject SubjectConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.Set("subject.user_id", subject.UserID)
	v.Set("subject.workspace_id", subject.WorkspaceID)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
