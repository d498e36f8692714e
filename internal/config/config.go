// Package config loads the service configuration from a TOML file and
// applies defaults for anything left unset.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/archivista/lore-ingest/internal/core/domain"
)

// Config is the full service configuration.
type Config struct {
	Env      string  `toml:"env"`
	LogLevel string  `toml:"log_level"`
	DBPath   string  `toml:"db_path"`
	HTTP     HTTP    `toml:"http"`
	Ingest   Ingest  `toml:"ingest"`
	Watcher  Watcher `toml:"watcher"`
	Events   Events  `toml:"events"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr string `toml:"addr"`
}

// Ingest configures pipeline defaults.
type Ingest struct {
	Profile     string `toml:"profile"`
	WindowChars int    `toml:"window_chars"`
	StrideChars int    `toml:"stride_chars"`
}

// Watcher configures the folder watcher.
type Watcher struct {
	Inbox             string   `toml:"inbox"`
	SuccessDir        string   `toml:"success_dir"`
	FailDir           string   `toml:"fail_dir"`
	AllowedExtensions []string `toml:"allowed_extensions"`
	MaxFileMB         int64    `toml:"max_file_mb"`
	Workers           int      `toml:"workers"`
	QueueCapacity     int      `toml:"queue_capacity"`
	StabilityWindowMS int      `toml:"stability_window_ms"`
	PollIntervalMS    int      `toml:"poll_interval_ms"`
	MaxAttempts       int      `toml:"max_attempts"`
	BackoffBaseMS     int      `toml:"backoff_base_ms"`
	Recursive         bool     `toml:"recursive"`
}

// Events configures event sinks. Sinks lists the enabled sinks by name:
// stdout, webhook, redis.
type Events struct {
	Sinks   []string `toml:"sinks"`
	Webhook Webhook  `toml:"webhook"`
	Redis   Redis    `toml:"redis"`
}

// Webhook configures the webhook sink.
type Webhook struct {
	URL           string  `toml:"url"`
	Auth          string  `toml:"auth"`
	TimeoutMS     int     `toml:"timeout_ms"`
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// Redis configures the redis sink.
type Redis struct {
	Addrs    []string `toml:"addrs"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	Channel  string   `toml:"channel"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Env:      "local",
		LogLevel: "",
		DBPath:   "./lore.db",
		HTTP:     HTTP{Addr: ":8080"},
		Ingest:   Ingest{Profile: "default", WindowChars: 512, StrideChars: 384},
		Watcher: Watcher{
			Inbox:             "./inbox",
			SuccessDir:        "./success",
			FailDir:           "./fail",
			AllowedExtensions: []string{".txt", ".md", ".pdf", ".docx"},
			MaxFileMB:         32,
			Workers:           2,
			QueueCapacity:     64,
			StabilityWindowMS: 2000,
			PollIntervalMS:    1000,
			MaxAttempts:       3,
			BackoffBaseMS:     1000,
		},
		Events: Events{Sinks: []string{"stdout"}},
	}
}

// Load reads a TOML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the services would refuse at runtime.
func (c Config) Validate() error {
	if c.Ingest.WindowChars <= 0 || c.Ingest.StrideChars <= 0 {
		return fmt.Errorf("%w: window_chars and stride_chars must be positive", domain.ErrInvalidInput)
	}
	if c.Ingest.StrideChars > c.Ingest.WindowChars {
		return fmt.Errorf("%w: stride_chars must not exceed window_chars", domain.ErrInvalidInput)
	}
	if c.Watcher.Workers <= 0 || c.Watcher.QueueCapacity <= 0 {
		return fmt.Errorf("%w: watcher workers and queue_capacity must be positive", domain.ErrInvalidInput)
	}
	for _, sink := range c.Events.Sinks {
		switch sink {
		case "stdout", "webhook", "redis":
		default:
			return fmt.Errorf("%w: unknown event sink %q", domain.ErrInvalidInput, sink)
		}
	}
	return nil
}

// StabilityWindow returns the watcher debounce as a duration.
func (w Watcher) StabilityWindow() time.Duration {
	return time.Duration(w.StabilityWindowMS) * time.Millisecond
}

// PollInterval returns the scan period as a duration.
func (w Watcher) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMS) * time.Millisecond
}

// BackoffBase returns the first retry delay as a duration.
func (w Watcher) BackoffBase() time.Duration {
	return time.Duration(w.BackoffBaseMS) * time.Millisecond
}

// MaxFileBytes returns the admission size limit in bytes.
func (w Watcher) MaxFileBytes() int64 {
	return w.MaxFileMB << 20
}

// Timeout returns the webhook delivery timeout as a duration.
func (wh Webhook) Timeout() time.Duration {
	return time.Duration(wh.TimeoutMS) * time.Millisecond
}
