package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the full application configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Files may be JSON or YAML; YAML is coerced to JSON before strict decoding.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Channels  []int64         `json:"channels"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// APITimeout bounds individual Bot API calls.
	APITimeout string `json:"api_timeout,omitempty"`
}

// BroadcastConfig controls the poll loop.
//
// Defaults (when fields are omitted/zero):
//   - interval: "10s"
//   - workers: 4
//   - rate_per_sec: 10
//   - maintenance_cron: "0 4 * * *"
type BroadcastConfig struct {
	Interval        string `json:"interval,omitempty"`
	Workers         int    `json:"workers,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
	MaintenanceCron string `json:"maintenance_cron,omitempty"`
}

type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is the sqlite busy_timeout pragma.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string        `json:"level,omitempty"`
	Console  *bool         `json:"console,omitempty"` // default true
	File     LogFileConfig `json:"file,omitempty"`
	Telegram LogChatConfig `json:"telegram,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// LogChatConfig mirrors warnings to an operator chat.
type LogChatConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:9090"
}

const (
	DefaultInterval        = 10 * time.Second
	DefaultMaintenanceCron = "0 4 * * *"
	DefaultMetricsAddr     = "127.0.0.1:9090"
)

// Validate checks fields the process cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if _, err := ParseDurationField("telegram.api_timeout", c.Telegram.APITimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("broadcast.interval", c.Broadcast.Interval); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	return nil
}

// ConsoleEnabled applies the "console defaults to on" rule.
func (l LoggingConfig) ConsoleEnabled() bool {
	return l.Console == nil || *l.Console
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
