package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const yamlConfig = `
telegram:
  token: "123:abc"
  api_timeout: "5s"
channels:
  - -1001111
  - -1002222
broadcast:
  interval: "15s"
  workers: 8
  rate_per_sec: 20
  maintenance_cron: "0 3 * * *"
storage:
  path: "/var/lib/lunbo/lunbo.db"
  busy_timeout: "3s"
logging:
  level: "debug"
  telegram:
    enabled: true
    chat_id: -1003333
    min_level: "warn"
metrics:
  enabled: true
  addr: "127.0.0.1:9191"
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Parse("config.yaml", []byte(yamlConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[0] != -1001111 {
		t.Fatalf("channels = %v", cfg.Channels)
	}
	if cfg.Broadcast.Workers != 8 || cfg.Broadcast.Interval != "15s" {
		t.Fatalf("broadcast = %+v", cfg.Broadcast)
	}
	if !cfg.Logging.Telegram.Enabled || cfg.Logging.Telegram.ChatID != -1003333 {
		t.Fatalf("logging.telegram = %+v", cfg.Logging.Telegram)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "127.0.0.1:9191" {
		t.Fatalf("metrics = %+v", cfg.Metrics)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	src := `{"telegram":{"token":"t"},"channels":[1],"storage":{"path":"x.db"}}`
	cfg, err := Parse("config.json", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "t" || cfg.Storage.Path != "x.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name, path, src string
	}{
		{"json typo", "c.json", `{"telegram":{"token":"t"},"chanels":[1],"storage":{"path":"x"}}`},
		{"yaml typo", "c.yaml", "telegram:\n  token: t\nstorage:\n  path: x\nbrodcast:\n  workers: 2\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.path, []byte(tc.src)); err == nil {
				t.Fatal("unknown field accepted")
			}
		})
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	src := `{"telegram":{"token":"t"},"storage":{"path":"x"}}{"extra":1}`
	if _, err := Parse("c.json", []byte(src)); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"missing token", func(c *Config) { c.Telegram.Token = " " }, true},
		{"missing storage path", func(c *Config) { c.Storage.Path = "" }, true},
		{"bad interval", func(c *Config) { c.Broadcast.Interval = "ten seconds" }, true},
		{"negative timeout", func(c *Config) { c.Telegram.APITimeout = "-1s" }, true},
		{"empty durations ok", func(c *Config) { c.Broadcast.Interval = "" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Telegram: TelegramConfig{Token: "t"},
				Storage:  StorageConfig{Path: "x.db"},
			}
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate: %v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Broadcast.RatePerSec != 20 {
		t.Fatalf("rate_per_sec = %d", cfg.Broadcast.RatePerSec)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 10*time.Second)
	if err != nil || d != 10*time.Second {
		t.Fatalf("empty: %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "500ms", 10*time.Second)
	if err != nil || d != 500*time.Millisecond {
		t.Fatalf("explicit: %v, %v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "nope", 10*time.Second); err == nil {
		t.Fatal("invalid accepted")
	}
}

func TestConsoleEnabled(t *testing.T) {
	t.Parallel()
	var l LoggingConfig
	if !l.ConsoleEnabled() {
		t.Fatal("console must default to on")
	}
	off := false
	l.Console = &off
	if l.ConsoleEnabled() {
		t.Fatal("explicit false ignored")
	}
}
