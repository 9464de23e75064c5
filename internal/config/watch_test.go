package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Szchiji/lunbo/pkg/logx"
)

func writeConfig(t *testing.T, path, token string) {
	t.Helper()
	body := "telegram:\n  token: \"" + token + "\"\nchannels: [-100]\nstorage:\n  path: \"x.db\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "first")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, logx.Logger{}, func(c *Config) { got <- c })
	}()

	// Let the watcher register before mutating the file.
	time.Sleep(200 * time.Millisecond)
	writeConfig(t, path, "second")

	select {
	case cfg := <-got:
		if cfg.Telegram.Token != "second" {
			t.Fatalf("token = %q, want %q", cfg.Telegram.Token, "second")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchIgnoresInvalidContent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "first")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go func() { _ = Watch(ctx, path, logx.Logger{}, func(c *Config) { got <- c }) }()

	time.Sleep(200 * time.Millisecond)
	// Unknown field: the callback must not fire for rejected content.
	if err := os.WriteFile(path, []byte("tellegram:\n  token: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-got:
		t.Fatalf("invalid config applied: %+v", cfg)
	case <-time.After(time.Second):
	}

	// A good write afterwards still comes through.
	writeConfig(t, path, "recovered")
	select {
	case cfg := <-got:
		if cfg.Telegram.Token != "recovered" {
			t.Fatalf("token = %q", cfg.Telegram.Token)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("recovery reload never fired")
	}
}
