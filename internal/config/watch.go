package config

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Szchiji/lunbo/pkg/logx"
)

// Watch reloads the config file on change and calls onChange with each new,
// valid config. Invalid or unchanged content is ignored (the previous config
// stays live). Watching the directory rather than the file survives
// rename-replace editors and atomic writes.
//
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	file := filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	var (
		hashMu   sync.Mutex
		lastHash uint64
	)
	if b, err := os.ReadFile(path); err == nil {
		lastHash = hashBytes(b)
	}

	// Debounce so partial writes don't trigger half-baked reloads.
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		b, err := os.ReadFile(path)
		if err != nil {
			log.Warn("config re-read failed", logx.String("path", path), logx.Err(err))
			return
		}
		h := hashBytes(b)
		hashMu.Lock()
		unchanged := h == lastHash
		hashMu.Unlock()
		if unchanged {
			return
		}
		cfg, err := Parse(path, b)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			log.Warn("config rejected", logx.String("path", path), logx.Err(err))
			return
		}
		hashMu.Lock()
		lastHash = h
		hashMu.Unlock()
		log.Info("config reloaded", logx.String("path", path))
		onChange(cfg)
	}
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", logx.Err(err))
		}
	}
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
