package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/Szchiji/lunbo/internal/broadcast"
	"github.com/Szchiji/lunbo/internal/config"
	"github.com/Szchiji/lunbo/internal/eventbus"
	"github.com/Szchiji/lunbo/internal/metrics"
	"github.com/Szchiji/lunbo/internal/store"
	"github.com/Szchiji/lunbo/internal/telegram"
	"github.com/Szchiji/lunbo/pkg/logx"
	"github.com/Szchiji/lunbo/pkg/systemd"
)

func main() {
	var (
		cfgPath  string
		seedPath string
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (json or yaml)")
	flag.StringVar(&seedPath, "import", "", "import schedule drafts from a yaml file, then exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath, seedPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath, seedPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	boot := logx.NewConsole(cfg.Logging.Level)

	tg, err := telegram.New(telegramConfig(cfg), boot)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Logging.Telegram.ChatID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}, tg)
	defer logSvc.Close()

	busyTimeout, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	st, err := store.Open(store.Config{Path: cfg.Storage.Path, BusyTimeout: busyTimeout}, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if seedPath != "" {
		return importDrafts(ctx, seedPath, st, log)
	}

	bcfg, err := broadcastConfig(cfg)
	if err != nil {
		return err
	}

	bus := eventbus.New()
	stopMetrics := metrics.Observe(bus)
	defer stopMetrics()
	if cfg.Metrics.Enabled {
		addr := cfg.Metrics.Addr
		if addr == "" {
			addr = config.DefaultMetricsAddr
		}
		go metrics.Serve(ctx, addr, log)
	}

	exec := broadcast.NewExecutor(st, tg, log)
	poller := broadcast.NewPoller(bcfg, st, exec, bus, log)
	poller.Start(ctx)

	// Live config: channel list, interval and rates apply without restart.
	go func() {
		err := config.Watch(ctx, cfgPath, log, func(next *config.Config) {
			nb, err := broadcastConfig(next)
			if err != nil {
				log.Warn("reloaded config rejected", logx.Err(err))
				return
			}
			poller.Apply(nb)
		})
		if err != nil {
			log.Warn("config watcher stopped", logx.Err(err))
		}
	}()

	systemd.NotifyReady(ctx, log)

	<-ctx.Done()
	systemd.NotifyStopping()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	poller.Stop(stopCtx)
	return nil
}

func telegramConfig(cfg *config.Config) telegram.Config {
	timeout, _ := config.ParseDurationField("telegram.api_timeout", cfg.Telegram.APITimeout)
	return telegram.Config{Token: cfg.Telegram.Token, APITimeout: timeout}
}

func broadcastConfig(cfg *config.Config) (broadcast.Config, error) {
	interval, err := config.ParseDurationOrDefault("broadcast.interval", cfg.Broadcast.Interval, config.DefaultInterval)
	if err != nil {
		return broadcast.Config{}, err
	}
	spec := cfg.Broadcast.MaintenanceCron
	if spec == "" {
		spec = config.DefaultMaintenanceCron
	}
	return broadcast.Config{
		Interval:        interval,
		Channels:        cfg.Channels,
		Workers:         cfg.Broadcast.Workers,
		RatePerSec:      cfg.Broadcast.RatePerSec,
		MaintenanceCron: spec,
	}, nil
}

// importDrafts seeds the store from a yaml list of schedule drafts.
func importDrafts(ctx context.Context, path string, st store.Store, log logx.Logger) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var drafts []store.Draft
	if err := yaml.Unmarshal(b, &drafts); err != nil {
		return fmt.Errorf("parse drafts: %w", err)
	}
	for i := range drafts {
		id, err := drafts[i].Save(ctx, st)
		if err != nil {
			return fmt.Errorf("draft %d: %w", i, err)
		}
		log.Info("schedule imported", logx.Int64("id", id), logx.Int64("chat", drafts[i].ChatID))
	}
	log.Info("import done", logx.Int("count", len(drafts)))
	return nil
}
