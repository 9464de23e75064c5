package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/Szchiji/lunbo/internal/eventbus"
	"github.com/Szchiji/lunbo/internal/schedule"
	"github.com/Szchiji/lunbo/internal/store"
	"github.com/Szchiji/lunbo/pkg/logx"
)

// Poller is the top-level driver: a fixed-interval loop that enumerates the
// configured channels and runs the evaluate/dedup/dispatch pipeline for
// every schedule.
type Poller struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	store   store.Store
	exec    *Executor
	tracker *Tracker
	bus     eventbus.Bus
	log     logx.Logger

	c      *cron.Cron
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewPoller(cfg Config, st store.Store, exec *Executor, bus eventbus.Bus, log logx.Logger) *Poller {
	cfg = cfg.withDefaults()
	return &Poller{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		store:   st,
		exec:    exec,
		tracker: NewTracker(),
		bus:     bus,
		log:     log,
	}
}

// Apply swaps the live configuration. Channel list, rate and interval take
// effect on the next tick.
func (p *Poller) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	p.mu.Lock()
	restartCron := p.stopCh != nil && cfg.MaintenanceCron != p.cfg.MaintenanceCron
	p.cfg = cfg
	p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	p.mu.Unlock()
	if restartCron {
		p.restartMaintenance()
	}
}

// Start launches the poll loop. It returns immediately; the loop runs until
// Stop or ctx cancellation.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.stopCh != nil {
		p.mu.Unlock()
		return
	}
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	cfg := p.cfg
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, stopCh)
	}()
	p.startMaintenance(ctx)

	p.log.Info("poller started",
		logx.Duration("interval", cfg.Interval),
		logx.Int("channels", len(cfg.Channels)),
		logx.Int("workers", cfg.Workers),
		logx.Int("rate_per_sec", cfg.RatePerSec))
}

// Stop signals cooperative shutdown: no new ticks are started and the
// current tick's in-flight dispatches are allowed to finish. The ctx bounds
// how long Stop waits for the drain.
func (p *Poller) Stop(ctx context.Context) {
	p.mu.Lock()
	stopCh := p.stopCh
	p.stopCh = nil
	c := p.c
	p.c = nil
	p.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.log.Info("poller stopped")
	case <-ctx.Done():
		p.log.Warn("poller stop timed out; drain continues in background", logx.Err(ctx.Err()))
	}
}

func (p *Poller) run(ctx context.Context, stopCh <-chan struct{}) {
	p.mu.Lock()
	interval := p.cfg.Interval
	p.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First pass immediately rather than one full interval late.
	p.tick(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case now := <-ticker.C:
			p.tick(ctx, now)
			p.mu.Lock()
			if cur := p.cfg.Interval; cur != interval {
				interval = cur
				ticker.Reset(interval)
			}
			p.mu.Unlock()
		}
	}
}

// tick runs one full poll cycle. Dispatches for distinct schedules run
// concurrently on a bounded worker set; failures stay confined to their
// (channel, schedule) pair.
func (p *Poller) tick(ctx context.Context, now time.Time) {
	start := time.Now()
	p.mu.Lock()
	cfg := p.cfg
	limiter := p.limiter
	p.mu.Unlock()

	sem := make(chan struct{}, cfg.Workers)
	var wg sync.WaitGroup

	var statMu sync.Mutex
	seen := make(map[int64]struct{})
	listedAll := true
	schedules, fired, failed := 0, 0, 0

	for _, chatID := range cfg.Channels {
		list, err := p.store.List(ctx, chatID)
		if err != nil {
			// Skip this channel for the tick; retry on the next one.
			p.log.Warn("schedule listing failed", logx.Int64("chat", chatID), logx.Err(err))
			listedAll = false
			continue
		}
		schedules += len(list)
		for _, sch := range list {
			seen[sch.ID] = struct{}{}

			if !p.tracker.ShouldFire(sch, now) {
				continue
			}
			if !p.tracker.Acquire(sch.ID) {
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(sch *schedule.Schedule) {
				defer wg.Done()
				defer func() { <-sem }()
				defer p.tracker.Release(sch.ID)

				if err := limiter.Wait(ctx); err != nil {
					return
				}
				res := p.dispatch(ctx, sch)
				statMu.Lock()
				switch res.Status {
				case StatusSent:
					fired++
				case StatusFailed:
					failed++
				}
				statMu.Unlock()
			}(sch)
		}
	}
	wg.Wait()

	// Only prune dedup state when every channel listed cleanly, so a store
	// outage can't wipe bookkeeping for schedules that still exist.
	if listedAll {
		p.tracker.Retain(seen)
	}

	p.bus.Publish(eventbus.Event{Type: EventTick, Data: TickEvent{
		Channels:  len(cfg.Channels),
		Schedules: schedules,
		Fired:     fired,
		Failed:    failed,
		Took:      time.Since(start),
	}})
}

// dispatch fires one schedule, records the result and emits an event.
func (p *Poller) dispatch(ctx context.Context, sch *schedule.Schedule) FireResult {
	trace := uuid.NewString()
	log := p.log.With(
		logx.String("trace", trace),
		logx.Int64("schedule", sch.ID),
		logx.Int64("chat", sch.ChatID))

	start := time.Now()
	res := p.exec.Fire(ctx, sch)
	took := time.Since(start)

	ev := DispatchEvent{
		TraceID:    trace,
		ScheduleID: sch.ID,
		ChatID:     sch.ChatID,
		Outcome:    res.Status.String(),
		MessageID:  res.MessageID,
		Reason:     res.Reason,
		Took:       took,
	}
	switch res.Status {
	case StatusSent:
		p.tracker.MarkSent(sch.ID, res.SentAt)
		log.Info("broadcast sent", logx.Int("message", res.MessageID), logx.Duration("took", took))
	case StatusSkipped:
		log.Debug("broadcast skipped", logx.String("reason", res.Reason))
	case StatusFailed:
		ev.Error = res.Err.Error()
		log.Warn("broadcast failed", logx.Err(res.Err), logx.Duration("took", took))
	}
	p.bus.Publish(eventbus.Event{Type: EventDispatch, Data: ev})
	return res
}

// ---- maintenance cron ----

func (p *Poller) startMaintenance(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	spec := p.cfg.MaintenanceCron
	if spec == "" {
		return
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { p.maintain(ctx) }); err != nil {
		p.log.Warn("invalid maintenance cron spec", logx.String("spec", spec), logx.Err(err))
		return
	}
	c.Start()
	p.c = c
}

func (p *Poller) restartMaintenance() {
	p.mu.Lock()
	c := p.c
	p.c = nil
	p.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	p.startMaintenance(context.Background())
}

func (p *Poller) maintain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := p.store.Maintain(ctx); err != nil {
		p.log.Warn("store maintenance failed", logx.Err(err))
		return
	}
	p.log.Debug("store maintenance done")
}
