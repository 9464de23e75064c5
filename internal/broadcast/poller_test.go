package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Szchiji/lunbo/internal/eventbus"
	"github.com/Szchiji/lunbo/internal/schedule"
	"github.com/Szchiji/lunbo/pkg/logx"
)

func newTestPoller(cfg Config, fs *fakeStore, fm *fakeMessenger, bus eventbus.Bus) *Poller {
	exec := NewExecutor(fs, fm, logx.Logger{})
	return NewPoller(cfg, fs, exec, bus, logx.Logger{})
}

func TestTickFiresDueSchedules(t *testing.T) {
	t.Parallel()
	fs := newFakeStore(
		&schedule.Schedule{ID: 1, ChatID: 100, Text: "a", RepeatSeconds: 3600, Status: true},
		&schedule.Schedule{ID: 2, ChatID: 200, Text: "b", RepeatSeconds: 3600, Status: true},
		&schedule.Schedule{ID: 3, ChatID: 200, Text: "c", RepeatSeconds: 3600, Status: false},
	)
	fm := &fakeMessenger{}
	p := newTestPoller(Config{Channels: []int64{100, 200}}, fs, fm, eventbus.New())

	now := time.Now()
	p.tick(context.Background(), now)

	if got := len(fm.sequence()); got != 2 {
		t.Fatalf("sends after first tick = %d, want 2 (disabled excluded): %v", got, fm.sequence())
	}

	// The next tick inside the repeat period must not re-fire anything.
	p.tick(context.Background(), now.Add(10*time.Second))
	if got := len(fm.sequence()); got != 2 {
		t.Fatalf("sends after second tick = %d, want still 2: %v", got, fm.sequence())
	}

	// After the repeat period both fire again.
	p.tick(context.Background(), now.Add(3601*time.Second))
	if got := len(fm.sequence()); got != 4 {
		t.Fatalf("sends after elapsed period = %d, want 4: %v", got, fm.sequence())
	}
}

func TestTickChannelFailureIsolation(t *testing.T) {
	t.Parallel()
	fs := newFakeStore(
		&schedule.Schedule{ID: 1, ChatID: 100, Text: "a", RepeatSeconds: 3600, Status: true},
		&schedule.Schedule{ID: 2, ChatID: 200, Text: "b", RepeatSeconds: 3600, Status: true},
	)
	fs.listErr = map[int64]error{100: errors.New("database is locked")}
	fm := &fakeMessenger{}
	p := newTestPoller(Config{Channels: []int64{100, 200}}, fs, fm, eventbus.New())

	p.tick(context.Background(), time.Now())

	seq := fm.sequence()
	if len(seq) != 1 {
		t.Fatalf("sends = %v, want exactly the healthy channel's schedule", seq)
	}
}

func TestTickRetainOnlyAfterCleanListing(t *testing.T) {
	t.Parallel()
	fs := newFakeStore(
		&schedule.Schedule{ID: 1, ChatID: 100, Text: "a", RepeatSeconds: 3600, Status: true},
	)
	fm := &fakeMessenger{}
	p := newTestPoller(Config{Channels: []int64{100, 200}}, fs, fm, eventbus.New())

	// Bookkeeping for a schedule that the failing channel would have listed.
	phantom := &schedule.Schedule{ID: 99, ChatID: 200, Text: "p", RepeatSeconds: 3600, Status: true}
	p.tracker.MarkSent(phantom.ID, time.Now())

	fs.listErr = map[int64]error{200: errors.New("disk I/O error")}
	p.tick(context.Background(), time.Now())
	if p.tracker.ShouldFire(phantom, time.Now()) {
		t.Fatal("dedup state pruned despite a failed channel listing")
	}

	fs.listErr = nil
	p.tick(context.Background(), time.Now())
	if !p.tracker.ShouldFire(phantom, time.Now()) {
		t.Fatal("dedup state for an unlisted schedule should be pruned after a clean tick")
	}
}

func TestTickPublishesEvents(t *testing.T) {
	t.Parallel()
	fs := newFakeStore(
		&schedule.Schedule{ID: 1, ChatID: 100, Text: "a", RepeatSeconds: 3600, Status: true},
	)
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16)
	defer unsub()

	p := newTestPoller(Config{Channels: []int64{100}}, fs, &fakeMessenger{}, bus)
	p.tick(context.Background(), time.Now())

	var gotDispatch, gotTick bool
	timeout := time.After(time.Second)
	for !gotDispatch || !gotTick {
		select {
		case ev := <-ch:
			switch ev.Type {
			case EventDispatch:
				de, ok := ev.Data.(DispatchEvent)
				if !ok || de.TraceID == "" || de.Outcome != "sent" {
					t.Fatalf("dispatch event = %+v", ev.Data)
				}
				gotDispatch = true
			case EventTick:
				te, ok := ev.Data.(TickEvent)
				if !ok || te.Channels != 1 || te.Fired != 1 {
					t.Fatalf("tick event = %+v", ev.Data)
				}
				gotTick = true
			}
		case <-timeout:
			t.Fatalf("missing events: dispatch=%v tick=%v", gotDispatch, gotTick)
		}
	}
}

func TestPollerStartStop(t *testing.T) {
	t.Parallel()
	fs := newFakeStore(
		&schedule.Schedule{ID: 1, ChatID: 100, Text: "a", RepeatSeconds: 3600, Status: true},
	)
	fm := &fakeMessenger{}
	p := newTestPoller(Config{Interval: 50 * time.Millisecond, Channels: []int64{100}}, fs, fm, eventbus.New())

	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx) // idempotent

	deadline := time.After(time.Second)
	for len(fm.sequence()) == 0 {
		select {
		case <-deadline:
			t.Fatal("no dispatch before deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	p.Stop(stopCtx)
	p.Stop(stopCtx) // idempotent

	// No ticks after stop.
	n := len(fm.sequence())
	time.Sleep(120 * time.Millisecond)
	if got := len(fm.sequence()); got != n {
		t.Fatalf("sends after Stop grew from %d to %d", n, got)
	}
}

func TestApplySwapsChannels(t *testing.T) {
	t.Parallel()
	fs := newFakeStore(
		&schedule.Schedule{ID: 1, ChatID: 100, Text: "a", RepeatSeconds: 3600, Status: true},
		&schedule.Schedule{ID: 2, ChatID: 300, Text: "b", RepeatSeconds: 3600, Status: true},
	)
	fm := &fakeMessenger{}
	p := newTestPoller(Config{Channels: []int64{100}}, fs, fm, eventbus.New())

	now := time.Now()
	p.tick(context.Background(), now)
	if got := len(fm.sequence()); got != 1 {
		t.Fatalf("sends = %d, want 1", got)
	}

	p.Apply(Config{Channels: []int64{100, 300}})
	p.tick(context.Background(), now.Add(time.Second))
	if got := len(fm.sequence()); got != 2 {
		t.Fatalf("sends after Apply = %d, want the new channel dispatched: %v", got, fm.sequence())
	}
}
