package broadcast

import (
	"context"
	"time"

	"github.com/Szchiji/lunbo/internal/schedule"
)

// Messenger is the outbound transport capability the engine consumes.
// Implemented by the Telegram client; faked in tests.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, btn *schedule.Button) (messageID int, err error)
	SendMedia(ctx context.Context, chatID int64, kind schedule.MediaKind, ref, caption string, btn *schedule.Button) (messageID int, err error)
	Delete(ctx context.Context, chatID int64, messageID int) error
	Pin(ctx context.Context, chatID int64, messageID int) error
}

// Config controls the poll loop.
type Config struct {
	// Interval is the poll granularity. Sub-second precision is not a goal.
	Interval time.Duration
	// Channels are the target chat ids to enumerate each tick.
	Channels []int64
	// Workers bounds concurrent dispatches within one tick.
	Workers int
	// RatePerSec bounds outbound sends across all channels.
	RatePerSec int
	// MaintenanceCron is a cron spec for store housekeeping ("" disables).
	MaintenanceCron string
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 10
	}
	return c
}

// Status classifies the outcome of one dispatch.
type Status int

const (
	StatusSent Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FireResult is the outcome of Executor.Fire.
type FireResult struct {
	Status    Status
	MessageID int
	SentAt    time.Time
	Reason    string // set for StatusSkipped
	Err       error  // set for StatusFailed
}

func sent(messageID int, at time.Time) FireResult {
	return FireResult{Status: StatusSent, MessageID: messageID, SentAt: at}
}

func skipped(reason string) FireResult {
	return FireResult{Status: StatusSkipped, Reason: reason}
}

func sendFailed(err error) FireResult {
	return FireResult{Status: StatusFailed, Err: err}
}

// Bus event types and payloads emitted by the poller.
const (
	EventDispatch = "broadcast.dispatch"
	EventTick     = "broadcast.tick"
)

// DispatchEvent describes one dispatch attempt.
type DispatchEvent struct {
	TraceID    string
	ScheduleID int64
	ChatID     int64
	Outcome    string
	MessageID  int
	Reason     string
	Error      string
	Took       time.Duration
}

// TickEvent summarizes one poll cycle.
type TickEvent struct {
	Channels  int
	Schedules int
	Fired     int
	Failed    int
	Took      time.Duration
}
