package store

import (
	"context"
	"errors"
	"time"

	"github.com/Szchiji/lunbo/internal/schedule"
)

// ErrNotFound is returned by Get/Patch/Delete for an unknown schedule id.
var ErrNotFound = errors.New("schedule not found")

// Store is durable CRUD for schedules.
//
// PatchLast is intentionally a narrow field patch rather than a full-record
// write: the dispatcher only ever owns last_message_id/last_sent_at, and a
// concurrent edit from an authoring flow must not be clobbered.
type Store interface {
	Create(ctx context.Context, s *schedule.Schedule) (int64, error)
	Get(ctx context.Context, id int64) (*schedule.Schedule, error)
	List(ctx context.Context, chatID int64) ([]*schedule.Schedule, error)
	PatchLast(ctx context.Context, id int64, messageID int, sentAt time.Time) error
	Delete(ctx context.Context, id int64) error

	// Maintain runs periodic housekeeping (checkpointing, sweeping).
	Maintain(ctx context.Context) error
	Close() error
}

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}
