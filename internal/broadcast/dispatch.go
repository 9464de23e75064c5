package broadcast

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Szchiji/lunbo/internal/schedule"
	"github.com/Szchiji/lunbo/internal/store"
	"github.com/Szchiji/lunbo/pkg/logx"
)

// Executor performs the side-effecting dispatch sequence for one schedule.
// It is the only part of the engine that talks to the outside world.
type Executor struct {
	store store.Store
	msg   Messenger
	log   logx.Logger
}

func NewExecutor(st store.Store, msg Messenger, log logx.Logger) *Executor {
	return &Executor{store: st, msg: msg, log: log}
}

// Fire runs the dispatch sequence: re-check, delete-previous (best effort),
// send with content-type fallback, pin (best effort), then patch
// last_message_id/last_sent_at. A send failure leaves the stored state
// untouched so the schedule is retried on the next tick.
func (e *Executor) Fire(ctx context.Context, sch *schedule.Schedule) FireResult {
	// Re-read so a delete or disable racing this poll cycle is honored.
	cur, err := e.store.Get(ctx, sch.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return skipped("schedule deleted")
	case err != nil:
		// Store hiccup: dispatch the listed copy rather than dropping the tick.
		e.log.Warn("schedule re-read failed", logx.Int64("schedule", sch.ID), logx.Err(err))
	default:
		sch = cur
	}
	if !sch.Status {
		return skipped("schedule disabled")
	}

	log := e.log.With(logx.Int64("schedule", sch.ID), logx.Int64("chat", sch.ChatID))

	if sch.RemoveLast && sch.LastMessageID != nil {
		if err := e.msg.Delete(ctx, sch.ChatID, *sch.LastMessageID); err != nil {
			// Already gone or no permission; never blocks the send.
			log.Debug("previous message delete failed", logx.Int("message", *sch.LastMessageID), logx.Err(err))
		}
	}

	now := time.Now()
	msgID, err := e.send(ctx, sch, log)
	if err != nil {
		return sendFailed(err)
	}

	if sch.Pin {
		if err := e.msg.Pin(ctx, sch.ChatID, msgID); err != nil {
			log.Warn("pin failed", logx.Int("message", msgID), logx.Err(err))
		}
	}

	if err := e.store.PatchLast(ctx, sch.ID, msgID, now); err != nil {
		// The in-memory tracker still dedups this period; the persisted
		// timestamp catches up on the next successful patch.
		log.Error("state patch failed", logx.Int("message", msgID), logx.Err(err))
	}
	return sent(msgID, now)
}

// send builds the outbound payload and walks the fallback chain.
func (e *Executor) send(ctx context.Context, sch *schedule.Schedule, log logx.Logger) (int, error) {
	btn := sch.Button()
	text := sch.Text

	if !sch.HasMedia() {
		if strings.TrimSpace(text) == "" {
			return 0, errors.New("schedule has neither text nor media")
		}
		return e.msg.SendText(ctx, sch.ChatID, text, btn)
	}

	ref := strings.TrimSpace(sch.MediaURL)
	var lastErr error
	for _, kind := range attemptOrder(sch) {
		id, err := e.msg.SendMedia(ctx, sch.ChatID, kind, ref, text, btn)
		if err == nil {
			return id, nil
		}
		lastErr = err
		log.Debug("media send attempt failed", logx.String("kind", string(kind)), logx.Err(err))
	}

	// Every media variant failed: degrade to text with a literal reference
	// so the broadcast is never silently dropped.
	fallback := ref
	if strings.TrimSpace(text) != "" {
		fallback = text + "\n" + ref
	}
	id, err := e.msg.SendText(ctx, sch.ChatID, fallback, btn)
	if err != nil {
		return 0, errors.Join(lastErr, err)
	}
	return id, nil
}

// attemptOrder yields the media kinds to try: the declared kind first (or a
// sniffed guess when none is declared), then the fixed document, video,
// photo chain.
func attemptOrder(sch *schedule.Schedule) []schedule.MediaKind {
	first := sch.MediaKind
	if first == schedule.MediaNone {
		first = schedule.GuessKind(sch.MediaURL)
	}
	chain := []schedule.MediaKind{schedule.MediaDocument, schedule.MediaVideo, schedule.MediaPhoto}
	if first == schedule.MediaNone {
		return chain
	}
	order := make([]schedule.MediaKind, 0, len(chain)+1)
	order = append(order, first)
	for _, k := range chain {
		if k != first {
			order = append(order, k)
		}
	}
	return order
}
