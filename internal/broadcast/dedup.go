package broadcast

import (
	"sync"
	"time"

	"github.com/Szchiji/lunbo/internal/schedule"
)

// Tracker keeps per-schedule "last sent" bookkeeping so an eligible schedule
// fires at most once per repeat period, plus an in-flight guard so the same
// schedule is never dispatched twice concurrently.
//
// State is in-memory and resets on restart; the persisted last_sent_at on
// the schedule row covers the restart case, and the effective value is the
// later of the two so last_sent_at stays monotonic even when a store patch
// failed.
//
// Policy for repeat_seconds == 0: fire once ever. A non-nil last_sent_at
// (persisted or in-memory) permanently suppresses the schedule until an
// authoring flow clears it.
type Tracker struct {
	mu      sync.Mutex
	entries map[int64]*trackEntry
}

type trackEntry struct {
	lastSent time.Time
	inflight bool
}

func NewTracker() *Tracker {
	return &Tracker{entries: map[int64]*trackEntry{}}
}

// ShouldFire combines the pure eligibility predicate with repeat-period
// bookkeeping. It does not reserve anything; call Acquire before
// dispatching.
func (t *Tracker) ShouldFire(s *schedule.Schedule, now time.Time) bool {
	if !schedule.IsDue(s, now) {
		return false
	}
	last := t.effectiveLastSent(s)
	if s.RepeatSeconds == 0 {
		return last.IsZero()
	}
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= time.Duration(s.RepeatSeconds)*time.Second
}

// effectiveLastSent merges the persisted timestamp with the in-memory mark.
func (t *Tracker) effectiveLastSent(s *schedule.Schedule) time.Time {
	var last time.Time
	if s.LastSentAt != nil {
		last = *s.LastSentAt
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.entries[s.ID]; e != nil && e.lastSent.After(last) {
		last = e.lastSent
	}
	return last
}

// Acquire reserves the schedule's single dispatch slot. It returns false if
// a dispatch for the same id is already in flight.
func (t *Tracker) Acquire(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[id]
	if e == nil {
		e = &trackEntry{}
		t.entries[id] = e
	}
	if e.inflight {
		return false
	}
	e.inflight = true
	return true
}

func (t *Tracker) Release(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.entries[id]; e != nil {
		e.inflight = false
	}
}

// MarkSent records a successful send. Earlier timestamps never rewind the
// recorded value.
func (t *Tracker) MarkSent(id int64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[id]
	if e == nil {
		e = &trackEntry{}
		t.entries[id] = e
	}
	if at.After(e.lastSent) {
		e.lastSent = at
	}
}

// Retain drops bookkeeping for schedules that no longer exist, so a deleted
// schedule leaves no orphaned dedup state beyond the current poll interval.
// In-flight entries are kept regardless.
func (t *Tracker) Retain(ids map[int64]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range t.entries {
		if _, ok := ids[id]; ok {
			continue
		}
		if e.inflight {
			continue
		}
		delete(t.entries, id)
	}
}
