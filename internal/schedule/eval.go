package schedule

import "time"

// IsDue reports whether the schedule is eligible to fire at the given
// instant. It is a pure predicate: no I/O, no hidden state, safe to call at
// any rate. Repeat-interval bookkeeping is deliberately not part of
// eligibility; that lives in the broadcast tracker.
func IsDue(s *Schedule, now time.Time) bool {
	if s == nil || !s.Status {
		return false
	}
	if !s.Bounds().Contains(now) {
		return false
	}
	if w, ok := s.Window(); ok && !w.Contains(now) {
		return false
	}
	return true
}
