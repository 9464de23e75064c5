package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeWindow is a daily time-of-day window with inclusive bounds.
// Start > End means the window wraps midnight (e.g. 22:00-02:00).
type TimeWindow struct {
	Start DayTime
	End   DayTime
}

// DayTime is a minute-resolution time of day.
type DayTime struct {
	Hour   int
	Minute int
}

func (d DayTime) minutes() int   { return d.Hour*60 + d.Minute }
func (d DayTime) String() string { return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute) }

// Contains reports whether t's time of day falls inside the window,
// inclusive on both ends.
func (w TimeWindow) Contains(t time.Time) bool {
	now := DayTime{Hour: t.Hour(), Minute: t.Minute()}.minutes()
	start := w.Start.minutes()
	end := w.End.minutes()
	if start <= end {
		return start <= now && now <= end
	}
	// wraps midnight
	return now >= start || now <= end
}

func (w TimeWindow) String() string { return w.Start.String() + "-" + w.End.String() }

// ParseTimeWindow parses "HH:MM-HH:MM".
func ParseTimeWindow(s string) (TimeWindow, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, "-")
	if len(parts) != 2 {
		return TimeWindow{}, fmt.Errorf("invalid time window %q, expected HH:MM-HH:MM", s)
	}
	sh, sm, err := parseHHMM(parts[0])
	if err != nil {
		return TimeWindow{}, err
	}
	eh, em, err := parseHHMM(parts[1])
	if err != nil {
		return TimeWindow{}, err
	}
	return TimeWindow{
		Start: DayTime{Hour: sh, Minute: sm},
		End:   DayTime{Hour: eh, Minute: em},
	}, nil
}

func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// DateRange is an absolute validity range; a zero time on either side means
// unbounded in that direction.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether now falls inside the range, inclusive.
func (r DateRange) Contains(now time.Time) bool {
	if !r.Start.IsZero() && now.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && now.After(r.End) {
		return false
	}
	return true
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// ParseDate parses a bound as either a date or a date-time, in local time.
// A bare date means midnight at the start of that day.
func ParseDate(s string) (time.Time, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.ParseInLocation(dateTimeLayout, raw, time.Local); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected %s or %s", s, dateLayout, dateTimeLayout)
	}
	return t, nil
}
