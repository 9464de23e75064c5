package schedule

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 15, hour, min, 0, 0, time.Local)
}

func enabled() *Schedule {
	return &Schedule{ID: 1, ChatID: 100, Text: "hello", RepeatSeconds: 60, Status: true}
}

func TestIsDueBasics(t *testing.T) {
	t.Parallel()

	s := enabled()
	if !IsDue(s, at(12, 0)) {
		t.Fatal("enabled all-day schedule should be due")
	}

	s.Status = false
	if IsDue(s, at(12, 0)) {
		t.Fatal("disabled schedule must never be due")
	}

	if IsDue(nil, at(12, 0)) {
		t.Fatal("nil schedule must not be due")
	}
}

func TestIsDueDateBounds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		start string
		end   string
		now   time.Time
		want  bool
	}{
		{name: "inside range", start: "2025-01-01", end: "2025-12-31", now: at(12, 0), want: true},
		{name: "before start", start: "2025-07-01", now: at(12, 0), want: false},
		{name: "after end", start: "2025-01-01", end: "2025-01-31", now: time.Date(2025, 2, 1, 12, 0, 0, 0, time.Local), want: false},
		{name: "unbounded", now: at(12, 0), want: true},
		{name: "datetime end respected", end: "2025-06-15 11:30", now: at(12, 0), want: false},
		{name: "datetime end not yet reached", end: "2025-06-15 12:30", now: at(12, 0), want: true},
		{name: "malformed bound ignored", start: "soon", now: at(12, 0), want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s := enabled()
			s.StartDate = tt.start
			s.EndDate = tt.end
			if got := IsDue(s, tt.now); got != tt.want {
				t.Fatalf("IsDue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDueTimeWindow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		period string
		now    time.Time
		want   bool
	}{
		{name: "inside window", period: "09:00-18:00", now: at(10, 0), want: true},
		{name: "before window", period: "09:00-18:00", now: at(8, 59), want: false},
		{name: "after window", period: "09:00-18:00", now: at(18, 1), want: false},
		{name: "start inclusive", period: "09:00-18:00", now: at(9, 0), want: true},
		{name: "end inclusive", period: "09:00-18:00", now: at(18, 0), want: true},
		{name: "wrap late evening", period: "22:00-02:00", now: at(23, 30), want: true},
		{name: "wrap after midnight", period: "22:00-02:00", now: at(1, 0), want: true},
		{name: "wrap outside", period: "22:00-02:00", now: at(10, 0), want: false},
		{name: "malformed window treated as all day", period: "whenever", now: at(3, 0), want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s := enabled()
			s.TimePeriod = tt.period
			if got := IsDue(s, tt.now); got != tt.want {
				t.Fatalf("IsDue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDueCombinedRules(t *testing.T) {
	t.Parallel()
	s := enabled()
	s.TimePeriod = "09:00-18:00"
	s.StartDate = "2025-01-01"
	s.EndDate = "2025-01-31"

	// Inside the daily window but outside the date range: not due.
	if IsDue(s, time.Date(2025, 2, 1, 10, 0, 0, 0, time.Local)) {
		t.Fatal("date bounds must veto the time window")
	}
	if !IsDue(s, time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local)) {
		t.Fatal("schedule inside all bounds should be due")
	}
}
