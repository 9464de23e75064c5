package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MediaKind is the declared content type of a schedule's media payload.
//
// The declared kind is advisory: Telegram may still reject a send when the
// payload does not match (wrong file_id type, bad URL), so dispatch treats it
// as a first attempt, not a guarantee.
type MediaKind string

const (
	MediaNone      MediaKind = ""
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaDocument  MediaKind = "document"
	MediaAnimation MediaKind = "animation"
)

// ParseMediaKind normalizes a stored media kind string.
// Unknown values are rejected rather than silently coerced.
func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case MediaNone:
		return MediaNone, nil
	case MediaPhoto:
		return MediaPhoto, nil
	case MediaVideo:
		return MediaVideo, nil
	case MediaDocument, "file":
		return MediaDocument, nil
	case MediaAnimation:
		return MediaAnimation, nil
	default:
		return MediaNone, fmt.Errorf("unknown media kind %q", s)
	}
}

// Button is a single (label, URL) pair rendered as a one-row inline keyboard.
type Button struct {
	Text string
	URL  string
}

// Schedule is one recurring (or one-shot) broadcast: its content plus the
// activation rules deciding when it fires.
//
// TimePeriod, StartDate and EndDate are kept in their stored string forms
// ("HH:MM-HH:MM", "2006-01-02" or "2006-01-02 15:04"); use Window() and
// Bounds() for the parsed views. Empty strings mean "no restriction".
type Schedule struct {
	ID     int64
	ChatID int64

	Text       string
	MediaURL   string
	MediaKind  MediaKind
	ButtonText string
	ButtonURL  string

	RepeatSeconds int64
	TimePeriod    string
	StartDate     string
	EndDate       string

	Status     bool
	RemoveLast bool
	Pin        bool

	LastMessageID *int
	LastSentAt    *time.Time
}

// Button returns the inline button, or nil when either half is missing.
func (s *Schedule) Button() *Button {
	text := strings.TrimSpace(s.ButtonText)
	url := strings.TrimSpace(s.ButtonURL)
	if text == "" || url == "" {
		return nil
	}
	return &Button{Text: text, URL: url}
}

// HasMedia reports whether the schedule carries a media payload.
func (s *Schedule) HasMedia() bool { return strings.TrimSpace(s.MediaURL) != "" }

// Window returns the parsed daily time window.
// ok is false when no window is configured or the stored text is malformed;
// a malformed window deliberately behaves like "all day" at evaluation time,
// while Validate() reports it as a data error.
func (s *Schedule) Window() (w TimeWindow, ok bool) {
	if strings.TrimSpace(s.TimePeriod) == "" {
		return TimeWindow{}, false
	}
	w, err := ParseTimeWindow(s.TimePeriod)
	if err != nil {
		return TimeWindow{}, false
	}
	return w, true
}

// Bounds returns the parsed absolute validity range.
// Malformed bound strings are treated as unbounded (see Window).
func (s *Schedule) Bounds() DateRange {
	var r DateRange
	if t, err := ParseDate(s.StartDate); err == nil {
		r.Start = t
	}
	if t, err := ParseDate(s.EndDate); err == nil {
		r.End = t
	}
	return r
}

// Validate reports data-entry errors: content and activation rule syntax.
// The scheduler never stores or fires a schedule that fails validation, but
// tolerates pre-existing bad rows by degrading per Window/Bounds semantics.
func (s *Schedule) Validate() error {
	if strings.TrimSpace(s.Text) == "" && !s.HasMedia() {
		return errors.New("schedule needs text or media")
	}
	if _, err := ParseMediaKind(string(s.MediaKind)); err != nil {
		return err
	}
	if s.RepeatSeconds < 0 {
		return fmt.Errorf("repeat_seconds must be >= 0, got %d", s.RepeatSeconds)
	}
	if strings.TrimSpace(s.TimePeriod) != "" {
		if _, err := ParseTimeWindow(s.TimePeriod); err != nil {
			return err
		}
	}
	for _, d := range []string{s.StartDate, s.EndDate} {
		if strings.TrimSpace(d) == "" {
			continue
		}
		if _, err := ParseDate(d); err != nil {
			return err
		}
	}
	bt := strings.TrimSpace(s.ButtonText) != ""
	bu := strings.TrimSpace(s.ButtonURL) != ""
	if bt != bu {
		return errors.New("button needs both a label and a url")
	}
	return nil
}
