package store

import (
	"context"

	"github.com/Szchiji/lunbo/internal/schedule"
)

// Draft accumulates schedule fields before a single explicit commit.
//
// It models the boundary to an authoring flow: fields are collected step by
// step (or loaded from a seed file) and nothing touches the store until
// Save. A fresh draft defaults to enabled, hourly, no history.
type Draft struct {
	ChatID        int64  `json:"chat_id" yaml:"chat_id"`
	Text          string `json:"text" yaml:"text"`
	MediaURL      string `json:"media_url,omitempty" yaml:"media_url"`
	MediaKind     string `json:"media_kind,omitempty" yaml:"media_kind"`
	ButtonText    string `json:"button_text,omitempty" yaml:"button_text"`
	ButtonURL     string `json:"button_url,omitempty" yaml:"button_url"`
	RepeatSeconds *int64 `json:"repeat_seconds,omitempty" yaml:"repeat_seconds"`
	TimePeriod    string `json:"time_period,omitempty" yaml:"time_period"`
	StartDate     string `json:"start_date,omitempty" yaml:"start_date"`
	EndDate       string `json:"end_date,omitempty" yaml:"end_date"`
	RemoveLast    bool   `json:"remove_last,omitempty" yaml:"remove_last"`
	Pin           bool   `json:"pin,omitempty" yaml:"pin"`
}

const defaultRepeatSeconds = 3600

// Schedule materializes the draft into a new, enabled schedule value.
func (d *Draft) Schedule() (*schedule.Schedule, error) {
	kind, err := schedule.ParseMediaKind(d.MediaKind)
	if err != nil {
		return nil, err
	}
	repeat := int64(defaultRepeatSeconds)
	if d.RepeatSeconds != nil {
		repeat = *d.RepeatSeconds
	}
	s := &schedule.Schedule{
		ChatID:        d.ChatID,
		Text:          d.Text,
		MediaURL:      d.MediaURL,
		MediaKind:     kind,
		ButtonText:    d.ButtonText,
		ButtonURL:     d.ButtonURL,
		RepeatSeconds: repeat,
		TimePeriod:    d.TimePeriod,
		StartDate:     d.StartDate,
		EndDate:       d.EndDate,
		Status:        true,
		RemoveLast:    d.RemoveLast,
		Pin:           d.Pin,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save validates and creates the schedule, returning its new id.
func (d *Draft) Save(ctx context.Context, st Store) (int64, error) {
	s, err := d.Schedule()
	if err != nil {
		return 0, err
	}
	return st.Create(ctx, s)
}
