package library

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/promptdock/hotkey"
	"github.com/hazyhaar/promptdock/insert"
)

// Settings are the user preferences kept alongside the prompts.
type Settings struct {
	InsertMode          insert.Mode `json:"insert_mode"`
	OpenPickerChord     string      `json:"open_picker_chord"`
	ShowRecommendations bool        `json:"show_recommendations"`
}

// DefaultSettings is what an empty library reports.
func DefaultSettings() Settings {
	return Settings{
		InsertMode:          insert.ModeCursor,
		OpenPickerChord:     "Ctrl+Shift+P",
		ShowRecommendations: true,
	}
}

const (
	keyInsertMode          = "insert_mode"
	keyOpenPickerChord     = "hotkeys.open_picker"
	keyShowRecommendations = "show_recommendations"
)

// Validate checks the mode and the chord.
func (s Settings) Validate() error {
	if _, err := insert.ParseMode(string(s.InsertMode)); err != nil {
		return err
	}
	if _, err := hotkey.ParseChord(s.OpenPickerChord); err != nil {
		return err
	}
	return nil
}

// Settings returns the stored settings, defaults filling unset keys.
func (l *Library) Settings(ctx context.Context) (Settings, error) {
	out := DefaultSettings()
	raw, err := l.store.AllSettings(ctx)
	if err != nil {
		return out, fmt.Errorf("library: settings: %w", err)
	}
	if v, ok := raw[keyInsertMode]; ok {
		var m string
		if json.Unmarshal([]byte(v), &m) == nil {
			if mode, err := insert.ParseMode(m); err == nil {
				out.InsertMode = mode
			}
		}
	}
	if v, ok := raw[keyOpenPickerChord]; ok {
		var c string
		if json.Unmarshal([]byte(v), &c) == nil {
			if chord, err := hotkey.ParseChord(c); err == nil {
				out.OpenPickerChord = chord.String()
			}
		}
	}
	if v, ok := raw[keyShowRecommendations]; ok {
		json.Unmarshal([]byte(v), &out.ShowRecommendations)
	}
	return out, nil
}

// UpdateSettings validates and stores s. Nothing is written when
// validation fails. The chord is stored in canonical form.
func (l *Library) UpdateSettings(ctx context.Context, s Settings) (Settings, error) {
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("library: update settings: %w", err)
	}
	s.OpenPickerChord = hotkey.MustParseChord(s.OpenPickerChord).String()

	values := map[string]any{
		keyInsertMode:          string(s.InsertMode),
		keyOpenPickerChord:     s.OpenPickerChord,
		keyShowRecommendations: s.ShowRecommendations,
	}
	for k, v := range values {
		data, _ := json.Marshal(v)
		if err := l.store.SetSetting(ctx, k, string(data)); err != nil {
			return Settings{}, fmt.Errorf("library: update settings: %w", err)
		}
	}
	l.logger.Info("library: settings updated",
		"insert_mode", string(s.InsertMode), "open_picker", s.OpenPickerChord)
	return s, nil
}
