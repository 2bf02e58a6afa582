// Package config handles promptdock configuration from a YAML file, with
// hot reload of the parts that can change while a page is attached.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/promptdock/detect"
	"github.com/hazyhaar/promptdock/hotkey"
	"github.com/hazyhaar/promptdock/insert"
	"github.com/hazyhaar/promptdock/internal/browser"
	"github.com/hazyhaar/promptdock/library"
	"github.com/hazyhaar/promptdock/site"
)

// Config is the top-level promptdock configuration.
type Config struct {
	// URL is the chat page opened by "promptdock run".
	URL string `yaml:"url"`

	Browser browser.Config    `yaml:"browser"`
	Detect  detect.Config     `yaml:"detect"`
	Hotkeys HotkeysConfig     `yaml:"hotkeys"`
	Insert  InsertConfig      `yaml:"insert"`
	Library library.Config    `yaml:"library"`
	HTTP    HTTPConfig        `yaml:"http"`
	Sites   []site.Descriptor `yaml:"sites"`
}

// HotkeysConfig binds the picker chord. An empty chord defers to the
// library settings.
type HotkeysConfig struct {
	OpenPicker string `yaml:"open_picker"`
	// SuppressInComposer keeps plain chords from firing while a composer
	// has focus. The picker chord always fires.
	SuppressInComposer bool `yaml:"suppress_in_composer"`
}

// InsertConfig selects the insertion mode. Empty defers to the library
// settings.
type InsertConfig struct {
	Mode string `yaml:"mode"`
}

// HTTPConfig controls the local API. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Library.DBPath == "" {
		c.Library.DBPath = "promptdock.db"
	}
}

// Validate rejects values the components would refuse later.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("config: browser: %w", err)
	}
	if c.Hotkeys.OpenPicker != "" {
		if _, err := hotkey.ParseChord(c.Hotkeys.OpenPicker); err != nil {
			return fmt.Errorf("config: hotkeys.open_picker: %w", err)
		}
	}
	if c.Insert.Mode != "" {
		if _, err := insert.ParseMode(c.Insert.Mode); err != nil {
			return fmt.Errorf("config: insert.mode: %w", err)
		}
	}
	seen := make(map[string]bool)
	for i, d := range c.Sites {
		p, err := site.Compile(d)
		if err != nil {
			return fmt.Errorf("config: sites[%d]: %w", i, err)
		}
		if d.ID != "" && seen[p.ID] {
			return fmt.Errorf("config: sites[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Effective merges the file over the stored library settings: values set
// in the file win.
func (c *Config) Effective(stored library.Settings) library.Settings {
	out := stored
	if c.Insert.Mode != "" {
		out.InsertMode, _ = insert.ParseMode(c.Insert.Mode)
	}
	if c.Hotkeys.OpenPicker != "" {
		out.OpenPickerChord = hotkey.MustParseChord(c.Hotkeys.OpenPicker).String()
	}
	return out
}
