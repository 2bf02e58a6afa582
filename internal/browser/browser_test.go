package browser

import (
	"path/filepath"
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestBlockSet(t *testing.T) {
	set := newBlockSet([]string{"Images", " fonts", "xhr"})
	cases := map[proto.NetworkResourceType]bool{
		proto.NetworkResourceTypeImage:      true,
		proto.NetworkResourceTypeFont:       true,
		proto.NetworkResourceTypeStylesheet: false,
		proto.NetworkResourceTypeMedia:      false,
		proto.NetworkResourceTypeXHR:        true,
		proto.NetworkResourceTypeDocument:   false,
	}
	for typ, want := range cases {
		if got := set.blocks(typ); got != want {
			t.Errorf("blocks(%q): got %v, want %v", typ, got, want)
		}
	}
}

func TestDisplaySocket(t *testing.T) {
	for display, want := range map[string]string{":99": "X99", ":1.0": "X1"} {
		if got := filepath.Base(displaySocket(display)); got != want {
			t.Errorf("displaySocket(%q): got %q, want %q", display, got, want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{RemoteURL: "ws://127.0.0.1:9222/devtools/browser/x"}
	c.defaults()
	if c.Mode != ModeRemote {
		t.Errorf("mode: got %q, want remote", c.Mode)
	}
	if c.Stealth == nil || !*c.Stealth {
		t.Error("stealth should default on")
	}
	if c.ConnectAttempts != 5 {
		t.Errorf("connect attempts: got %d", c.ConnectAttempts)
	}

	var d Config
	d.defaults()
	if d.Mode != ModeHeadless {
		t.Errorf("mode: got %q, want headless", d.Mode)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Mode: ModeRemote}).Validate(); err == nil {
		t.Error("remote without url: expected error")
	}
	if err := (Config{Mode: "kiosk"}).Validate(); err == nil {
		t.Error("unknown mode: expected error")
	}
	if err := (Config{Mode: ModeHeadful}).Validate(); err != nil {
		t.Errorf("headful: %v", err)
	}
}
