// Package browser launches or connects to the Chrome instance that hosts the
// chat pages promptdock attaches to.
//
// The manager owns the rod.Browser: launch (local headless, local headful
// under Xvfb, or a remote DevTools endpoint), connect with retries, and
// relaunch on request. Tabs are opened with go-rod/stealth so that chat
// frontends serve the same markup they serve a regular browser.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Mode selects how Chrome runs.
type Mode string

const (
	ModeHeadless Mode = "headless"
	ModeHeadful  Mode = "headful" // visible window, under Xvfb when Display is set
	ModeRemote   Mode = "remote"  // attach to RemoteURL
)

// Config configures the browser manager.
type Config struct {
	Mode Mode `yaml:"mode"`

	// RemoteURL is the DevTools WebSocket URL used in remote mode.
	RemoteURL string `yaml:"remote_url"`

	// Bin overrides the Chrome binary. Empty lets the launcher find one.
	Bin string `yaml:"bin"`

	// UserDataDir keeps cookies between runs so chat sites stay logged in.
	UserDataDir string `yaml:"user_data_dir"`

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string `yaml:"resource_blocking"`

	// Stealth applies go-rod/stealth to new tabs. Default: true.
	Stealth *bool `yaml:"stealth"`

	// XvfbDisplay starts Xvfb on this display in headful mode. Empty uses
	// the caller's DISPLAY.
	XvfbDisplay string `yaml:"xvfb_display"`

	// ConnectAttempts bounds the connect retries. Default: 5.
	ConnectAttempts uint `yaml:"connect_attempts"`

	// NavigateTimeout bounds one page navigation. Default: 30s.
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = ModeHeadless
		if c.RemoteURL != "" {
			c.Mode = ModeRemote
		}
	}
	if c.Stealth == nil {
		on := true
		c.Stealth = &on
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = 5
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate reports configuration errors before launch.
func (c Config) Validate() error {
	switch c.Mode {
	case "", ModeHeadless, ModeHeadful:
	case ModeRemote:
		if c.RemoteURL == "" {
			return fmt.Errorf("browser: remote mode needs remote_url")
		}
	default:
		return fmt.Errorf("browser: unknown mode %q", c.Mode)
	}
	return nil
}

// Manager manages the Chrome lifecycle.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	closed  bool
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome (or connects to the remote instance).
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	b, err := m.launch(ctx)
	if err != nil {
		return nil, err
	}
	m.browser = b
	return b, nil
}

// Browser returns the current handle, nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Restart kills Chrome and launches a fresh one. Tabs and documents attached
// to the old instance are gone; callers re-open them.
func (m *Manager) Restart(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	m.cfg.Logger.Info("browser: restarting")
	m.cleanup()
	b, err := m.launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser: relaunch: %w", err)
	}
	m.browser = b
	return b, nil
}

// Close shuts down Chrome and Xvfb. A remote browser is disconnected, not
// closed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanup()
	return nil
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, error) {
	log := m.cfg.Logger

	wsURL := m.cfg.RemoteURL
	if m.cfg.Mode != ModeRemote {
		if m.cfg.Mode == ModeHeadful && m.cfg.XvfbDisplay != "" {
			if err := m.startXvfb(ctx); err != nil {
				return nil, fmt.Errorf("browser: xvfb: %w", err)
			}
		}
		l := launcher.New().Context(ctx).Headless(m.cfg.Mode == ModeHeadless)
		if m.cfg.Mode == ModeHeadful && m.cfg.XvfbDisplay != "" {
			l = l.Env("DISPLAY=" + m.cfg.XvfbDisplay)
		}
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}
		if m.cfg.UserDataDir != "" {
			l = l.UserDataDir(m.cfg.UserDataDir)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "mode", string(m.cfg.Mode))
	} else {
		log.Info("browser: connecting to remote", "url", wsURL)
	}

	var b *rod.Browser
	err := retry.Do(func() error {
		b = rod.New().ControlURL(wsURL).Context(ctx)
		return b.Connect()
	},
		retry.Context(ctx),
		retry.Attempts(m.cfg.ConnectAttempts),
		retry.Delay(250*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("browser: connect retry", "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return b, nil
}

func (m *Manager) cleanup() {
	if m.browser != nil {
		if m.cfg.Mode != ModeRemote {
			m.browser.Close()
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
}
