package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// displaySocket is the X11 socket Xvfb listens on for display ":N".
func displaySocket(display string) string {
	n, _, _ := strings.Cut(strings.TrimPrefix(display, ":"), ".")
	return filepath.Join("/tmp/.X11-unix", "X"+n)
}

// startXvfb runs a virtual display for headful mode and returns once its
// socket accepts clients.
func (m *Manager) startXvfb(ctx context.Context) error {
	if m.xvfb != nil {
		return nil
	}
	display := m.cfg.XvfbDisplay
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1920x1080x24", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", display, err)
	}
	m.xvfb = cmd

	sock := displaySocket(display)
	err := retry.Do(func() error {
		_, err := os.Stat(sock)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(20),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		m.stopXvfb()
		return fmt.Errorf("wait for %s: %w", sock, err)
	}
	m.cfg.Logger.Info("browser: xvfb ready", "display", display, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) stopXvfb() {
	cmd := m.xvfb
	if cmd == nil {
		return
	}
	m.xvfb = nil
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb stopped", "display", m.cfg.XvfbDisplay)
}
