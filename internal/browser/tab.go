package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab is a page opened by the manager.
type Tab struct {
	Page   *rod.Page
	router *rod.HijackRouter
}

// OpenTab creates a tab and navigates it to pageURL, retrying transient
// navigation failures.
func (m *Manager) OpenTab(ctx context.Context, pageURL string) (*Tab, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if *m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	tab := &Tab{Page: page}
	if len(m.cfg.ResourceBlocking) > 0 {
		tab.router = blockResources(page, m.cfg.ResourceBlocking)
	}

	err = retry.Do(func() error {
		navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavigateTimeout)
		defer cancel()
		return page.Context(navCtx).Navigate(pageURL)
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.OnRetry(func(n uint, err error) {
			m.cfg.Logger.Warn("browser: navigate retry", "url", pageURL, "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		tab.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}

	loadCtx, cancel := context.WithTimeout(ctx, m.cfg.NavigateTimeout)
	defer cancel()
	if err := page.Context(loadCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return tab, nil
}

// FindTab returns an already open page whose URL contains fragment. Used in
// remote mode to attach to the tab the user is working in.
func (m *Manager) FindTab(fragment string) (*Tab, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	pages, err := b.Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if info.Type == proto.TargetTargetInfoTypePage && strings.Contains(info.URL, fragment) {
			return &Tab{Page: p}, nil
		}
	}
	return nil, fmt.Errorf("browser: no open tab matches %q", fragment)
}

// HTML serialises the tab's document.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Close stops resource blocking and closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
