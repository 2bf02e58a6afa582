package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptdock/detect"
	"github.com/hazyhaar/promptdock/dock"
	"github.com/hazyhaar/promptdock/dom/roddom"
	"github.com/hazyhaar/promptdock/internal/browser"
	"github.com/hazyhaar/promptdock/internal/config"
	"github.com/hazyhaar/promptdock/internal/input"
	"github.com/hazyhaar/promptdock/library"
	"github.com/hazyhaar/promptdock/picker"
	"github.com/hazyhaar/promptdock/watch"
)

func newRunCmd(g *globals) *cobra.Command {
	var url, httpAddr string
	var noPicker bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the chat page in Chrome and dock the prompt library to it",
		Long: `Opens (or, in remote mode, finds) the chat page, detects its composer and
binds the picker chord. Press the chord in the page to choose a prompt in
this terminal; it is inserted into the composer that had focus.

With --http the local JSON API is served on the given loopback address.
Edits to the config file and to the library from other promptdock
processes are picked up without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if url != "" {
				cfg.URL = url
			}
			if httpAddr != "" {
				cfg.HTTP.Addr = httpAddr
			}
			if cfg.URL == "" {
				return errors.New("no page: pass --url or set url in the config")
			}
			if cfg.URL, err = input.PageURL(cfg.URL); err != nil {
				return err
			}
			return runDock(cmd.Context(), g, cfg, !noPicker)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "chat page to open")
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve the local API on this address (e.g. 127.0.0.1:7311)")
	cmd.Flags().BoolVar(&noPicker, "no-picker", false, "do not open the terminal picker on the chord")
	return cmd
}

// session is one attached page with everything it holds open.
type session struct {
	lib     *library.Library
	browser *browser.Manager
	tab     *browser.Tab
	ownTab  bool
	dock    *dock.Dock
}

// attach opens the library, the browser and the page, then starts a dock
// on it. onPicker may be nil.
func attach(ctx context.Context, g *globals, cfg *config.Config, onPicker func(*session, *detect.Composer)) (s *session, err error) {
	s = &session{}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	if s.lib, err = g.library(cfg); err != nil {
		return nil, err
	}
	s.browser = browser.NewManager(cfg.Browser)
	if _, err = s.browser.Start(ctx); err != nil {
		return nil, err
	}
	if s.tab, s.ownTab, err = openPage(ctx, s.browser, cfg, g.logger); err != nil {
		return nil, err
	}
	doc, err := roddom.Attach(ctx, s.tab.Page, g.logger)
	if err != nil {
		return nil, err
	}
	stored, err := s.lib.Settings(ctx)
	if err != nil {
		return nil, err
	}

	dcfg := dock.Config{
		Detect:             cfg.Detect,
		Settings:           cfg.Effective(stored),
		SuppressInComposer: cfg.Hotkeys.SuppressInComposer,
		Sites:              cfg.Sites,
	}
	if onPicker != nil {
		dcfg.OnOpenPicker = func(c *detect.Composer) { onPicker(s, c) }
	}
	if s.dock, err = dock.New(dcfg, doc, s.lib, g.logger); err != nil {
		return nil, err
	}
	if err = s.dock.Start(ctx); err != nil {
		s.dock = nil
		return nil, err
	}
	return s, nil
}

func (s *session) close() {
	if s.dock != nil {
		s.dock.Stop()
	}
	if s.tab != nil && s.ownTab {
		s.tab.Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.lib != nil {
		s.lib.Close()
	}
}

// follow keeps the dock in step with the config file and with library
// writes from other processes until ctx ends.
func (s *session) follow(ctx context.Context, g *globals, cfg *config.Config) error {
	logger := g.logger
	current := func() *config.Config { return cfg }

	if g.configPath != "" {
		mgr, err := config.NewManager(g.configPath, logger)
		if err != nil {
			return err
		}
		current = mgr.Get
		mgr.OnChange(func(old, cur *config.Config) {
			if err := s.reapply(ctx, cur); err != nil {
				logger.Warn("promptdock: config reload not applied", "error", err)
			}
		})
		go func() {
			if err := mgr.Watch(ctx); err != nil {
				logger.Warn("promptdock: config watch ended", "error", err)
			}
		}()
	}

	w := watch.New(s.lib.DB(), watch.Options{
		Interval: time.Second,
		Debounce: 200 * time.Millisecond,
		Logger:   logger,
	})
	go func() {
		err := w.Run(ctx, func(ctx context.Context) error {
			if err := s.reapply(ctx, current()); err != nil {
				return err
			}
			_, err := s.dock.SyncSites(ctx)
			return err
		})
		if err != nil {
			logger.Warn("promptdock: library watch ended", "error", err)
		}
	}()
	return nil
}

// reapply merges cfg over the stored settings and applies the result.
func (s *session) reapply(ctx context.Context, cfg *config.Config) error {
	stored, err := s.lib.Settings(ctx)
	if err != nil {
		return err
	}
	return s.dock.ApplySettings(cfg.Effective(stored))
}

func runDock(ctx context.Context, g *globals, cfg *config.Config, withPicker bool) error {
	var onPicker func(*session, *detect.Composer)
	if withPicker {
		var picking atomic.Bool
		onPicker = func(s *session, c *detect.Composer) {
			if !picking.CompareAndSwap(false, true) {
				return
			}
			go func() {
				defer picking.Store(false)
				pickAndInsert(ctx, s.dock, s.lib, c, g.logger)
			}()
		}
	}

	s, err := attach(ctx, g, cfg, onPicker)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.follow(ctx, g, cfg); err != nil {
		return err
	}

	errc := make(chan error, 1)
	if addr := cfg.HTTP.Addr; addr != "" {
		go func() { errc <- s.dock.ListenAndServe(ctx, addr) }()
	}

	g.logger.Info("promptdock: docked", "url", cfg.URL, "composers", len(s.dock.Composers()))
	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
		<-ctx.Done()
		return nil
	}
}

// openPage reuses the user's tab in remote mode and opens a new one
// otherwise. opened tells whether the tab is ours to close.
func openPage(ctx context.Context, bm *browser.Manager, cfg *config.Config, logger *slog.Logger) (tab *browser.Tab, opened bool, err error) {
	if cfg.Browser.Mode == browser.ModeRemote {
		if tab, err = bm.FindTab(cfg.URL); err == nil {
			return tab, false, nil
		}
		logger.Info("promptdock: no open tab matches, opening one", "url", cfg.URL, "error", err)
	}
	tab, err = bm.OpenTab(ctx, cfg.URL)
	return tab, err == nil, err
}

func pickAndInsert(ctx context.Context, d *dock.Dock, lib *library.Library, c *detect.Composer, logger *slog.Logger) {
	sel, err := picker.Pick(ctx, lib, picker.Options{
		ShowRecommendations: d.Settings().ShowRecommendations,
		Preview:             lib.Preview,
	}, picker.Terminal{AltScreen: true})
	if errors.Is(err, picker.ErrCancelled) || errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		logger.Error("promptdock: picker failed", "error", err)
		return
	}
	if err := d.InsertPrompt(ctx, c, sel.Prompt.ID, sel.Resolver()); err != nil {
		logger.Error("promptdock: insert failed", "prompt", sel.Prompt.ID, "error", err)
		return
	}
	logger.Info("promptdock: inserted", "prompt", sel.Prompt.ID, "name", sel.Prompt.Name)
}
