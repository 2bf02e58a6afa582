// Command promptdock attaches to a chat page, finds its composer and
// inserts prompts from a local library on a hot key.
//
// Usage:
//
//	promptdock run --url https://claude.ai/new      # attach a browser tab
//	promptdock dry-run page.html --url https://...  # detect on a saved page
//	promptdock prompts add --name review --file review.md
//	promptdock mcp                                  # MCP over stdio
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptdock/internal/config"
	"github.com/hazyhaar/promptdock/library"
)

// globals carries the persistent flags and what they resolve to.
type globals struct {
	configPath string
	dbPath     string
	logLevel   string

	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "promptdock",
		Short:         "Insert saved prompts into chat composers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			g.logger = newLogger(cmd.ErrOrStderr(), g.logLevel)
			slog.SetDefault(g.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to promptdock.yaml")
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "prompt library database (overrides library.db_path)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		newRunCmd(g),
		newDryRunCmd(g),
		newInsertCmd(g),
		newPromptsCmd(g),
		newSitesCmd(g),
		newSettingsCmd(g),
		newMCPCmd(g),
	)
	return root
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// config loads the file given with --config, or the defaults.
func (g *globals) config() (*config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(g.configPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if g.dbPath != "" {
		cfg.Library.DBPath = g.dbPath
	}
	cfg.Browser.Logger = g.logger
	return cfg, nil
}

// library opens the prompt library named by cfg.
func (g *globals) library(cfg *config.Config) (*library.Library, error) {
	lc := cfg.Library
	lib, err := library.New(&lc, g.logger)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	return lib, nil
}

// openLibrary is config then library, for commands that need nothing else.
func (g *globals) openLibrary() (*library.Library, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	return g.library(cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
