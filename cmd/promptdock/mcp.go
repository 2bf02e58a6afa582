package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptdock/internal/input"
)

const version = "0.1.0"

func newMCPCmd(g *globals) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the library tools over MCP on stdio",
		Long: `Serves the prompt library as MCP tools on stdin/stdout. With --url (or
url in the config) a browser tab is attached as for "run" and the
composer tools are served too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if url != "" {
				cfg.URL = url
			}

			if cfg.URL != "" {
				if cfg.URL, err = input.PageURL(cfg.URL); err != nil {
					return err
				}
			}

			srv := mcp.NewServer(&mcp.Implementation{Name: "promptdock", Version: version}, nil)
			if cfg.URL == "" {
				lib, err := g.library(cfg)
				if err != nil {
					return err
				}
				defer lib.Close()
				lib.RegisterMCP(srv)
			} else {
				s, err := attach(ctx, g, cfg, nil)
				if err != nil {
					return err
				}
				defer s.close()
				if err := s.follow(ctx, g, cfg); err != nil {
					return err
				}
				s.lib.RegisterMCP(srv)
				s.dock.RegisterMCP(srv)
			}

			g.logger.Info("promptdock: mcp serving on stdio", "page", cfg.URL)
			return srv.Run(ctx, &mcp.StdioTransport{})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "chat page to attach")
	return cmd
}
