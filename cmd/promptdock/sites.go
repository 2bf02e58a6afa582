package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptdock/site"
)

func newSitesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Manage site profiles",
	}
	cmd.AddCommand(newSitesListCmd(g), newSitesAddCmd(g), newSitesRemoveCmd(g), newSitesMatchCmd(g))
	return cmd
}

// registry builds the registry a dock would start with: presets, stored
// sites, then configured sites.
func (g *globals) registry(cmd *cobra.Command) (*site.Registry, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	lib, err := g.library(cfg)
	if err != nil {
		return nil, err
	}
	defer lib.Close()

	reg := site.NewDefault(g.logger)
	if _, err := lib.LoadSites(cmd.Context(), reg); err != nil {
		return nil, err
	}
	for _, d := range cfg.Sites {
		if _, err := reg.RegisterCustom(d); err != nil {
			return nil, fmt.Errorf("site %s: %w", d.ID, err)
		}
	}
	return reg, nil
}

func newSitesListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles in match order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := g.registry(cmd)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTRATEGY\tPATTERN\tSELECTORS")
			for _, p := range reg.Profiles() {
				strategy := string(p.Strategy)
				if strategy == "" {
					strategy = "auto"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", p.ID, strategy, p.Pattern, p.Selectors)
			}
			return tw.Flush()
		},
	}
}

func newSitesAddCmd(g *globals) *cobra.Command {
	var d site.Descriptor
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a custom site profile",
		Long: `Stores a profile matching page URLs against --pattern (a regular
expression) and finding composers with --selector. A running dock picks
it up within a few seconds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			saved, err := lib.AddSite(cmd.Context(), d)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), saved)
		},
	}
	cmd.Flags().StringVar(&d.ID, "id", "", "profile id (default custom-<uuid>)")
	cmd.Flags().StringVar(&d.Pattern, "pattern", "", "URL regular expression")
	cmd.Flags().StringSliceVar(&d.Selectors, "selector", nil, "composer CSS selector, in priority order (repeatable)")
	cmd.Flags().StringVar(&d.Strategy, "strategy", "", "insertion strategy: form-value, composition or contenteditable (default: from the element)")
	cmd.Flags().StringToStringVar(&d.Extra, "extra", nil, "extra key=value kept with the profile")
	cmd.Flags().BoolVar(&d.Override, "override", false, "match ahead of the presets")
	return cmd
}

func newSitesRemoveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored site profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			return lib.RemoveSite(cmd.Context(), args[0])
		},
	}
}

func newSitesMatchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "match <url>",
		Short: "Show which profile a URL resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := g.registry(cmd)
			if err != nil {
				return err
			}
			p := reg.Resolve(args[0])
			if p == nil {
				return fmt.Errorf("no profile matches %s", args[0])
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"id":        p.ID,
				"strategy":  p.Strategy,
				"selectors": p.Selectors,
			})
		},
	}
}
