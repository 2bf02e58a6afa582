package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptdock/detect"
	"github.com/hazyhaar/promptdock/dock"
	"github.com/hazyhaar/promptdock/dom"
	"github.com/hazyhaar/promptdock/dom/memdom"
	"github.com/hazyhaar/promptdock/insert"
	"github.com/hazyhaar/promptdock/internal/input"
	"github.com/hazyhaar/promptdock/library"
)

type dryRunReport struct {
	URL       string              `json:"url"`
	Composers []dock.ComposerView `json:"composers"`
	Inserted  *dock.ComposerView  `json:"inserted,omitempty"`
	Result    string              `json:"result,omitempty"`
}

func newDryRunCmd(g *globals) *cobra.Command {
	var url, promptID, text, mode string
	var values map[string]string

	cmd := &cobra.Command{
		Use:   "dry-run <page.html|->",
		Short: "Detect composers on a saved page and optionally insert into one",
		Long: `Loads a saved HTML page as if it were served from --url, runs composer
detection with the configured site profiles and prints what it found. With
--prompt or --text the insertion runs against the in-memory page and the
composer's resulting content is printed. Prompt usage is recorded as for a
live insertion.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if promptID != "" && text != "" {
				return errors.New("--prompt and --text are exclusive")
			}
			pageURL, err := input.PageURL(url)
			if err != nil {
				return err
			}
			src, err := input.ReadFile(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			doc, err := memdom.Parse(pageURL, string(src))
			if err != nil {
				return err
			}

			cfg, err := g.config()
			if err != nil {
				return err
			}
			lib, err := g.library(cfg)
			if err != nil {
				return err
			}
			defer lib.Close()

			ctx := cmd.Context()
			stored, err := lib.Settings(ctx)
			if err != nil {
				return err
			}
			d, err := dock.New(dock.Config{
				Detect:   cfg.Detect,
				Settings: cfg.Effective(stored),
				Sites:    cfg.Sites,
			}, doc, lib, g.logger)
			if err != nil {
				return err
			}
			if err := d.Start(ctx); err != nil {
				return err
			}
			defer d.Stop()

			report := dryRunReport{URL: pageURL, Composers: d.View()}
			if promptID == "" && text == "" {
				return printJSON(cmd.OutOrStdout(), report)
			}

			c := d.ActiveComposer()
			if c == nil {
				return dock.ErrNoComposer
			}
			if promptID != "" {
				err = d.InsertPrompt(ctx, c, promptID, library.StaticValues(values))
			} else {
				var m insert.Mode
				if mode != "" {
					if m, err = insert.ParseMode(mode); err != nil {
						return err
					}
				}
				err = d.InsertText(c, text, m)
			}
			if err != nil {
				return err
			}
			doc.Settle()

			for _, v := range d.View() {
				if v.ID == int64(c.ID()) {
					v := v
					report.Inserted = &v
				}
			}
			if report.Result, err = composerContent(c); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&url, "url", "https://chatgpt.com/", "URL the page is treated as served from")
	cmd.Flags().StringVar(&promptID, "prompt", "", "prompt id to insert")
	cmd.Flags().StringVar(&text, "text", "", "raw text to insert")
	cmd.Flags().StringVar(&mode, "mode", "", "insert mode for --text: cursor, replace, prefix, suffix")
	cmd.Flags().StringToStringVar(&values, "var", nil, "placeholder value, name=value (repeatable)")
	return cmd
}

// composerContent reads back what the composer holds.
func composerContent(c *detect.Composer) (string, error) {
	switch el := c.Element().(type) {
	case dom.ValueControl:
		return el.Value()
	case dom.EditableRoot:
		return el.Text()
	}
	return "", fmt.Errorf("composer %d: unsupported element", c.ID())
}
