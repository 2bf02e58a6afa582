package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptdock/internal/input"
	"github.com/hazyhaar/promptdock/library"
)

func newPromptsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prompts",
		Aliases: []string{"p"},
		Short:   "Manage the prompt library",
	}
	cmd.AddCommand(
		newPromptsListCmd(g),
		newPromptsShowCmd(g),
		newPromptsAddCmd(g),
		newPromptsDeleteCmd(g),
		newPromptsExportCmd(g),
		newPromptsImportCmd(g),
		newPromptsCaptureCmd(g),
		newCategoriesCmd(g),
	)
	return cmd
}

func newPromptsListCmd(g *globals) *cobra.Command {
	var query string
	var recommended, asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prompts, optionally filtered by name or title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			var ps []*library.Prompt
			if recommended {
				ps, err = lib.Recommend(cmd.Context())
			} else {
				ps, err = lib.Search(cmd.Context(), query)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), ps)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tUSED\tPREVIEW")
			for _, p := range ps {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.ID, p.Name, p.UsageCount, firstLine(lib.Preview(p.Content), 60))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive filter on name and title")
	cmd.Flags().BoolVar(&recommended, "recommended", false, "list the recommendations instead")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newPromptsShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a prompt and its placeholders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			p, err := lib.GetPrompt(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				*library.Prompt
				Variables []library.Variable `json:"variables"`
			}{p, library.Variables(p.Content)})
		},
	}
}

func newPromptsAddCmd(g *globals) *cobra.Command {
	var p library.Prompt
	var file string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a prompt",
		Long: `Saves a prompt. Content comes from --content, from --file, or from stdin
when --file is "-". An existing --id is updated in place; its usage
statistics are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				if p.Content != "" {
					return errors.New("--content and --file are exclusive")
				}
				data, err := readInput(cmd, file)
				if err != nil {
					return err
				}
				p.Content = string(data)
			}
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			saved, err := lib.SavePrompt(cmd.Context(), &p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), saved)
		},
	}
	cmd.Flags().StringVar(&p.ID, "id", "", "prompt id (default: new)")
	cmd.Flags().StringVar(&p.Name, "name", "", "prompt name")
	cmd.Flags().StringVar(&p.Title, "title", "", "prompt title")
	cmd.Flags().StringVar(&p.Content, "content", "", "prompt content")
	cmd.Flags().StringVarP(&file, "file", "f", "", `read content from a file ("-" for stdin)`)
	cmd.Flags().StringSliceVar(&p.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&p.CategoryID, "category", "", "category id")
	return cmd
}

func newPromptsDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete prompts",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			for _, id := range args {
				if err := lib.DeletePrompt(cmd.Context(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newPromptsExportCmd(g *globals) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole library as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return lib.Export(cmd.Context(), w)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newPromptsImportCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the whole library with an exported snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			return lib.Import(cmd.Context(), bytes.NewReader(data))
		},
	}
}

func newPromptsCaptureCmd(g *globals) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "capture <file.html>",
		Short: "Save composer HTML as a markdown prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			p, err := lib.CaptureHTML(cmd.Context(), name, string(data))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "prompt name")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newCategoriesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "categories", Short: "Manage prompt categories"}

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			cs, err := lib.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cs)
		},
	}

	var c library.Category
	add := &cobra.Command{
		Use:  "add",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			saved, err := lib.SaveCategory(cmd.Context(), &c)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), saved)
		},
	}
	add.Flags().StringVar(&c.ID, "id", "", "category id (default: new)")
	add.Flags().StringVar(&c.Name, "name", "", "category name")
	add.Flags().StringVar(&c.ParentID, "parent", "", "parent category id")
	add.Flags().IntVar(&c.Sort, "sort", 0, "sort key")

	del := &cobra.Command{
		Use:  "delete <id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			return lib.DeleteCategory(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, add, del)
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	return input.ReadFile(path, cmd.InOrStdin())
}

func firstLine(s string, n int) string {
	line, _, _ := strings.Cut(s, "\n")
	if r := []rune(line); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return line
}
