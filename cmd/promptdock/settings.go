package main

import (
	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptdock/insert"
)

func newSettingsCmd(g *globals) *cobra.Command {
	var mode, chord string

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored preferences",
		Long: `Without flags, prints the stored preferences. Values set in the config
file take precedence over these while a dock runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := g.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()

			ctx := cmd.Context()
			s, err := lib.Settings(ctx)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("mode") && !flags.Changed("chord") && !flags.Changed("recommendations") {
				return printJSON(cmd.OutOrStdout(), s)
			}
			if flags.Changed("mode") {
				s.InsertMode = insert.Mode(mode)
			}
			if flags.Changed("chord") {
				s.OpenPickerChord = chord
			}
			if flags.Changed("recommendations") {
				on, err := flags.GetBool("recommendations")
				if err != nil {
					return err
				}
				s.ShowRecommendations = on
			}
			if s, err = lib.UpdateSettings(ctx, s); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "insert mode: cursor, replace, prefix, suffix")
	cmd.Flags().StringVar(&chord, "chord", "", `picker chord, e.g. "Ctrl+Shift+P"`)
	cmd.Flags().Bool("recommendations", true, "show recommendations in the picker")
	return cmd
}
