package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/promptdock/internal/input"
	"github.com/hazyhaar/promptdock/picker"
)

func newInsertCmd(g *globals) *cobra.Command {
	var addr, promptID, text, mode string
	var composer int64
	var values map[string]string
	var pick bool

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a prompt or text through a running promptdock",
		Long: `Sends an insertion to the local API of "promptdock run --http". With
--pick the terminal picker chooses the prompt and asks for its
placeholders first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.HTTP.Addr
			}
			if addr == "" {
				return errors.New("no API address: pass --addr or set http.addr")
			}

			ctx := cmd.Context()
			if pick {
				lib, err := g.library(cfg)
				if err != nil {
					return err
				}
				stored, err := lib.Settings(ctx)
				if err != nil {
					lib.Close()
					return err
				}
				sel, err := picker.Pick(ctx, lib, picker.Options{
					ShowRecommendations: cfg.Effective(stored).ShowRecommendations,
					Preview:             lib.Preview,
				}, picker.Terminal{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()})
				lib.Close()
				if err != nil {
					return err
				}
				promptID, values = sel.Prompt.ID, sel.Values
			}
			if (promptID == "") == (text == "") {
				return errors.New("exactly one of --prompt, --text or --pick is required")
			}

			body := map[string]any{"composer_id": composer}
			if promptID != "" {
				body["prompt_id"] = promptID
				body["values"] = values
			} else {
				body["text"] = text
				body["mode"] = mode
			}
			var out json.RawMessage
			if err := postJSON(ctx, "http://"+addr+"/insert", body, &out); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "API address of the running dock (default http.addr)")
	cmd.Flags().StringVar(&promptID, "prompt", "", "prompt id to insert")
	cmd.Flags().StringVar(&text, "text", "", "raw text to insert")
	cmd.Flags().StringVar(&mode, "mode", "", "insert mode for --text")
	cmd.Flags().Int64Var(&composer, "composer", 0, "target composer id (default: active)")
	cmd.Flags().StringToStringVar(&values, "var", nil, "placeholder value, name=value (repeatable)")
	cmd.Flags().BoolVar(&pick, "pick", false, "choose the prompt in the terminal picker")
	return cmd
}

// postJSON posts body and decodes the reply into out. Non-2xx replies carry
// {"error": "..."}.
func postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	defer resp.Body.Close()
	raw, err := input.ReadAll(resp.Body, 1<<20)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("insert: %s (%d)", e.Error, resp.StatusCode)
		}
		return fmt.Errorf("insert: status %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}
