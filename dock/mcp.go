package dock

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/promptdock/insert"
	"github.com/hazyhaar/promptdock/kit"
	"github.com/hazyhaar/promptdock/library"
)

// RegisterMCP registers the page tools on an MCP server.
func (d *Dock) RegisterMCP(srv *mcp.Server) {
	d.registerListComposersTool(srv)
	d.registerInsertPromptTool(srv)
	d.registerInsertTextTool(srv)
}

func modeEnum() []any {
	out := make([]any, 0, len(insert.Modes))
	for _, m := range insert.Modes {
		out = append(out, string(m))
	}
	return out
}

// --- list_composers ---

func (d *Dock) registerListComposersTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "promptdock_list_composers",
		Description: "List the chat input boxes detected on the attached page. The active one receives insertions that name no composer.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		d.Detect()
		return d.View(), nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(d.logger, "list_composers")(endpoint), kit.DecodeArgs[struct{}])
}

// --- insert_prompt ---

type insertPromptRequest struct {
	PromptID   string            `json:"prompt_id"`
	ComposerID int64             `json:"composer_id,omitempty"`
	Values     map[string]string `json:"values,omitempty"`
}

func (d *Dock) registerInsertPromptTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "promptdock_insert_prompt",
		Description: "Insert a saved prompt into a composer with the configured insert mode. Template placeholders are filled from values, then from their defaults.",
		InputSchema: kit.InputSchema(map[string]any{
			"prompt_id":   map[string]any{"type": "string", "description": "Prompt ID"},
			"composer_id": map[string]any{"type": "integer", "description": "Composer ID from promptdock_list_composers (default: active composer)"},
			"values":      map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}, "description": "Placeholder values"},
		}, []string{"prompt_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*insertPromptRequest)
		c, err := d.target(ctx, r.ComposerID)
		if err != nil {
			return nil, err
		}
		if err := d.InsertPrompt(ctx, c, r.PromptID, library.StaticValues(r.Values)); err != nil {
			return nil, err
		}
		return map[string]any{"inserted": r.PromptID, "composer": viewOf(c, true)}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(d.logger, "insert_prompt")(endpoint), kit.DecodeArgs[insertPromptRequest])
}

// --- insert_text ---

type insertTextRequest struct {
	Text       string `json:"text"`
	Mode       string `json:"mode,omitempty"`
	ComposerID int64  `json:"composer_id,omitempty"`
}

func (d *Dock) registerInsertTextTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "promptdock_insert_text",
		Description: "Insert raw text into a composer.",
		InputSchema: kit.InputSchema(map[string]any{
			"text":        map[string]any{"type": "string", "description": "Text to insert"},
			"mode":        map[string]any{"type": "string", "enum": modeEnum(), "description": "Insert mode (default: configured mode)"},
			"composer_id": map[string]any{"type": "integer", "description": "Composer ID (default: active composer)"},
		}, []string{"text"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*insertTextRequest)
		var mode insert.Mode
		if r.Mode != "" {
			var err error
			if mode, err = insert.ParseMode(r.Mode); err != nil {
				return nil, err
			}
		}
		c, err := d.target(ctx, r.ComposerID)
		if err != nil {
			return nil, err
		}
		if err := d.InsertText(c, r.Text, mode); err != nil {
			return nil, err
		}
		return viewOf(c, true), nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(d.logger, "insert_text")(endpoint), kit.DecodeArgs[insertTextRequest])
}
