package library

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/promptdock/kit"
)

// RegisterMCP registers the library tools on an MCP server.
func (l *Library) RegisterMCP(srv *mcp.Server) {
	l.registerSearchPromptsTool(srv)
	l.registerSavePromptTool(srv)
	l.registerDeletePromptTool(srv)
	l.registerRecommendTool(srv)
}

// promptSummary is a listing row: the content is replaced by its preview.
type promptSummary struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Title      string     `json:"title,omitempty"`
	Preview    string     `json:"preview"`
	Tags       []string   `json:"tags"`
	Variables  []Variable `json:"variables,omitempty"`
	UsageCount int        `json:"usage_count"`
}

func (l *Library) summaries(ps []*Prompt) []promptSummary {
	out := make([]promptSummary, 0, len(ps))
	for _, p := range ps {
		out = append(out, promptSummary{
			ID:         p.ID,
			Name:       p.Name,
			Title:      p.Title,
			Preview:    l.Preview(p.Content),
			Tags:       p.Tags,
			Variables:  Variables(p.Content),
			UsageCount: p.UsageCount,
		})
	}
	return out
}

// --- search_prompts ---

type searchPromptsRequest struct {
	Query string `json:"query"`
}

func (l *Library) registerSearchPromptsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "promptdock_search_prompts",
		Description: "Search saved prompts by name or title (case-insensitive). An empty query lists every prompt.",
		InputSchema: kit.InputSchema(map[string]any{
			"query": map[string]any{"type": "string", "description": "Substring of the prompt name or title"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*searchPromptsRequest)
		ps, err := l.Search(ctx, r.Query)
		if err != nil {
			return nil, err
		}
		return l.summaries(ps), nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(l.logger, "search_prompts")(endpoint), kit.DecodeArgs[searchPromptsRequest])
}

// --- save_prompt ---

type savePromptRequest struct {
	ID         string   `json:"id,omitempty"`
	Name       string   `json:"name"`
	Title      string   `json:"title,omitempty"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags,omitempty"`
	CategoryID string   `json:"category_id,omitempty"`
}

func (l *Library) registerSavePromptTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "promptdock_save_prompt",
		Description: "Create a prompt, or update it when id names an existing one. Content may hold {{name}} or {{name:default}} placeholders.",
		InputSchema: kit.InputSchema(map[string]any{
			"id":          map[string]any{"type": "string", "description": "Existing prompt ID to update"},
			"name":        map[string]any{"type": "string", "description": "Prompt name"},
			"title":       map[string]any{"type": "string", "description": "Optional display title"},
			"content":     map[string]any{"type": "string", "description": "Prompt text"},
			"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"category_id": map[string]any{"type": "string", "description": "Category ID"},
		}, []string{"name", "content"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*savePromptRequest)
		return l.SavePrompt(ctx, &Prompt{
			ID:         r.ID,
			Name:       r.Name,
			Title:      r.Title,
			Content:    r.Content,
			Tags:       r.Tags,
			CategoryID: r.CategoryID,
		})
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(l.logger, "save_prompt")(endpoint), kit.DecodeArgs[savePromptRequest])
}

// --- delete_prompt ---

type deletePromptRequest struct {
	ID string `json:"id"`
}

func (l *Library) registerDeletePromptTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "promptdock_delete_prompt",
		Description: "Delete a saved prompt by ID.",
		InputSchema: kit.InputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Prompt ID"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*deletePromptRequest)
		if err := l.DeletePrompt(ctx, r.ID); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": r.ID}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(l.logger, "delete_prompt")(endpoint), kit.DecodeArgs[deletePromptRequest])
}

// --- recommend ---

func (l *Library) registerRecommendTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "promptdock_recommend",
		Description: "Recommended prompts: the most recently used, then the most used, without duplicates.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		ps, err := l.Recommend(ctx)
		if err != nil {
			return nil, err
		}
		return l.summaries(ps), nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(l.logger, "recommend")(endpoint), kit.DecodeArgs[struct{}])
}
