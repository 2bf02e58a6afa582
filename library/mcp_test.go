package library

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testImpl = &mcp.Implementation{Name: "promptdock-library-test", Version: "0.1.0"}

func mcpSession(t *testing.T) (*Library, *mcp.ClientSession) {
	t.Helper()
	l := testLibrary(t)

	srv := mcp.NewServer(testImpl, nil)
	l.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return l, session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text, result.IsError
}

func TestMCP_SaveThenSearch(t *testing.T) {
	_, session := mcpSession(t)

	text, isErr := callTool(t, session, "promptdock_save_prompt", map[string]any{
		"name":    "Translate",
		"content": "Translate {{text}} to {{lang:French}}",
		"tags":    []string{"lang"},
	})
	if isErr {
		t.Fatalf("save: %s", text)
	}
	var saved Prompt
	if err := json.Unmarshal([]byte(text), &saved); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected non-empty prompt ID")
	}

	text, _ = callTool(t, session, "promptdock_search_prompts", map[string]any{"query": "trans"})
	var rows []promptSummary
	if err := json.Unmarshal([]byte(text), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != saved.ID {
		t.Fatalf("search: got %+v", rows)
	}
	if len(rows[0].Variables) != 2 || rows[0].Variables[1].Default != "French" {
		t.Fatalf("variables: got %+v", rows[0].Variables)
	}
}

func TestMCP_SaveInvalid(t *testing.T) {
	_, session := mcpSession(t)
	text, isErr := callTool(t, session, "promptdock_save_prompt", map[string]any{"name": "x", "content": ""})
	if !isErr {
		t.Fatalf("expected tool error, got %s", text)
	}
	if !strings.Contains(text, "empty content") {
		t.Fatalf("error text: %q", text)
	}
}

func TestMCP_DeletePrompt(t *testing.T) {
	l, session := mcpSession(t)
	p := mustSave(t, l, "a", "a")

	text, isErr := callTool(t, session, "promptdock_delete_prompt", map[string]any{"id": p.ID})
	if isErr {
		t.Fatalf("delete: %s", text)
	}
	_, isErr = callTool(t, session, "promptdock_delete_prompt", map[string]any{"id": p.ID})
	if !isErr {
		t.Fatal("second delete: expected tool error")
	}
}

func TestMCP_Recommend(t *testing.T) {
	l, session := mcpSession(t)
	p := mustSave(t, l, "used", "used")
	mustSave(t, l, "unused", "unused")
	if err := l.RecordUsage(context.Background(), p.ID); err != nil {
		t.Fatal(err)
	}

	text, _ := callTool(t, session, "promptdock_recommend", map[string]any{})
	var rows []promptSummary
	if err := json.Unmarshal([]byte(text), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "used" {
		t.Fatalf("recommend: got %+v", rows)
	}
}
