package kit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "endpoint", "b_after", "a_after"}
	if strings.Join(order, ",") != strings.Join(expected, ",") {
		t.Fatalf("order: got %v, want %v", order, expected)
	}
}

func TestLogging_Error(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	errFail := errors.New("stale")

	ep := Logging(logger, "insert")(func(context.Context, any) (any, error) { return nil, errFail })
	ctx := WithRequestID(WithTransport(context.Background(), "http"), "req_1")
	if _, err := ep(ctx, nil); !errors.Is(err, errFail) {
		t.Fatalf("error: got %v", err)
	}
	out := buf.String()
	for _, want := range []string{"kit: endpoint failed", "op=insert", "transport=http", "request_id=req_1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}

func TestContext_Defaults(t *testing.T) {
	ctx := context.Background()
	if v := GetTransport(ctx); v != "cli" {
		t.Fatalf("default transport: got %q, want cli", v)
	}
	if v := GetRequestID(ctx); v != "" {
		t.Fatalf("request_id default: got %q", v)
	}
	Annotate(ctx, "ignored", true) // no Logging around: no-op
}

func TestLogging_Annotate(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ep := Logging(logger, "insert_prompt")(func(ctx context.Context, _ any) (any, error) {
		Annotate(ctx, "composer", int64(7), "prompt", "p1")
		return "ok", nil
	})
	if _, err := ep(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"kit: endpoint ok", "composer=7", "prompt=p1", "transport=cli"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}

type echoReq struct {
	Text string `json:"text"`
}

func TestRegisterMCPTool(t *testing.T) {
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)

	var seenTransport string
	RegisterMCPTool(srv, &mcp.Tool{
		Name:        "echo",
		InputSchema: InputSchema(map[string]any{"text": map[string]any{"type": "string"}}, []string{"text"}),
	}, func(ctx context.Context, req any) (any, error) {
		seenTransport = GetTransport(ctx)
		r := req.(*echoReq)
		if r.Text == "" {
			return nil, errors.New("empty text")
		}
		return map[string]string{"echo": r.Text}, nil
	}, DecodeArgs[echoReq])

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"text": "hi"}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &out); err != nil {
		t.Fatal(err)
	}
	if out["echo"] != "hi" {
		t.Fatalf("echo: got %q", out["echo"])
	}
	if seenTransport != "mcp" {
		t.Fatalf("transport: got %q, want mcp", seenTransport)
	}
}

func TestRegisterMCPTool_ErrorsStayInBand(t *testing.T) {
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)

	var seenID string
	RegisterMCPTool(srv, &mcp.Tool{
		Name:        "boom",
		InputSchema: InputSchema(map[string]any{"text": map[string]any{"type": "string"}}, nil),
	}, func(ctx context.Context, req any) (any, error) {
		seenID = GetRequestID(ctx)
		if req.(*echoReq).Text == "panic" {
			panic("endpoint blew up")
		}
		return nil, errors.New("nope")
	}, DecodeArgs[echoReq])

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	for _, text := range []string{"fail", "panic"} {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "boom", Arguments: map[string]any{"text": text}})
		if err != nil {
			t.Fatalf("CallTool(%s): %v", text, err)
		}
		if !res.IsError {
			t.Fatalf("CallTool(%s): expected a tool error", text)
		}
	}
	if !strings.HasPrefix(seenID, "mcp-") {
		t.Fatalf("request id: got %q, want mcp- prefix", seenID)
	}
}
