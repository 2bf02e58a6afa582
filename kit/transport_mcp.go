package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/promptdock/idgen"
)

// Decoder turns the raw arguments of a tool call into an endpoint request.
type Decoder func(*mcp.CallToolRequest) (any, error)

var newCallID = idgen.Prefixed("mcp-", idgen.New)

// RegisterMCPTool mounts endpoint as an MCP tool. Every call carries the "mcp"
// transport and a fresh request ID. Bad arguments, endpoint errors and
// endpoint panics all come back as tool errors so the session stays up.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode Decoder) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in, err := decode(req)
		if err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		ctx = WithRequestID(WithTransport(ctx, "mcp"), newCallID())

		out, err := call(ctx, endpoint, in)
		if err != nil {
			return toolError(err), nil
		}
		data, err := json.Marshal(out)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func call(ctx context.Context, endpoint Endpoint, in any) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("internal error: %v", rec)
		}
	}()
	return endpoint(ctx, in)
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}

// DecodeArgs unmarshals the arguments into a fresh *T. Missing arguments
// yield a pointer to the zero T.
func DecodeArgs[T any](req *mcp.CallToolRequest) (any, error) {
	v := new(T)
	if raw := req.Params.Arguments; len(raw) > 0 {
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// InputSchema builds a JSON object schema for a tool's arguments.
func InputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
