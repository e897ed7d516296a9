// Package mcp serves the tool registry over the Model Context Protocol.
package mcp

import (
	"context"
	"io"
	"log/slog"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"gitagent.dev/agenttool"
	"gitagent.dev/toolargs"
)

const serverName = "gitagent"

const inputDoc = "Free text alternative to the named parameters, e.g. file_path = 'a.py', new_content = '...'."

// NewServer registers one MCP tool per registry tool.
func NewServer(reg *agenttool.Registry, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, info := range reg.Tools() {
		s.AddTool(toolFor(info), toolHandler(reg, info.Name))
	}
	return s
}

// toolFor describes info as an MCP tool. Every parameter is optional in the
// schema since the loose input form may carry it instead.
func toolFor(info agenttool.Info) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(info.Description),
		mcp.WithString(agenttool.InputKey, mcp.Description(inputDoc)),
	}
	for _, p := range info.Params {
		doc := agenttool.ParamDoc(p)
		if slices.Contains(info.Bools, p) {
			opts = append(opts, mcp.WithBoolean(p, mcp.Description(doc)))
			continue
		}
		opts = append(opts, mcp.WithString(p, mcp.Description(doc)))
	}
	return mcp.NewTool(info.Name, opts...)
}

func toolHandler(reg *agenttool.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := reg.InvokeByName(ctx, name, toolargs.Structured(req.GetArguments()))
		if res.IsErr() {
			return mcp.NewToolResultError(res.String()), nil
		}
		return mcp.NewToolResultText(res.String()), nil
	}
}

// Serve speaks MCP over in and out until ctx is done or in is closed.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	slog.InfoContext(ctx, "serving MCP over stdio")
	return server.NewStdioServer(s).Listen(ctx, in, out)
}
