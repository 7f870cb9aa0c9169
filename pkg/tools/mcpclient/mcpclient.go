// Package mcpclient connects to stdio MCP servers and exposes their tools as a
// toolbox so agents can call them like any other local tool.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/germanamz/newsroom/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server describes an MCP server process launched over stdio.
type Server struct {
	Name    string
	Command string
	Args    []string
	Env     []string // Extra KEY=VALUE pairs appended to the current environment.
}

// MCPClient communicates with an MCP server using the official MCP Go SDK.
type MCPClient struct {
	name    string
	client  *mcp.Client
	session *mcp.ClientSession
}

// Connect spawns the server process and returns a connected client.
// The SDK handles initialization automatically during Connect.
func Connect(ctx context.Context, srv Server) (*MCPClient, error) {
	cmd := exec.Command(srv.Command, srv.Args...) //nolint:gosec // command comes from the operator's config file
	if len(srv.Env) > 0 {
		cmd.Env = append(os.Environ(), srv.Env...)
	}

	return newFromTransport(ctx, srv.Name, &mcp.CommandTransport{Command: cmd})
}

// newFromTransport creates an MCPClient using the given transport. Used by
// Connect and by tests with InMemoryTransport.
func newFromTransport(ctx context.Context, name string, transport mcp.Transport) (*MCPClient, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "newsroom",
		Version: "0.1.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: %s: connect: %w", name, err)
	}

	return &MCPClient{name: name, client: client, session: session}, nil
}

// Name returns the configured server name.
func (c *MCPClient) Name() string { return c.name }

// ListTools fetches available tools from the server and returns them as
// toolbox.Tool instances. Each Tool's Handler closure calls back through
// CallTool.
func (c *MCPClient) ListTools(ctx context.Context) ([]toolbox.Tool, error) {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: %s: list tools: %w", c.name, err)
	}

	tools := make([]toolbox.Tool, 0, len(result.Tools))
	for _, sdkTool := range result.Tools {
		t, err := fromSDKTool(sdkTool, c)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: %s: convert tool %q: %w", c.name, sdkTool.Name, err)
		}
		tools = append(tools, t)
	}

	return tools, nil
}

// ToolBox lists the server's tools and registers them in a new ToolBox.
func (c *MCPClient) ToolBox(ctx context.Context) (*toolbox.ToolBox, error) {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	tb := toolbox.New()
	tb.Register(tools...)

	return tb, nil
}

// CallTool calls a named tool on the server with the given arguments.
func (c *MCPClient) CallTool(ctx context.Context, name string, arguments json.RawMessage) (string, error) {
	var args map[string]any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("mcpclient: unmarshal arguments: %w", err)
		}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("mcpclient: %s: call tool: %w", c.name, err)
	}

	text := extractText(result)

	if result.IsError {
		return "", fmt.Errorf("mcpclient: %s: tool error: %s", c.name, text)
	}

	return text, nil
}

// Close terminates the session. Closing a command transport closes the
// server's stdin and waits for the process to exit.
func (c *MCPClient) Close() error {
	return c.session.Close()
}

// fromSDKTool converts an SDK *mcp.Tool to a toolbox.Tool.
func fromSDKTool(sdkTool *mcp.Tool, c *MCPClient) (toolbox.Tool, error) {
	schemaBytes, err := json.Marshal(sdkTool.InputSchema)
	if err != nil {
		return toolbox.Tool{}, fmt.Errorf("marshal input schema: %w", err)
	}

	name := sdkTool.Name

	return toolbox.Tool{
		Name:        sdkTool.Name,
		Description: sdkTool.Description,
		InputSchema: json.RawMessage(schemaBytes),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			return c.CallTool(ctx, name, input)
		},
	}, nil
}

// extractText joins all TextContent items from a CallToolResult with newlines.
func extractText(result *mcp.CallToolResult) string {
	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	return strings.Join(texts, "\n")
}
