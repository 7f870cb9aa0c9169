// Package tools provides tool execution and MCP (Model Context Protocol)
// integration for the newsroom agents.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/newsroom/pkg/tools/toolbox]: Tool type and ToolBox for registering, listing, and calling tools
//   - [github.com/germanamz/newsroom/pkg/tools/websearch]: local web_search and web_fetch tools for providers without hosted search
//   - [github.com/germanamz/newsroom/pkg/tools/mcpclient]: MCP client that exposes external MCP server tools as a ToolBox
//   - [github.com/germanamz/newsroom/pkg/tools/mcpserver]: MCP server that exposes ToolBox tools over stdio
//
// The toolbox sub-package is the foundation layer; the others depend on it
// but are independent of each other.
package tools
