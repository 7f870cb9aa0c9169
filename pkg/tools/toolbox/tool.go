package toolbox

import (
	"context"
	"encoding/json"
)

// Handler executes a tool with the given JSON input and returns a text result.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool represents an executable tool with a name, description, JSON Schema, and handler.
//
// A Hosted tool is executed by the model provider itself (for example the
// Responses API web_search_preview tool). Its Name is the provider tool type
// and it carries no Handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
	Hosted      bool
}

// HostedWebSearch is the provider-side web search tool type.
const HostedWebSearch = "web_search_preview"

// NewHosted returns a declaration for a provider-hosted tool of the given type.
func NewHosted(kind string) Tool {
	return Tool{Name: kind, Hosted: true}
}
