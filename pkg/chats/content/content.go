// Package content defines the content parts carried by LLM messages.
package content

// Part is a piece of content within a message.
type Part interface {
	PartKind() string
}

// Text is a plain text content part.
type Text struct {
	Text string
}

func (t Text) PartKind() string { return "text" }

// ToolCall represents an assistant's request to invoke a locally executed tool.
// Arguments holds the raw JSON string to avoid unnecessary deserialization.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

func (tc ToolCall) PartKind() string { return "tool_call" }

// ToolResult holds the output of a tool invocation.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

func (tr ToolResult) PartKind() string { return "tool_result" }

// SearchCall records a web search the provider ran on the model's behalf
// while producing a reply. It is informational and is never sent back to the
// provider.
type SearchCall struct {
	ID     string
	Query  string
	Status string
}

func (sc SearchCall) PartKind() string { return "search_call" }

// Citation is a URL the model cited in its reply.
type Citation struct {
	URL   string
	Title string
}

func (c Citation) PartKind() string { return "citation" }
