// Package message defines the Message type used in LLM conversations.
package message

import (
	"strings"

	"github.com/germanamz/newsroom/pkg/chats/content"
	"github.com/germanamz/newsroom/pkg/chats/role"
)

// Message represents a single message in a conversation.
// It is a value type that copies cheaply.
type Message struct {
	Sender string
	Role   role.Role
	Parts  []content.Part
}

// New creates a message with the given sender, role, and content parts.
func New(sender string, r role.Role, parts ...content.Part) Message {
	return Message{
		Sender: sender,
		Role:   r,
		Parts:  parts,
	}
}

// NewText creates a message with a single Text content part.
func NewText(sender string, r role.Role, text string) Message {
	return New(sender, r, content.Text{Text: text})
}

// TextContent concatenates the text of all Text parts in the message.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(content.Text); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// ToolCalls returns all ToolCall parts in the message.
func (m Message) ToolCalls() []content.ToolCall {
	var calls []content.ToolCall
	for _, p := range m.Parts {
		if tc, ok := p.(content.ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// SearchQueries returns the queries of all hosted searches recorded in the
// message, in order. Empty queries are skipped.
func (m Message) SearchQueries() []string {
	var queries []string
	for _, p := range m.Parts {
		if sc, ok := p.(content.SearchCall); ok && sc.Query != "" {
			queries = append(queries, sc.Query)
		}
	}
	return queries
}

// Citations returns all Citation parts in the message.
func (m Message) Citations() []content.Citation {
	var out []content.Citation
	for _, p := range m.Parts {
		if c, ok := p.(content.Citation); ok {
			out = append(out, c)
		}
	}
	return out
}
