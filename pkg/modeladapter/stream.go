package modeladapter

import (
	"context"
	"encoding/json"

	"github.com/germanamz/newsroom/pkg/chats/chat"
	"github.com/germanamz/newsroom/pkg/chats/message"
	"github.com/germanamz/newsroom/pkg/tools/toolbox"
)

// Update is one incremental event produced while a reply streams in. Type is
// the provider event name, Text the text delta it carries (if any) and Payload
// the raw event body.
type Update struct {
	Type    string
	Text    string
	Payload json.RawMessage
}

// UpdateFunc receives stream updates in the order they arrive.
type UpdateFunc func(Update)

// Streamer is implemented by completers that can stream a reply. Stream calls
// fn for every update and returns the fully assembled reply, equal to what
// Complete would have returned.
type Streamer interface {
	Stream(ctx context.Context, c *chat.Chat, tools []toolbox.Tool, fn UpdateFunc) (message.Message, error)
}

// HostedToolSupporter is implemented by completers whose provider can execute
// hosted tools (such as toolbox.HostedWebSearch) on its side.
type HostedToolSupporter interface {
	SupportsHostedTool(kind string) bool
}

// SupportsHosted reports whether c can run the hosted tool kind.
func SupportsHosted(c Completer, kind string) bool {
	hs, ok := c.(HostedToolSupporter)
	return ok && hs.SupportsHostedTool(kind)
}

// LocalTools returns the tools that must be executed locally, dropping hosted
// declarations. Providers without hosted tool support use it to build requests.
func LocalTools(tools []toolbox.Tool) []toolbox.Tool {
	var out []toolbox.Tool
	for _, t := range tools {
		if !t.Hosted {
			out = append(out, t)
		}
	}
	return out
}
