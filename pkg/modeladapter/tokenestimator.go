package modeladapter

import (
	"github.com/germanamz/newsroom/pkg/chats/chat"
	"github.com/germanamz/newsroom/pkg/chats/content"
	"github.com/germanamz/newsroom/pkg/tools/toolbox"
)

const (
	perMessageOverhead = 4
	perToolOverhead    = 10
)

// charsToTokens applies the 1-token-per-4-characters heuristic, rounding up.
func charsToTokens(chars int) int {
	return (chars + 3) / 4
}

// EstimateTokens estimates the input tokens a request for c with tools will
// consume. The newsroom stages resend the whole discussion each turn, so the
// estimate is logged before every call to show how the prompt grows.
func EstimateTokens(c *chat.Chat, tools []toolbox.Tool) int {
	tokens := 0

	for _, m := range c.Messages() {
		tokens += perMessageOverhead

		for _, p := range m.Parts {
			switch v := p.(type) {
			case content.Text:
				tokens += charsToTokens(len(v.Text))
			case content.ToolCall:
				tokens += charsToTokens(len(v.ID) + len(v.Name) + len(v.Arguments))
			case content.ToolResult:
				tokens += charsToTokens(len(v.ToolCallID) + len(v.Content))
			}
		}
	}

	for _, t := range tools {
		tokens += charsToTokens(len(t.Name)+len(t.Description)+len(t.InputSchema)) + perToolOverhead
	}

	return tokens
}
