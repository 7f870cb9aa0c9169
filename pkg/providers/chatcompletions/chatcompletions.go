// Package chatcompletions provides a Completer for the Chat Completions API
// built on the go-openai client. It serves deployments that predate the
// Responses API and OpenAI-compatible gateways. Hosted tools are not
// available through this API, so callers must fall back to local tools.
package chatcompletions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/germanamz/newsroom/pkg/chats/chat"
	"github.com/germanamz/newsroom/pkg/chats/content"
	"github.com/germanamz/newsroom/pkg/chats/message"
	"github.com/germanamz/newsroom/pkg/chats/role"
	"github.com/germanamz/newsroom/pkg/modeladapter"
	"github.com/germanamz/newsroom/pkg/modeladapter/usage"
	"github.com/germanamz/newsroom/pkg/tools/toolbox"
)

// DefaultAzureAPIVersion is used when AzureConfig.APIVersion is empty.
const DefaultAzureAPIVersion = "2024-10-21"

// chunkEvent is the Update type emitted for every streamed chunk.
const chunkEvent = "chat.completion.chunk"

var (
	_ modeladapter.Completer = (*Adapter)(nil)
	_ modeladapter.Streamer  = (*Adapter)(nil)
)

// Adapter implements modeladapter.Completer and modeladapter.Streamer for the
// Chat Completions API. It embeds ModelAdapter for its model settings and
// usage tracker; HTTP is handled by the go-openai client.
type Adapter struct {
	modeladapter.ModelAdapter

	client *goopenai.Client
}

// AzureConfig addresses one deployment on an Azure OpenAI resource.
type AzureConfig struct {
	Endpoint    string
	Deployment  string
	APIVersion  string
	APIKey      string
	BearerToken string
}

// New creates an Adapter for an OpenAI-compatible endpoint. baseURL must
// include the version prefix (e.g. "https://api.openai.com/v1"); empty means
// the OpenAI default.
func New(baseURL, apiKey, model string) *Adapter {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	a := &Adapter{client: goopenai.NewClientWithConfig(cfg)}
	a.Name = model
	a.BaseURL = cfg.BaseURL

	return a
}

// NewAzure creates an Adapter for an Azure OpenAI deployment.
func NewAzure(c AzureConfig) *Adapter {
	key := c.APIKey
	if c.BearerToken != "" {
		key = c.BearerToken
	}

	cfg := goopenai.DefaultAzureConfig(key, strings.TrimRight(c.Endpoint, "/"))
	if c.BearerToken != "" {
		cfg.APIType = goopenai.APITypeAzureAD
	}

	cfg.APIVersion = c.APIVersion
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAzureAPIVersion
	}

	// Deployment names are used verbatim; the default mapper strips dots.
	cfg.AzureModelMapperFunc = func(model string) string { return model }

	a := &Adapter{client: goopenai.NewClientWithConfig(cfg)}
	a.Name = c.Deployment
	a.BaseURL = cfg.BaseURL

	return a
}

// Complete sends the conversation and returns the assistant's reply.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(c, tools, false))
	if err != nil {
		return message.Message{}, fmt.Errorf("chatcompletions: %w", convertError(err))
	}

	a.Usage.Add(usage.TokenCount{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	})

	if len(resp.Choices) == 0 {
		return message.Message{}, errors.New("chatcompletions: empty choices in response")
	}

	return parseMessage(resp.Choices[0].Message), nil
}

// Stream sends the conversation with streaming enabled. Every chunk is passed
// to fn; tool call fragments are joined by their index.
func (a *Adapter) Stream(ctx context.Context, c *chat.Chat, tools []toolbox.Tool, fn modeladapter.UpdateFunc) (message.Message, error) {
	stream, err := a.client.CreateChatCompletionStream(ctx, a.buildRequest(c, tools, true))
	if err != nil {
		return message.Message{}, fmt.Errorf("chatcompletions: %w", convertError(err))
	}
	defer func() { _ = stream.Close() }()

	var (
		text  strings.Builder
		calls = map[int]*goopenai.ToolCall{}
	)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return message.Message{}, fmt.Errorf("chatcompletions: %w", convertError(err))
		}

		upd := modeladapter.Update{Type: chunkEvent}
		if raw, err := json.Marshal(chunk); err == nil {
			upd.Payload = raw
		}

		for _, choice := range chunk.Choices {
			upd.Text += choice.Delta.Content
			text.WriteString(choice.Delta.Content)

			for i, tc := range choice.Delta.ToolCalls {
				idx := i
				if tc.Index != nil {
					idx = *tc.Index
				}
				acc, ok := calls[idx]
				if !ok {
					acc = &goopenai.ToolCall{}
					calls[idx] = acc
				}
				if tc.ID != "" {
					acc.ID = tc.ID
				}
				acc.Function.Name += tc.Function.Name
				acc.Function.Arguments += tc.Function.Arguments
			}
		}

		if fn != nil {
			fn(upd)
		}
	}

	var parts []content.Part
	if text.Len() > 0 {
		parts = append(parts, content.Text{Text: text.String()})
	}

	indexes := make([]int, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	for _, idx := range indexes {
		tc := calls[idx]
		parts = append(parts, content.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}

	return message.New("", role.Assistant, parts...), nil
}

func (a *Adapter) buildRequest(c *chat.Chat, tools []toolbox.Tool, stream bool) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:       a.Name,
		MaxTokens:   a.MaxTokens,
		Temperature: float32(a.Temperature),
		Stream:      stream,
	}

	for _, t := range modeladapter.LocalTools(tools) {
		schema := t.InputSchema
		if schema == nil {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		})
	}

	for _, m := range c.Messages() {
		req.Messages = appendMessages(req.Messages, m)
	}

	return req
}

func appendMessages(msgs []goopenai.ChatCompletionMessage, m message.Message) []goopenai.ChatCompletionMessage {
	switch m.Role {
	case role.System:
		return append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: m.TextContent()})

	case role.User:
		return append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: m.TextContent()})

	case role.Assistant:
		msg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: m.TextContent()}
		for _, tc := range m.ToolCalls() {
			msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return append(msgs, msg)

	case role.Tool:
		for _, p := range m.Parts {
			if tr, ok := p.(content.ToolResult); ok {
				msgs = append(msgs, goopenai.ChatCompletionMessage{
					Role:       goopenai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
		}
	}

	return msgs
}

func parseMessage(m goopenai.ChatCompletionMessage) message.Message {
	var parts []content.Part

	if m.Content != "" {
		parts = append(parts, content.Text{Text: m.Content})
	}

	for _, tc := range m.ToolCalls {
		parts = append(parts, content.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return message.New("", role.Assistant, parts...)
}

// convertError maps go-openai HTTP failures onto the modeladapter error types
// so callers handle both provider families the same way.
func convertError(err error) error {
	status, body := 0, err.Error()

	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError

	switch {
	case errors.As(err, &apiErr):
		status, body = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return err
	}

	if status == http.StatusTooManyRequests {
		return &modeladapter.RateLimitError{Body: body}
	}
	if status != 0 {
		return &modeladapter.APIError{Status: status, Body: body}
	}

	return err
}
