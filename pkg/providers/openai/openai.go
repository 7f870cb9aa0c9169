// Package openai provides a Completer implementation for the OpenAI Responses
// API, served either by OpenAI itself or by an Azure OpenAI resource.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/germanamz/newsroom/pkg/chats/chat"
	"github.com/germanamz/newsroom/pkg/chats/content"
	"github.com/germanamz/newsroom/pkg/chats/message"
	"github.com/germanamz/newsroom/pkg/chats/role"
	"github.com/germanamz/newsroom/pkg/modeladapter"
	"github.com/germanamz/newsroom/pkg/modeladapter/usage"
	"github.com/germanamz/newsroom/pkg/tools/toolbox"
)

const (
	responsesPath      = "/v1/responses"
	azureResponsesPath = "/responses"

	// DefaultAzureAPIVersion is used when AzureConfig.APIVersion is empty.
	DefaultAzureAPIVersion = "2025-04-01-preview"
)

var (
	_ modeladapter.Completer           = (*Adapter)(nil)
	_ modeladapter.Streamer            = (*Adapter)(nil)
	_ modeladapter.HostedToolSupporter = (*Adapter)(nil)
)

// Adapter implements modeladapter.Completer and modeladapter.Streamer for the
// Responses API.
type Adapter struct {
	modeladapter.ModelAdapter

	// ReasoningEffort is sent as reasoning.effort when set ("low", "medium",
	// "high"). Only reasoning deployments accept it.
	ReasoningEffort string

	path string
}

// AzureConfig addresses one deployment on an Azure OpenAI resource. Exactly
// one of APIKey and BearerToken is expected; BearerToken wins when both are set.
type AzureConfig struct {
	Endpoint    string
	Deployment  string
	APIVersion  string
	APIKey      string
	BearerToken string
}

// New creates an Adapter configured for the OpenAI API.
// The baseURL should be "https://api.openai.com" (no trailing slash).
func New(baseURL, apiKey, model string) *Adapter {
	a := &Adapter{path: responsesPath}
	a.BaseURL = strings.TrimRight(baseURL, "/")
	a.Auth = modeladapter.Auth{Key: apiKey}
	a.Name = model
	a.HeaderParser = modeladapter.ParseOpenAIRateLimitHeaders

	return a
}

// NewAzure creates an Adapter for an Azure OpenAI deployment.
func NewAzure(cfg AzureConfig) *Adapter {
	base := strings.TrimRight(cfg.Endpoint, "/")
	if !strings.HasSuffix(base, "/openai") {
		base += "/openai"
	}

	version := cfg.APIVersion
	if version == "" {
		version = DefaultAzureAPIVersion
	}

	a := &Adapter{path: azureResponsesPath}
	a.BaseURL = base
	a.Name = cfg.Deployment
	a.Query = url.Values{"api-version": {version}}
	a.HeaderParser = modeladapter.ParseOpenAIRateLimitHeaders

	if cfg.BearerToken != "" {
		a.Auth = modeladapter.Auth{Key: cfg.BearerToken}
	} else {
		a.Auth = modeladapter.Auth{Key: cfg.APIKey, Header: "api-key"}
	}

	return a
}

// SupportsHostedTool reports whether kind is run by the Responses API itself.
func (a *Adapter) SupportsHostedTool(kind string) bool {
	return kind == toolbox.HostedWebSearch
}

// Complete sends the conversation in a single non-streaming request.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	req := a.buildRequest(c, tools, false)

	var resp apiResponse
	if err := a.PostJSON(ctx, a.path, req, &resp); err != nil {
		return message.Message{}, fmt.Errorf("openai: %w", err)
	}

	if err := resp.err(); err != nil {
		return message.Message{}, fmt.Errorf("openai: %w", err)
	}

	a.addUsage(resp.Usage)

	return parseOutput(resp.Output), nil
}

// Stream sends the conversation with stream enabled, calling fn for every
// server-sent event in order, and returns the assembled reply.
func (a *Adapter) Stream(ctx context.Context, c *chat.Chat, tools []toolbox.Tool, fn modeladapter.UpdateFunc) (message.Message, error) {
	req := a.buildRequest(c, tools, true)

	var (
		text      strings.Builder
		items     []apiOutputItem
		completed *apiResponse
	)

	err := a.PostStream(ctx, a.path, req, func(event string, data []byte) error {
		var ev apiEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}

		typ := ev.Type
		if typ == "" {
			typ = event
		}

		upd := modeladapter.Update{Type: typ, Payload: json.RawMessage(data)}

		switch typ {
		case "response.output_text.delta":
			upd.Text = ev.Delta
			text.WriteString(ev.Delta)
		case "response.output_item.done":
			if ev.Item != nil {
				items = append(items, *ev.Item)
			}
		case "response.completed", "response.incomplete":
			completed = ev.Response
		case "response.failed":
			if ev.Response != nil {
				if err := ev.Response.err(); err != nil {
					return err
				}
			}
			return errors.New("response failed")
		case "error":
			return &apiError{Code: ev.Code, Message: ev.Message}
		}

		if fn != nil {
			fn(upd)
		}

		return nil
	})
	if err != nil {
		return message.Message{}, fmt.Errorf("openai: %w", err)
	}

	if completed != nil {
		a.addUsage(completed.Usage)
		if len(completed.Output) > 0 {
			items = completed.Output
		}
	}

	msg := parseOutput(items)
	if msg.TextContent() == "" && text.Len() > 0 {
		msg.Parts = append([]content.Part{content.Text{Text: text.String()}}, msg.Parts...)
	}

	return msg, nil
}

func (a *Adapter) addUsage(u apiUsage) {
	a.Usage.Add(usage.TokenCount{
		InputTokens:     u.InputTokens,
		OutputTokens:    u.OutputTokens,
		ReasoningTokens: u.OutputTokensDetails.ReasoningTokens,
	})
}

// --- request types ---

type apiRequest struct {
	Model           string         `json:"model"`
	Instructions    string         `json:"instructions,omitempty"`
	Input           []apiInputItem `json:"input"`
	Tools           []apiTool      `json:"tools,omitempty"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	Reasoning       *apiReasoning  `json:"reasoning,omitempty"`
	Stream          bool           `json:"stream,omitempty"`
}

type apiInputItem struct {
	Type      string  `json:"type"`
	Role      string  `json:"role,omitempty"`
	Content   string  `json:"content,omitempty"`
	CallID    string  `json:"call_id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Arguments string  `json:"arguments,omitempty"`
	Output    *string `json:"output,omitempty"`
}

type apiTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type apiReasoning struct {
	Effort string `json:"effort"`
}

// --- response types ---

type apiResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output []apiOutputItem `json:"output"`
	Usage  apiUsage        `json:"usage"`
	Error  *apiError       `json:"error"`
}

func (r *apiResponse) err() error {
	if r.Error != nil && (r.Error.Message != "" || r.Error.Code != "") {
		return r.Error
	}
	if r.Status == "failed" {
		return errors.New("response failed")
	}
	return nil
}

type apiOutputItem struct {
	Type      string             `json:"type"`
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	Role      string             `json:"role,omitempty"`
	Content   []apiOutputContent `json:"content,omitempty"`
	CallID    string             `json:"call_id,omitempty"`
	Name      string             `json:"name,omitempty"`
	Arguments string             `json:"arguments,omitempty"`
	Action    *apiSearchAction   `json:"action,omitempty"`
}

type apiOutputContent struct {
	Type        string          `json:"type"`
	Text        string          `json:"text,omitempty"`
	Refusal     string          `json:"refusal,omitempty"`
	Annotations []apiAnnotation `json:"annotations,omitempty"`
}

type apiAnnotation struct {
	Type  string `json:"type"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

type apiSearchAction struct {
	Type  string `json:"type"`
	Query string `json:"query,omitempty"`
}

type apiUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	OutputTokensDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"output_tokens_details"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// apiEvent is the union of the stream event bodies the adapter reads.
type apiEvent struct {
	Type     string         `json:"type"`
	Delta    string         `json:"delta"`
	Item     *apiOutputItem `json:"item"`
	Response *apiResponse   `json:"response"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
}

// --- conversion helpers ---

func (a *Adapter) buildRequest(c *chat.Chat, tools []toolbox.Tool, stream bool) apiRequest {
	req := apiRequest{
		Model:           a.Name,
		MaxOutputTokens: a.MaxTokens,
		Stream:          stream,
		Input:           []apiInputItem{},
	}

	if a.Temperature != 0 {
		t := a.Temperature
		req.Temperature = &t
	}

	if a.ReasoningEffort != "" {
		req.Reasoning = &apiReasoning{Effort: a.ReasoningEffort}
	}

	for _, t := range tools {
		if t.Hosted {
			if a.SupportsHostedTool(t.Name) {
				req.Tools = append(req.Tools, apiTool{Type: t.Name})
			}
			continue
		}

		schema := t.InputSchema
		if schema == nil {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		req.Tools = append(req.Tools, apiTool{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}

	var instructions []string
	for _, m := range c.Messages() {
		if m.Role == role.System {
			instructions = append(instructions, m.TextContent())
			continue
		}
		req.Input = appendInput(req.Input, m)
	}
	req.Instructions = strings.Join(instructions, "\n\n")

	return req
}

func appendInput(items []apiInputItem, m message.Message) []apiInputItem {
	switch m.Role {
	case role.User:
		items = append(items, apiInputItem{Type: "message", Role: "user", Content: m.TextContent()})

	case role.Assistant:
		if text := m.TextContent(); text != "" {
			items = append(items, apiInputItem{Type: "message", Role: "assistant", Content: text})
		}
		for _, tc := range m.ToolCalls() {
			items = append(items, apiInputItem{
				Type:      "function_call",
				CallID:    tc.ID,
				Name:      tc.Name,
				Arguments: tc.Arguments,
			})
		}

	case role.Tool:
		for _, p := range m.Parts {
			if tr, ok := p.(content.ToolResult); ok {
				out := tr.Content
				items = append(items, apiInputItem{
					Type:   "function_call_output",
					CallID: tr.ToolCallID,
					Output: &out,
				})
			}
		}
	}

	return items
}

func parseOutput(items []apiOutputItem) message.Message {
	var (
		parts []content.Part
		text  strings.Builder
		cites []content.Part
		seen  = map[string]bool{}
	)

	for _, it := range items {
		switch it.Type {
		case "message":
			for _, c := range it.Content {
				switch c.Type {
				case "output_text":
					text.WriteString(c.Text)
				case "refusal":
					text.WriteString(c.Refusal)
				}
				for _, an := range c.Annotations {
					if an.Type != "url_citation" || an.URL == "" || seen[an.URL] {
						continue
					}
					seen[an.URL] = true
					cites = append(cites, content.Citation{URL: an.URL, Title: an.Title})
				}
			}
		case "function_call":
			parts = append(parts, content.ToolCall{
				ID:        it.CallID,
				Name:      it.Name,
				Arguments: it.Arguments,
			})
		case "web_search_call":
			sc := content.SearchCall{ID: it.ID, Status: it.Status}
			if it.Action != nil {
				sc.Query = it.Action.Query
			}
			parts = append(parts, sc)
		}
	}

	if text.Len() > 0 {
		parts = append([]content.Part{content.Text{Text: text.String()}}, parts...)
	}
	parts = append(parts, cites...)

	return message.New("", role.Assistant, parts...)
}
