// Package agent provides an LLM-driven actor configured with a role prompt.
// Each run starts a fresh conversation from the agent's instructions and one
// input message, then loops (reason + act) until the model stops asking for
// local tools.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/germanamz/newsroom/pkg/agentctx"
	"github.com/germanamz/newsroom/pkg/chats/chat"
	"github.com/germanamz/newsroom/pkg/chats/content"
	"github.com/germanamz/newsroom/pkg/chats/message"
	"github.com/germanamz/newsroom/pkg/chats/role"
	"github.com/germanamz/newsroom/pkg/modeladapter"
	"github.com/germanamz/newsroom/pkg/tools/toolbox"
)

// ErrMaxIterations is returned when the ReAct loop exceeds MaxIterations
// without the model producing a final answer.
var ErrMaxIterations = errors.New("agent: max iterations reached")

// DefaultMaxIterations is used when Options.MaxIterations is zero.
const DefaultMaxIterations = 10

// Update types emitted by the agent itself, next to the provider's events.
const (
	// UpdateToolCall is emitted before a local tool runs. Its payload is
	// {"name": ..., "arguments": ...}.
	UpdateToolCall = "tool_call"
	// UpdateReply is emitted once per reply from a completer that cannot
	// stream. It carries the whole reply text.
	UpdateReply = "reply"
)

// Options configures an Agent.
type Options struct {
	MaxIterations int          // ReAct loop limit (0 = DefaultMaxIterations).
	Middleware    []Middleware // Applied around Run().
	Logger        *slog.Logger // Debug logging of each model call; nil disables it.
}

// Agent is one configured LLM actor.
type Agent struct {
	name         string
	description  string
	instructions string
	completer    modeladapter.Completer
	toolboxes    []*toolbox.ToolBox
	options      Options
	log          *slog.Logger
	last         *chat.Chat
}

// New creates an Agent with the given configuration.
func New(name, description, instructions string, completer modeladapter.Completer, opts Options) *Agent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Agent{
		name:         name,
		description:  description,
		instructions: instructions,
		completer:    completer,
		options:      opts,
		log:          log,
	}
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Description returns the agent's description.
func (a *Agent) Description() string { return a.description }

// Instructions returns the agent's system prompt.
func (a *Agent) Instructions() string { return a.instructions }

// Completer returns the agent's completer.
func (a *Agent) Completer() modeladapter.Completer { return a.completer }

// Chat returns the conversation of the most recent run, or nil before the
// first run.
func (a *Agent) Chat() *chat.Chat { return a.last }

// AddToolBoxes adds toolboxes to the agent. Hosted tool declarations may be
// registered in a toolbox like any other tool; the provider runs them.
func (a *Agent) AddToolBoxes(tbs ...*toolbox.ToolBox) {
	a.toolboxes = append(a.toolboxes, tbs...)
}

// Tools returns the declarations sent to the model, in toolbox order.
func (a *Agent) Tools() []toolbox.Tool {
	var tools []toolbox.Tool
	for _, tb := range a.toolboxes {
		tools = append(tools, tb.Tools()...)
	}

	return tools
}

// Run executes the agent on input with middleware applied. onUpdate, when not
// nil, receives every stream update in order.
func (a *Agent) Run(ctx context.Context, input string, onUpdate modeladapter.UpdateFunc) (message.Message, error) {
	ctx = agentctx.WithAgentName(ctx, a.name)

	var runner Runner = RunnerFunc(a.run)

	// Apply middleware in reverse order so the first middleware is outermost.
	for i := len(a.options.Middleware) - 1; i >= 0; i-- {
		runner = a.options.Middleware[i](runner)
	}

	return runner.Run(ctx, input, onUpdate)
}

// run is the internal ReAct loop.
func (a *Agent) run(ctx context.Context, input string, onUpdate modeladapter.UpdateFunc) (message.Message, error) {
	if onUpdate == nil {
		onUpdate = func(modeladapter.Update) {}
	}

	c := chat.New()
	if a.instructions != "" {
		c.Append(message.NewText(a.name, role.System, a.instructions))
	}
	c.Append(message.NewText("user", role.User, input))
	a.last = c

	tools := a.Tools()

	for i := range a.options.MaxIterations {
		a.log.DebugContext(ctx, "agent completing",
			"agent", a.name,
			"iteration", i+1,
			"messages", c.Len(),
			"estimated_tokens", modeladapter.EstimateTokens(c, tools),
		)

		reply, err := a.complete(ctx, c, tools, onUpdate)
		if err != nil {
			return message.Message{}, err
		}

		reply.Sender = a.name
		c.Append(reply)

		calls := reply.ToolCalls()
		if len(calls) == 0 {
			return reply, nil
		}

		for _, tc := range calls {
			onUpdate(toolCallUpdate(tc))
			result := callTool(ctx, a.toolboxes, tc)
			c.Append(message.New(a.name, role.Tool, result))
		}
	}

	return message.Message{}, ErrMaxIterations
}

// complete streams the reply when the completer supports it. Otherwise it
// emits the finished reply as a single update.
func (a *Agent) complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool, onUpdate modeladapter.UpdateFunc) (message.Message, error) {
	if s, ok := a.completer.(modeladapter.Streamer); ok {
		return s.Stream(ctx, c, tools, onUpdate)
	}

	reply, err := a.completer.Complete(ctx, c, tools)
	if err != nil {
		return message.Message{}, err
	}

	onUpdate(replyUpdate(reply))

	return reply, nil
}

type replyPayload struct {
	Type        string         `json:"type"`
	SearchCalls []searchRecord `json:"search_calls,omitempty"`
}

type searchRecord struct {
	ID     string `json:"id,omitempty"`
	Query  string `json:"query"`
	Status string `json:"status,omitempty"`
}

func replyUpdate(reply message.Message) modeladapter.Update {
	p := replyPayload{Type: UpdateReply}
	for _, part := range reply.Parts {
		if sc, ok := part.(content.SearchCall); ok {
			p.SearchCalls = append(p.SearchCalls, searchRecord{ID: sc.ID, Query: sc.Query, Status: sc.Status})
		}
	}

	raw, _ := json.Marshal(p)

	return modeladapter.Update{Type: UpdateReply, Text: reply.TextContent(), Payload: raw}
}

type toolCallPayload struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func toolCallUpdate(tc content.ToolCall) modeladapter.Update {
	args := json.RawMessage(tc.Arguments)
	if !json.Valid(args) {
		args, _ = json.Marshal(tc.Arguments)
	}

	raw, _ := json.Marshal(toolCallPayload{Name: tc.Name, Arguments: args})

	return modeladapter.Update{Type: UpdateToolCall, Payload: raw}
}

// callTool searches all toolboxes for the named tool and executes it.
func callTool(ctx context.Context, toolboxes []*toolbox.ToolBox, tc content.ToolCall) content.ToolResult {
	for _, tb := range toolboxes {
		if t, ok := tb.Get(tc.Name); ok && !t.Hosted {
			return tb.Call(ctx, tc)
		}
	}

	return content.ToolResult{
		ToolCallID: tc.ID,
		Content:    fmt.Sprintf("tool not found: %s", tc.Name),
		IsError:    true,
	}
}
