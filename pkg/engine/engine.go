package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/germanamz/newsroom/pkg/agent"
	"github.com/germanamz/newsroom/pkg/modeladapter"
	"github.com/germanamz/newsroom/pkg/newsroom"
	"github.com/germanamz/newsroom/pkg/tools/mcpclient"
	"github.com/germanamz/newsroom/pkg/tools/toolbox"
	"github.com/germanamz/newsroom/pkg/tools/websearch"
)

// envList flattens env into KEY=VALUE pairs sorted by key.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}

	pairs := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		pairs = append(pairs, k+"="+env[k])
	}

	return pairs
}

// Engine owns the assembled newsroom. Runs are serialized.
type Engine struct {
	cfg        Config
	log        *slog.Logger
	completers map[string]modeladapter.Completer
	toolboxes  map[string]*toolbox.ToolBox
	hosted     *toolbox.ToolBox
	mcpClients []*mcpclient.MCPClient
	agents     []*agent.Agent
	pipeline   *newsroom.Pipeline

	mu sync.Mutex
}

// New creates an Engine from the given configuration. It validates the config,
// creates provider adapters, connects MCP servers and assembles the agents in
// roster order. log may be nil.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Engine{
		cfg:        cfg,
		log:        log,
		completers: make(map[string]modeladapter.Completer, len(cfg.Providers)),
		toolboxes:  make(map[string]*toolbox.ToolBox),
		hosted:     toolbox.New(),
	}
	e.hosted.Register(toolbox.NewHosted(toolbox.HostedWebSearch))

	// Build provider completers.
	for _, pc := range cfg.Providers {
		c, err := buildCompleter(pc)
		if err != nil {
			return nil, fmt.Errorf("engine: provider %q: %w", pc.Name, err)
		}
		e.completers[pc.Name] = c
	}

	e.toolboxes[WebSearchToolbox] = websearch.New(websearch.Options{MaxResults: cfg.Search.MaxResults}).Tools()

	// Connect MCP clients and build toolboxes.
	for _, mc := range cfg.MCPServers {
		client, err := mcpclient.Connect(ctx, mcpclient.Server{
			Name:    mc.Name,
			Command: mc.Command,
			Args:    mc.Args,
			Env:     envList(mc.Env),
		})
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("engine: mcp %q: %w", mc.Name, err)
		}
		e.mcpClients = append(e.mcpClients, client)

		tb, err := client.ToolBox(ctx)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("engine: mcp %q: %w", mc.Name, err)
		}
		e.toolboxes[mc.Name] = tb
	}

	stages := make([]newsroom.Stage, 0, len(cfg.Agents))
	loopFrom := 0
	for i, ac := range cfg.Agents {
		a, err := e.buildAgent(ac)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.agents = append(e.agents, a)

		verdict, _ := newsroom.ParseVerdict(ac.Verdict)
		stages = append(stages, newsroom.Stage{
			Title:   ac.Title,
			Agent:   ac.Name,
			Runner:  a,
			Verdict: verdict,
			Draft:   ac.Draft,
			Article: ac.Article,
		})

		if ac.Name == cfg.Workflow.LoopFrom {
			loopFrom = i
		}
	}

	e.pipeline = &newsroom.Pipeline{
		Stages:   stages,
		Rounds:   cfg.Workflow.Rounds,
		LoopFrom: loopFrom,
		Logger:   log,
	}

	return e, nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() Config { return e.cfg }

// Agents returns the agents in roster order.
func (e *Engine) Agents() []*agent.Agent { return e.agents }

// Pipeline returns the assembled pipeline.
func (e *Engine) Pipeline() *newsroom.Pipeline { return e.pipeline }

// Run executes the workflow for requirements and logs token usage per
// provider when it ends.
func (e *Engine) Run(ctx context.Context, requirements string, obs newsroom.Observer) (newsroom.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.pipeline.Run(ctx, requirements, obs)
	e.logUsage(ctx)

	return res, err
}

// Close shuts down MCP clients and releases resources.
func (e *Engine) Close() error {
	var firstErr error
	for _, c := range e.mcpClients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// buildAgent creates the agent for one roster entry.
func (e *Engine) buildAgent(ac AgentConfig) (*agent.Agent, error) {
	completer, ok := e.completers[ac.Provider]
	if !ok {
		return nil, fmt.Errorf("engine: agent %q: provider %q not found", ac.Name, ac.Provider)
	}

	var tbs []*toolbox.ToolBox
	seen := map[*toolbox.ToolBox]struct{}{}
	add := func(tb *toolbox.ToolBox) {
		if _, dup := seen[tb]; tb == nil || dup {
			return
		}
		seen[tb] = struct{}{}
		tbs = append(tbs, tb)
	}

	if ac.WebSearch {
		add(e.searchToolbox(ac, completer))
	}

	for _, name := range ac.Toolboxes {
		tb, ok := e.toolboxes[name]
		if !ok {
			return nil, fmt.Errorf("engine: agent %q: toolbox %q not found", ac.Name, name)
		}
		add(tb)
	}

	mw := []agent.Middleware{agent.Recovery(), agent.Logger(e.log, ac.Name)}
	if ac.Timeout != "" {
		d, err := time.ParseDuration(ac.Timeout)
		if err != nil {
			return nil, fmt.Errorf("engine: agent %q: timeout: %w", ac.Name, err)
		}
		mw = append(mw, agent.Timeout(d))
	}

	a := agent.New(ac.Name, ac.Title, ac.Instructions, completer, agent.Options{
		MaxIterations: ac.MaxIterations,
		Middleware:    mw,
		Logger:        e.log,
	})
	a.AddToolBoxes(tbs...)

	return a, nil
}

// searchToolbox picks the search tools for an agent that asks for web search.
func (e *Engine) searchToolbox(ac AgentConfig, c modeladapter.Completer) *toolbox.ToolBox {
	hosted := modeladapter.SupportsHosted(c, toolbox.HostedWebSearch)

	switch e.cfg.Search.Mode {
	case SearchLocal:
		return e.toolboxes[WebSearchToolbox]
	case SearchHosted:
		if !hosted {
			e.log.Warn("provider has no hosted web search, agent runs without search",
				"agent", ac.Name, "provider", ac.Provider)
			return nil
		}
		return e.hosted
	default:
		if hosted {
			return e.hosted
		}
		return e.toolboxes[WebSearchToolbox]
	}
}

func (e *Engine) logUsage(ctx context.Context) {
	for _, pc := range e.cfg.Providers {
		c := e.completers[pc.Name]

		if ur, ok := c.(modeladapter.UsageReporter); ok {
			tr := ur.UsageTracker()
			if tr.Count() > 0 {
				total := tr.Total()
				e.log.InfoContext(ctx, "token usage",
					"provider", pc.Name,
					"calls", tr.Count(),
					"input_tokens", total.InputTokens,
					"output_tokens", total.OutputTokens,
					"reasoning_tokens", total.ReasoningTokens,
				)
			}
		}

		if rr, ok := c.(modeladapter.RateLimitInfoReporter); ok {
			if info := rr.LastRateLimitInfo(); info != nil {
				e.log.DebugContext(ctx, "rate limit",
					"provider", pc.Name,
					"remaining_requests", info.RemainingRequests,
					"remaining_tokens", info.RemainingTokens,
					"requests_reset", info.RequestsReset,
					"tokens_reset", info.TokensReset,
				)
			}
		}
	}
}

// writeArticleSchema is the input schema of the write_article tool.
var writeArticleSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"requirements": {
			"type": "string",
			"description": "Topic, key questions and starting points for the article."
		}
	},
	"required": ["requirements"]
}`)

type writeArticleInput struct {
	Requirements string `json:"requirements"`
}

type writeArticleOutput struct {
	RunID    string `json:"run_id"`
	Article  string `json:"article"`
	Approved bool   `json:"approved"`
	Complete bool   `json:"complete"`
	Rounds   int    `json:"rounds"`
}

// Tools returns a toolbox exposing the whole workflow as the write_article
// tool.
func (e *Engine) Tools() *toolbox.ToolBox {
	tb := toolbox.New()
	tb.Register(toolbox.Tool{
		Name:        "write_article",
		Description: "Research, draft, edit, fact-check and review a news article. Returns the final article and the review outcome.",
		InputSchema: writeArticleSchema,
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in writeArticleInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("write_article: invalid input: %w", err)
			}

			res, err := e.Run(ctx, in.Requirements, nil)
			if err != nil {
				return "", err
			}

			out := writeArticleOutput{
				RunID:    res.RunID,
				Article:  res.Article,
				Approved: res.Approved,
				Complete: res.Complete,
				Rounds:   res.Rounds,
			}
			if out.Article == "" && len(res.Turns) > 0 {
				out.Article = res.Turns[len(res.Turns)-1].Text
			}

			raw, err := json.Marshal(out)
			if err != nil {
				return "", fmt.Errorf("write_article: %w", err)
			}

			return string(raw), nil
		},
	})

	return tb
}
