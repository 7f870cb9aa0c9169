package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/germanamz/newsroom/pkg/newsroom"
)

// Environment variables read by DefaultConfig.
const (
	EnvEndpoint               = "AZURE_OPENAI_API_ENDPOINT"
	EnvAPIKey                 = "AZURE_OPENAI_API_KEY"
	EnvAPIVersion             = "AZURE_OPENAI_API_VERSION"
	EnvNonReasoningDeployment = "AZURE_OPENAI_NONREASONING_DEPLOYMENT_NAME"
	EnvReasoningDeployment    = "AZURE_OPENAI_REASONING_DEPLOYMENT_NAME"
	EnvBearerToken            = "AZURE_OPENAI_BEARER_TOKEN"
	EnvOpenAIKey              = "OPENAI_API_KEY"
)

// Default deployment names when the environment does not set them.
const (
	DefaultNonReasoningDeployment = "gpt-4o"
	DefaultReasoningDeployment    = "gpt-5.1"
)

// Search modes.
const (
	SearchAuto   = "auto"   // Hosted search when the provider supports it, local otherwise.
	SearchHosted = "hosted" // Hosted search only; agents on other providers get none.
	SearchLocal  = "local"  // Always the local web_search / web_fetch tools.
)

// WebSearchToolbox is the name of the built-in local web toolbox.
const WebSearchToolbox = "websearch"

// Config is the top-level engine configuration.
type Config struct {
	Providers  []ProviderConfig `yaml:"providers" toml:"providers" validate:"required,min=1,dive"`
	Agents     []AgentConfig    `yaml:"agents" toml:"agents" validate:"required,min=1,dive"`
	MCPServers []MCPConfig      `yaml:"mcp_servers,omitempty" toml:"mcp_servers,omitempty" validate:"dive"`
	Search     SearchConfig     `yaml:"search" toml:"search"`
	Workflow   WorkflowConfig   `yaml:"workflow" toml:"workflow"`
	Output     OutputConfig     `yaml:"output" toml:"output"`
}

// ProviderConfig describes a model deployment.
type ProviderConfig struct {
	Name            string  `yaml:"name" toml:"name" validate:"required"`
	Kind            string  `yaml:"kind" toml:"kind" validate:"required"`
	Endpoint        string  `yaml:"endpoint,omitempty" toml:"endpoint,omitempty" validate:"omitempty,url"`
	BaseURL         string  `yaml:"base_url,omitempty" toml:"base_url,omitempty" validate:"omitempty,url"`
	Deployment      string  `yaml:"deployment,omitempty" toml:"deployment,omitempty"`
	Model           string  `yaml:"model,omitempty" toml:"model,omitempty"`
	APIVersion      string  `yaml:"api_version,omitempty" toml:"api_version,omitempty"`
	APIKey          string  `yaml:"api_key,omitempty" toml:"api_key,omitempty"`           //nolint:gosec // configuration field, not a hardcoded secret
	BearerToken     string  `yaml:"bearer_token,omitempty" toml:"bearer_token,omitempty"` //nolint:gosec // configuration field, not a hardcoded secret
	MaxTokens       int     `yaml:"max_tokens,omitempty" toml:"max_tokens,omitempty" validate:"gte=0"`
	Temperature     float64 `yaml:"temperature,omitempty" toml:"temperature,omitempty" validate:"gte=0,lte=2"`
	ReasoningEffort string  `yaml:"reasoning_effort,omitempty" toml:"reasoning_effort,omitempty" validate:"omitempty,oneof=minimal low medium high"`
}

// Azure reports whether the provider addresses an Azure OpenAI deployment.
// Kinds registered with RegisterProvider are never Azure.
func (p ProviderConfig) Azure() bool {
	return p.Kind == "azure" || p.Kind == "azure-chat"
}

// AgentConfig describes one stage of the workflow and the agent that runs it.
type AgentConfig struct {
	Name          string   `yaml:"name" toml:"name" validate:"required"`
	Title         string   `yaml:"title" toml:"title" validate:"required"`
	Provider      string   `yaml:"provider" toml:"provider" validate:"required"`
	Instructions  string   `yaml:"instructions" toml:"instructions"`
	WebSearch     bool     `yaml:"web_search,omitempty" toml:"web_search,omitempty"`
	Toolboxes     []string `yaml:"toolboxes,omitempty" toml:"toolboxes,omitempty"`
	Verdict       string   `yaml:"verdict,omitempty" toml:"verdict,omitempty" validate:"omitempty,oneof=none approval completion"`
	Draft         bool     `yaml:"draft,omitempty" toml:"draft,omitempty"`
	Article       bool     `yaml:"article,omitempty" toml:"article,omitempty"`
	MaxIterations int      `yaml:"max_iterations,omitempty" toml:"max_iterations,omitempty" validate:"gte=0"`
	Timeout       string   `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
}

// MCPConfig describes an MCP server whose tools agents can use.
type MCPConfig struct {
	Name    string            `yaml:"name" toml:"name" validate:"required"`
	Command string            `yaml:"command" toml:"command" validate:"required"`
	Args    []string          `yaml:"args,omitempty" toml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" toml:"env,omitempty"`
}

// SearchConfig selects how agents with web_search get their search tool.
type SearchConfig struct {
	Mode       string `yaml:"mode" toml:"mode" validate:"omitempty,oneof=auto hosted local"`
	MaxResults int    `yaml:"max_results,omitempty" toml:"max_results,omitempty" validate:"gte=0"`
}

// WorkflowConfig controls revision rounds.
type WorkflowConfig struct {
	Rounds   int    `yaml:"rounds" toml:"rounds" validate:"gte=0,lte=10"`
	LoopFrom string `yaml:"loop_from,omitempty" toml:"loop_from,omitempty"`
}

// OutputConfig controls transcript output.
type OutputConfig struct {
	Dir  string `yaml:"dir,omitempty" toml:"dir,omitempty"`
	Diff bool   `yaml:"diff,omitempty" toml:"diff,omitempty"`
}

// Default agent instructions.
const (
	researcherInstructions = "You are a research agent. You always use the web search tool to find relevant, current information that could enhance the article. Do not write the article, but rather provide specific facts, statistics, quotes from experts, or recent developments that the writer should incorporate.  Include citations with full links for all information found."
	writerInstructions     = "You are a high-quality journalist who writes compelling articles. Based on the article requirements provided and related research, write a complete first draft. Write an actual article with an introduction, body paragraphs, and conclusion - NOT just bullet points or an outline. Make it engaging and well-structured."
	editorInstructions     = "You are an expert editor. Review the article draft and the research provided. Give specific editorial feedback on structure, clarity, flow, and content. Suggest improvements and identify any gaps that need to be filled."
	revisionInstructions   = "You are the writer making revisions. Review your original draft, the research findings, and the editor's feedback. Write an improved, complete version of the article that incorporates the research and addresses the editorial suggestions. Output the full revised article."
	verifierInstructions   = "You are a fact-checker. Verify the key claims and facts in the revised article using web search. Explicitly state whether you APPROVE or REJECT the article based on accuracy. If you find inaccuracies, list them specifically."
	reviewerInstructions   = "You are the final reviewer. Check if the article meets all requirements: (1) it's a complete, well-written article (not bullet points), (2) it has been fact-checked and approved by the verifier, (3) it addresses the original requirements. If all conditions are met, declare the article COMPLETE and ready for publication. Otherwise, state what's missing."
)

// DefaultConfig returns the six-agent newsroom on two Azure OpenAI
// deployments, filled from the environment.
func DefaultConfig() Config {
	azure := func(name, deploymentEnv, fallback string) ProviderConfig {
		return ProviderConfig{
			Name:        name,
			Kind:        "azure",
			Endpoint:    os.Getenv(EnvEndpoint),
			Deployment:  getenv(deploymentEnv, fallback),
			APIVersion:  os.Getenv(EnvAPIVersion),
			APIKey:      os.Getenv(EnvAPIKey),
			BearerToken: os.Getenv(EnvBearerToken),
		}
	}

	cfg := Config{
		Providers: []ProviderConfig{
			azure("nonreasoning", EnvNonReasoningDeployment, DefaultNonReasoningDeployment),
			azure("reasoning", EnvReasoningDeployment, DefaultReasoningDeployment),
		},
		Agents: []AgentConfig{
			{Name: "web_search_agent", Title: "Web Search Researcher", Provider: "nonreasoning", Instructions: researcherInstructions, WebSearch: true},
			{Name: "writer_agent", Title: "Writer", Provider: "nonreasoning", Instructions: writerInstructions, Draft: true},
			{Name: "editor_agent", Title: "Editor", Provider: "reasoning", Instructions: editorInstructions},
			{Name: "writer_revision_agent", Title: "Writer Revision", Provider: "reasoning", Instructions: revisionInstructions, Article: true},
			{Name: "verifier_agent", Title: "Verifier", Provider: "nonreasoning", Instructions: verifierInstructions, WebSearch: true, Verdict: "approval"},
			{Name: "final_review_agent", Title: "Final Reviewer", Provider: "nonreasoning", Instructions: reviewerInstructions, Verdict: "completion"},
		},
		Workflow: WorkflowConfig{LoopFrom: "editor_agent"},
	}
	cfg.applyDefaults()

	return cfg
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file and returns a
// Config. Environment variables referenced as ${VAR} or $VAR are expanded
// before parsing, so secrets can stay in the environment (e.g. a .env file).
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(expanded, &cfg)
	case ".toml":
		err = toml.Unmarshal(expanded, &cfg)
	default:
		return Config{}, fmt.Errorf("engine: load config: unsupported extension %q", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

// Redacted returns a copy of the configuration with secrets masked.
func (c Config) Redacted() Config {
	out := c
	out.Providers = make([]ProviderConfig, len(c.Providers))
	for i, p := range c.Providers {
		if p.APIKey != "" {
			p.APIKey = "***"
		}
		if p.BearerToken != "" {
			p.BearerToken = "***"
		}
		out.Providers[i] = p
	}

	return out
}

func (c *Config) applyDefaults() {
	if c.Search.Mode == "" {
		c.Search.Mode = SearchAuto
	}
	if c.Workflow.Rounds == 0 {
		c.Workflow.Rounds = 1
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is internally consistent and that
// every provider has what it needs to connect.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("engine: config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("engine: config: %w", err)
	}

	providers := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if _, dup := providers[p.Name]; dup {
			return fmt.Errorf("engine: config: duplicate provider name %q", p.Name)
		}
		providers[p.Name] = struct{}{}

		if _, ok := getFactory(p.Kind); !ok {
			return fmt.Errorf("engine: config: provider %q: unknown kind %q", p.Name, p.Kind)
		}
		if err := p.checkCredentials(); err != nil {
			return err
		}
	}

	toolboxes := map[string]struct{}{WebSearchToolbox: {}}
	for _, m := range c.MCPServers {
		if _, dup := toolboxes[m.Name]; dup {
			return fmt.Errorf("engine: config: duplicate toolbox name %q", m.Name)
		}
		toolboxes[m.Name] = struct{}{}
	}

	agents := make(map[string]struct{}, len(c.Agents))
	var drafts, articles int
	for _, a := range c.Agents {
		if _, dup := agents[a.Name]; dup {
			return fmt.Errorf("engine: config: duplicate agent name %q", a.Name)
		}
		agents[a.Name] = struct{}{}

		if _, ok := providers[a.Provider]; !ok {
			return fmt.Errorf("engine: config: agent %q: unknown provider %q", a.Name, a.Provider)
		}
		for _, tb := range a.Toolboxes {
			if _, ok := toolboxes[tb]; !ok {
				return fmt.Errorf("engine: config: agent %q: unknown toolbox %q", a.Name, tb)
			}
		}
		if _, ok := newsroom.ParseVerdict(a.Verdict); !ok {
			return fmt.Errorf("engine: config: agent %q: unknown verdict %q", a.Name, a.Verdict)
		}
		if a.Timeout != "" {
			if d, err := time.ParseDuration(a.Timeout); err != nil || d <= 0 {
				return fmt.Errorf("engine: config: agent %q: invalid timeout %q", a.Name, a.Timeout)
			}
		}
		if a.Draft {
			drafts++
		}
		if a.Article {
			articles++
		}
	}

	if drafts > 1 {
		return errors.New("engine: config: at most one agent can be the draft")
	}
	if articles > 1 {
		return errors.New("engine: config: at most one agent can be the article")
	}

	if c.Workflow.LoopFrom != "" {
		if _, ok := agents[c.Workflow.LoopFrom]; !ok {
			return fmt.Errorf("engine: config: workflow.loop_from %q not found in agents", c.Workflow.LoopFrom)
		}
	}

	return nil
}

func (p ProviderConfig) checkCredentials() error {
	if p.Azure() {
		if p.Endpoint == "" {
			return fmt.Errorf("engine: config: provider %q: endpoint is required (set %s)", p.Name, EnvEndpoint)
		}
		if p.Deployment == "" {
			return fmt.Errorf("engine: config: provider %q: deployment is required", p.Name)
		}
		if p.APIKey == "" && p.BearerToken == "" {
			return fmt.Errorf("engine: config: provider %q: no credential (set %s or %s)", p.Name, EnvAPIKey, EnvBearerToken)
		}
		return nil
	}
	if p.Kind != "openai" && p.Kind != "openai-chat" {
		return nil
	}

	if p.Model == "" {
		return fmt.Errorf("engine: config: provider %q: model is required", p.Name)
	}
	if p.APIKey == "" {
		return fmt.Errorf("engine: config: provider %q: api_key is required (set %s)", p.Name, EnvOpenAIKey)
	}

	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Namespace(), fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s%s", fe.Namespace(), fe.Tag(), paramSuffix(fe.Param()))
	}
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}

	return "=" + p
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
