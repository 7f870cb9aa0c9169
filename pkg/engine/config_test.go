package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
providers:
  - name: fast
    kind: azure
    endpoint: https://newsroom.openai.azure.com
    deployment: gpt-4o
    api_version: 2025-04-01-preview
    api_key: ${NEWSROOM_TEST_KEY}
    max_tokens: 4096
  - name: deep
    kind: azure
    endpoint: https://newsroom.openai.azure.com
    deployment: gpt-5.1
    api_key: ${NEWSROOM_TEST_KEY}
    reasoning_effort: medium

mcp_servers:
  - name: archive
    command: archive-mcp
    args: ["--readonly"]

agents:
  - name: researcher
    title: Researcher
    provider: fast
    instructions: Find facts.
    web_search: true
    toolboxes: [archive]
  - name: writer
    title: Writer
    provider: deep
    instructions: Write it.
    draft: true
    article: true
    timeout: 2m
  - name: reviewer
    title: Final Reviewer
    provider: fast
    verdict: completion

search:
  mode: local
  max_results: 3

workflow:
  rounds: 2
  loop_from: writer

output:
  dir: runs
  diff: true
`

const sampleTOML = `
[[providers]]
name = "fast"
kind = "openai-chat"
base_url = "http://localhost:8080/v1"
model = "llama3"
api_key = "${NEWSROOM_TEST_KEY}"

[[agents]]
name = "writer"
title = "Writer"
provider = "fast"
instructions = "Write it."
`

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	t.Setenv("NEWSROOM_TEST_KEY", "key-from-env")

	cfg, err := LoadConfig(writeFile(t, "newsroom.yaml", sampleYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "key-from-env", cfg.Providers[0].APIKey)
	assert.Equal(t, 4096, cfg.Providers[0].MaxTokens)
	assert.Equal(t, "medium", cfg.Providers[1].ReasoningEffort)

	require.Len(t, cfg.MCPServers, 1)
	assert.Equal(t, []string{"--readonly"}, cfg.MCPServers[0].Args)

	require.Len(t, cfg.Agents, 3)
	assert.True(t, cfg.Agents[0].WebSearch)
	assert.Equal(t, []string{"archive"}, cfg.Agents[0].Toolboxes)
	assert.Equal(t, "2m", cfg.Agents[1].Timeout)
	assert.Equal(t, "completion", cfg.Agents[2].Verdict)

	assert.Equal(t, SearchLocal, cfg.Search.Mode)
	assert.Equal(t, 3, cfg.Search.MaxResults)
	assert.Equal(t, 2, cfg.Workflow.Rounds)
	assert.Equal(t, "writer", cfg.Workflow.LoopFrom)
	assert.Equal(t, OutputConfig{Dir: "runs", Diff: true}, cfg.Output)
}

func TestLoadConfig_TOML(t *testing.T) {
	t.Setenv("NEWSROOM_TEST_KEY", "sk-toml")

	cfg, err := LoadConfig(writeFile(t, "newsroom.toml", sampleTOML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "openai-chat", cfg.Providers[0].Kind)
	assert.Equal(t, "sk-toml", cfg.Providers[0].APIKey)
	assert.Equal(t, "Write it.", cfg.Agents[0].Instructions)
	assert.Equal(t, SearchAuto, cfg.Search.Mode)
	assert.Equal(t, 1, cfg.Workflow.Rounds)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig("/no/such/file.yaml")
	assert.ErrorContains(t, err, "engine: load config")

	_, err = LoadConfig(writeFile(t, "newsroom.json", `{}`))
	assert.ErrorContains(t, err, `unsupported extension ".json"`)

	_, err = LoadConfig(writeFile(t, "newsroom.yaml", "providers: [unclosed"))
	assert.ErrorContains(t, err, "engine: parse config")
}

func setAzureEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvEndpoint, "https://newsroom.openai.azure.com/")
	t.Setenv(EnvAPIKey, "azure-key")
	t.Setenv(EnvAPIVersion, "2025-04-01-preview")
	t.Setenv(EnvBearerToken, "")
	t.Setenv(EnvNonReasoningDeployment, "")
	t.Setenv(EnvReasoningDeployment, "")
}

func TestDefaultConfig(t *testing.T) {
	setAzureEnv(t)

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, DefaultNonReasoningDeployment, cfg.Providers[0].Deployment)
	assert.Equal(t, DefaultReasoningDeployment, cfg.Providers[1].Deployment)
	assert.Equal(t, "azure-key", cfg.Providers[0].APIKey)

	titles := make([]string, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{
		"Web Search Researcher", "Writer", "Editor", "Writer Revision", "Verifier", "Final Reviewer",
	}, titles)

	assert.True(t, cfg.Agents[0].WebSearch)
	assert.True(t, cfg.Agents[4].WebSearch)
	assert.Equal(t, "approval", cfg.Agents[4].Verdict)
	assert.Equal(t, "completion", cfg.Agents[5].Verdict)
	assert.Equal(t, "reasoning", cfg.Agents[2].Provider)
	assert.Contains(t, cfg.Agents[5].Instructions, "declare the article COMPLETE")
	assert.Equal(t, 1, cfg.Workflow.Rounds)
}

func TestDefaultConfig_DeploymentsFromEnv(t *testing.T) {
	setAzureEnv(t)
	t.Setenv(EnvNonReasoningDeployment, "news-4o")
	t.Setenv(EnvReasoningDeployment, "news-reasoner")

	cfg := DefaultConfig()
	assert.Equal(t, "news-4o", cfg.Providers[0].Deployment)
	assert.Equal(t, "news-reasoner", cfg.Providers[1].Deployment)
}

func TestDefaultConfig_MissingEnv(t *testing.T) {
	setAzureEnv(t)
	t.Setenv(EnvEndpoint, "")

	err := DefaultConfig().Validate()
	assert.ErrorContains(t, err, EnvEndpoint)

	setAzureEnv(t)
	t.Setenv(EnvAPIKey, "")

	err = DefaultConfig().Validate()
	assert.ErrorContains(t, err, EnvAPIKey)

	t.Setenv(EnvBearerToken, "token")
	assert.NoError(t, DefaultConfig().Validate())
}

func validConfig() Config {
	return Config{
		Providers: []ProviderConfig{{Name: "p", Kind: "openai", Model: "gpt-4o", APIKey: "sk"}},
		Agents:    []AgentConfig{{Name: "writer", Title: "Writer", Provider: "p"}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no providers", func(c *Config) { c.Providers = nil }, "Config.Providers is required"},
		{"no agents", func(c *Config) { c.Agents = nil }, "Config.Agents is required"},
		{"unknown kind", func(c *Config) { c.Providers[0].Kind = "bard" }, `unknown kind "bard"`},
		{"duplicate provider", func(c *Config) { c.Providers = append(c.Providers, c.Providers[0]) }, `duplicate provider name "p"`},
		{"missing model", func(c *Config) { c.Providers[0].Model = "" }, "model is required"},
		{"missing key", func(c *Config) { c.Providers[0].APIKey = "" }, EnvOpenAIKey},
		{"bad effort", func(c *Config) { c.Providers[0].ReasoningEffort = "extreme" }, "must be one of [minimal low medium high]"},
		{"unknown provider", func(c *Config) { c.Agents[0].Provider = "q" }, `unknown provider "q"`},
		{"missing title", func(c *Config) { c.Agents[0].Title = "" }, "Config.Agents[0].Title is required"},
		{"duplicate agent", func(c *Config) { c.Agents = append(c.Agents, c.Agents[0]) }, `duplicate agent name "writer"`},
		{"unknown toolbox", func(c *Config) { c.Agents[0].Toolboxes = []string{"archive"} }, `unknown toolbox "archive"`},
		{"bad verdict", func(c *Config) { c.Agents[0].Verdict = "vote" }, "Verdict must be one of"},
		{"bad timeout", func(c *Config) { c.Agents[0].Timeout = "soon" }, `invalid timeout "soon"`},
		{"two drafts", func(c *Config) {
			c.Agents[0].Draft = true
			c.Agents = append(c.Agents, AgentConfig{Name: "b", Title: "B", Provider: "p", Draft: true})
		}, "at most one agent can be the draft"},
		{"two articles", func(c *Config) {
			c.Agents[0].Article = true
			c.Agents = append(c.Agents, AgentConfig{Name: "b", Title: "B", Provider: "p", Article: true})
		}, "at most one agent can be the article"},
		{"loop from", func(c *Config) { c.Workflow.LoopFrom = "editor" }, `loop_from "editor" not found`},
		{"search mode", func(c *Config) { c.Search.Mode = "sometimes" }, "Mode must be one of"},
		{"mcp command", func(c *Config) { c.MCPServers = []MCPConfig{{Name: "archive"}} }, "Command is required"},
		{"mcp shadows websearch", func(c *Config) {
			c.MCPServers = []MCPConfig{{Name: WebSearchToolbox, Command: "x"}}
		}, `duplicate toolbox name "websearch"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	cfg.Agents[0].Toolboxes = []string{WebSearchToolbox}
	assert.NoError(t, cfg.Validate())
}

func TestRedacted(t *testing.T) {
	cfg := validConfig()
	cfg.Providers[0].BearerToken = "tok"

	red := cfg.Redacted()
	assert.Equal(t, "***", red.Providers[0].APIKey)
	assert.Equal(t, "***", red.Providers[0].BearerToken)
	assert.Equal(t, "sk", cfg.Providers[0].APIKey)
}
