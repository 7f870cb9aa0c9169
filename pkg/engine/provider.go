package engine

import (
	"fmt"
	"sync"

	"github.com/germanamz/newsroom/pkg/modeladapter"
	"github.com/germanamz/newsroom/pkg/providers/chatcompletions"
	"github.com/germanamz/newsroom/pkg/providers/openai"
)

// ProviderFactory creates a Completer from a ProviderConfig.
type ProviderFactory func(cfg ProviderConfig) (modeladapter.Completer, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]ProviderFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories["azure"] = newAzureResponses
		factories["openai"] = newOpenAIResponses
		factories["azure-chat"] = newAzureChat
		factories["openai-chat"] = newOpenAIChat
	})
}

// RegisterProvider registers a custom provider factory under the given kind.
// It can be called before New to extend the engine with additional providers
// or to replace a built-in one.
func RegisterProvider(kind string, factory ProviderFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

// getFactory returns the factory for the given kind.
func getFactory(kind string) (ProviderFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func newAzureResponses(cfg ProviderConfig) (modeladapter.Completer, error) {
	a := openai.NewAzure(openai.AzureConfig{
		Endpoint:    cfg.Endpoint,
		Deployment:  cfg.Deployment,
		APIVersion:  cfg.APIVersion,
		APIKey:      cfg.APIKey,
		BearerToken: cfg.BearerToken,
	})
	a.MaxTokens = cfg.MaxTokens
	a.Temperature = cfg.Temperature
	a.ReasoningEffort = cfg.ReasoningEffort

	return a, nil
}

func newOpenAIResponses(cfg ProviderConfig) (modeladapter.Completer, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	a := openai.New(baseURL, cfg.APIKey, cfg.Model)
	a.MaxTokens = cfg.MaxTokens
	a.Temperature = cfg.Temperature
	a.ReasoningEffort = cfg.ReasoningEffort

	return a, nil
}

func newAzureChat(cfg ProviderConfig) (modeladapter.Completer, error) {
	a := chatcompletions.NewAzure(chatcompletions.AzureConfig{
		Endpoint:    cfg.Endpoint,
		Deployment:  cfg.Deployment,
		APIVersion:  cfg.APIVersion,
		APIKey:      cfg.APIKey,
		BearerToken: cfg.BearerToken,
	})
	a.MaxTokens = cfg.MaxTokens
	a.Temperature = cfg.Temperature

	return a, nil
}

func newOpenAIChat(cfg ProviderConfig) (modeladapter.Completer, error) {
	a := chatcompletions.New(cfg.BaseURL, cfg.APIKey, cfg.Model)
	a.MaxTokens = cfg.MaxTokens
	a.Temperature = cfg.Temperature

	return a, nil
}

// buildCompleter creates a Completer from a ProviderConfig using the registered
// factory for its Kind.
func buildCompleter(cfg ProviderConfig) (modeladapter.Completer, error) {
	factory, ok := getFactory(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("engine: unknown provider kind %q", cfg.Kind)
	}

	return factory(cfg)
}
