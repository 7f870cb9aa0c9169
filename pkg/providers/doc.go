// Package providers groups the LLM completion providers.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/newsroom/pkg/providers/openai]: Responses API adapter for OpenAI and Azure OpenAI, with hosted web search and streaming
//   - [github.com/germanamz/newsroom/pkg/providers/chatcompletions]: Chat Completions adapter built on go-openai, function tools only
//
// Both adapters implement [github.com/germanamz/newsroom/pkg/modeladapter.Completer]
// and [github.com/germanamz/newsroom/pkg/modeladapter.Streamer].
package providers
