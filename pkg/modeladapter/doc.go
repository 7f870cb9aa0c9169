// Package modeladapter defines the interfaces and shared HTTP plumbing for LLM
// completion adapters.
//
// It contains:
//   - [Completer] and [Streamer] interfaces implemented by concrete providers
//   - embeddable [ModelAdapter] base struct with auth, query parameters, custom
//     headers, JSON and server-sent-event helpers
//   - typed provider errors ([RateLimitError], [APIError])
//   - [github.com/germanamz/newsroom/pkg/modeladapter/usage]: thread-safe token usage tracker
//
// This package contains no provider-specific code. Requests are sent exactly
// once; failures are surfaced to the caller.
package modeladapter
