// Package chats provides a provider-agnostic data model for the conversations
// the newsroom agents hold with a model deployment.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/newsroom/pkg/chats/role]: conversation roles (system, user, assistant, tool)
//   - [github.com/germanamz/newsroom/pkg/chats/content]: content parts (text, tool call/result, hosted search, citation)
//   - [github.com/germanamz/newsroom/pkg/chats/message]: messages composed of a role, sender, and content parts
//   - [github.com/germanamz/newsroom/pkg/chats/chat]: mutable conversation container
//
// No provider or API code is included here.
package chats
