// Package agentctx carries run metadata through a context: the name of the
// agent being run and the revision round of the pipeline. It has no
// dependencies so pkg/agent and pkg/newsroom can both import it.
package agentctx

import "context"

type (
	agentNameKey struct{}
	roundKey     struct{}
)

// WithAgentName returns a new context carrying the given agent name.
func WithAgentName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, agentNameKey{}, name)
}

// AgentName extracts the agent name from the context, or "" when unset.
func AgentName(ctx context.Context) string {
	v, _ := ctx.Value(agentNameKey{}).(string)
	return v
}

// WithRound returns a new context carrying the 1-based revision round.
func WithRound(ctx context.Context, round int) context.Context {
	return context.WithValue(ctx, roundKey{}, round)
}

// Round extracts the revision round from the context, or 0 when unset.
func Round(ctx context.Context) int {
	v, _ := ctx.Value(roundKey{}).(int)
	return v
}
