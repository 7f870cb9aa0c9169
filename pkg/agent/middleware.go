package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/germanamz/newsroom/pkg/agentctx"
	"github.com/germanamz/newsroom/pkg/chats/message"
	"github.com/germanamz/newsroom/pkg/modeladapter"
)

// Runner executes agent logic and returns the final message.
type Runner interface {
	Run(ctx context.Context, input string, onUpdate modeladapter.UpdateFunc) (message.Message, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, input string, onUpdate modeladapter.UpdateFunc) (message.Message, error)

// Run calls the underlying function.
func (f RunnerFunc) Run(ctx context.Context, input string, onUpdate modeladapter.UpdateFunc) (message.Message, error) {
	return f(ctx, input, onUpdate)
}

// Middleware wraps a Runner, returning a new Runner with added behaviour.
type Middleware func(next Runner) Runner

// --- Timeout middleware ---

// Timeout returns a Middleware that wraps the runner's context with a deadline.
func Timeout(d time.Duration) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, input string, onUpdate modeladapter.UpdateFunc) (message.Message, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			return next.Run(ctx, input, onUpdate)
		})
	}
}

// --- Recovery middleware ---

// Recovery returns a Middleware that catches panics and converts them to errors.
func Recovery() Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, input string, onUpdate modeladapter.UpdateFunc) (msg message.Message, err error) {
			defer func() {
				if r := recover(); r != nil {
					if name := agentctx.AgentName(ctx); name != "" {
						err = fmt.Errorf("agent %s panicked: %v", name, r)
						return
					}
					err = fmt.Errorf("agent panicked: %v", r)
				}
			}()

			return next.Run(ctx, input, onUpdate)
		})
	}
}

// --- Logger middleware ---

// Logger returns a Middleware that logs agent start, duration, and error.
func Logger(log *slog.Logger, name string) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, input string, onUpdate modeladapter.UpdateFunc) (message.Message, error) {
			l := log
			if round := agentctx.Round(ctx); round > 0 {
				l = log.With("round", round)
			}

			l.InfoContext(ctx, "agent started", "agent", name, "input_chars", len(input))

			start := time.Now()

			msg, err := next.Run(ctx, input, onUpdate)

			duration := time.Since(start)

			if err != nil {
				l.ErrorContext(ctx, "agent finished with error",
					"agent", name,
					"duration", duration,
					"error", err,
				)
			} else {
				l.InfoContext(ctx, "agent finished",
					"agent", name,
					"duration", duration,
				)
			}

			return msg, err
		})
	}
}
