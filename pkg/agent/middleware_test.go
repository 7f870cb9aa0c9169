package agent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/germanamz/newsroom/pkg/agentctx"
	"github.com/germanamz/newsroom/pkg/chats/message"
	"github.com/germanamz/newsroom/pkg/chats/role"
	"github.com/germanamz/newsroom/pkg/modeladapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- test helpers ---

func stubRunner(msg message.Message, err error) Runner {
	return RunnerFunc(func(_ context.Context, _ string, _ modeladapter.UpdateFunc) (message.Message, error) {
		return msg, err
	})
}

func panicRunner() Runner {
	return RunnerFunc(func(_ context.Context, _ string, _ modeladapter.UpdateFunc) (message.Message, error) {
		panic("something went wrong")
	})
}

func slowRunner(delay time.Duration) Runner {
	return RunnerFunc(func(ctx context.Context, _ string, _ modeladapter.UpdateFunc) (message.Message, error) {
		select {
		case <-time.After(delay):
			return message.NewText("bot", role.Assistant, "done"), nil
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		}
	})
}

// --- Timeout tests ---

func TestTimeout(t *testing.T) {
	inner := stubRunner(message.NewText("bot", role.Assistant, "done"), nil)

	wrapped := Timeout(time.Second)(inner)
	msg, err := wrapped.Run(context.Background(), "go", nil)

	require.NoError(t, err)
	assert.Equal(t, "done", msg.TextContent())
}

func TestTimeoutExpires(t *testing.T) {
	wrapped := Timeout(50 * time.Millisecond)(slowRunner(200 * time.Millisecond))
	_, err := wrapped.Run(context.Background(), "go", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- Recovery tests ---

func TestRecovery(t *testing.T) {
	inner := stubRunner(message.NewText("bot", role.Assistant, "ok"), nil)

	wrapped := Recovery()(inner)
	msg, err := wrapped.Run(context.Background(), "go", nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", msg.TextContent())
}

func TestRecoveryCatchesPanic(t *testing.T) {
	wrapped := Recovery()(panicRunner())
	msg, err := wrapped.Run(context.Background(), "go", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent panicked")
	assert.Contains(t, err.Error(), "something went wrong")
	assert.Equal(t, message.Message{}, msg)
}

// --- Logger tests ---

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	inner := stubRunner(message.NewText("bot", role.Assistant, "reply"), nil)

	wrapped := Logger(log, "Research Analyst")(inner)
	msg, err := wrapped.Run(context.Background(), "draft", nil)

	require.NoError(t, err)
	assert.Equal(t, "reply", msg.TextContent())

	output := buf.String()
	assert.Contains(t, output, "agent started")
	assert.Contains(t, output, "agent finished")
	assert.Contains(t, output, "Research Analyst")
	assert.Contains(t, output, "input_chars=5")
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	inner := stubRunner(message.Message{}, errors.New("boom"))

	wrapped := Logger(log, "err-agent")(inner)
	_, err := wrapped.Run(context.Background(), "", nil)

	require.Error(t, err)
	output := buf.String()
	assert.Contains(t, output, "agent finished with error")
	assert.Contains(t, output, "boom")
}

func TestRecoveryNamesAgent(t *testing.T) {
	ctx := agentctx.WithAgentName(context.Background(), "editor_agent")

	_, err := Recovery()(panicRunner()).Run(ctx, "go", nil)

	require.Error(t, err)
	assert.Equal(t, "agent editor_agent panicked: something went wrong", err.Error())
}

func TestLoggerRound(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	inner := stubRunner(message.NewText("bot", role.Assistant, "reply"), nil)
	ctx := agentctx.WithRound(context.Background(), 2)

	_, err := Logger(log, "writer_agent")(inner).Run(ctx, "draft", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "round=2")
}

func TestAgentRunSetsName(t *testing.T) {
	var got string
	a := New("copy_desk", "", "", &sequenceCompleter{}, Options{
		Middleware: []Middleware{func(next Runner) Runner {
			return RunnerFunc(func(ctx context.Context, input string, fn modeladapter.UpdateFunc) (message.Message, error) {
				got = agentctx.AgentName(ctx)
				return message.NewText("copy_desk", role.Assistant, "ok"), nil
			})
		}},
	})

	_, err := a.Run(context.Background(), "go", nil)
	require.NoError(t, err)
	assert.Equal(t, "copy_desk", got)
}

// --- Middleware composition test ---

func TestMiddlewareComposition(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Runner) Runner {
			return RunnerFunc(func(ctx context.Context, input string, fn modeladapter.UpdateFunc) (message.Message, error) {
				order = append(order, name+":before")
				msg, err := next.Run(ctx, input, fn)
				order = append(order, name+":after")
				return msg, err
			})
		}
	}

	inner := stubRunner(message.NewText("bot", role.Assistant, "done"), nil)

	// Apply A(B(C(inner)))
	wrapped := mw("A")(mw("B")(mw("C")(inner)))
	_, err := wrapped.Run(context.Background(), "go", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"A:before", "B:before", "C:before",
		"C:after", "B:after", "A:after",
	}, order)
}
