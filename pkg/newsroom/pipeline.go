// Package newsroom runs the article workflow: a fixed roster of agents that
// research, draft, edit, revise, verify and finally review a news article.
// Every stage sees the requirements plus everything said before it.
package newsroom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/germanamz/newsroom/pkg/agent"
	"github.com/germanamz/newsroom/pkg/agentctx"
	"github.com/germanamz/newsroom/pkg/chats/content"
	"github.com/germanamz/newsroom/pkg/modeladapter"
	"github.com/germanamz/newsroom/pkg/searchquery"
)

// ErrEmptyRequirements is returned when the requirements are blank.
var ErrEmptyRequirements = errors.New("newsroom: requirements are empty")

// DateLayout formats the date appended to the requirements.
const DateLayout = "2006-01-02"

// Stage is one agent turn in the workflow.
type Stage struct {
	Title   string       // Display name, also used to address the agent in the prompt.
	Agent   string       // Agent name, for reporting.
	Runner  agent.Runner // Runs the agent.
	Verdict Verdict
	Draft   bool // The reply is the first draft.
	Article bool // The reply is the article.
}

// Turn is the record of one finished stage.
type Turn struct {
	Title   string
	Agent   string
	Text    string
	Queries []string
	Sources []content.Citation // URLs cited in the final reply, first citation per URL.
	Round   int
}

// Result is the outcome of a pipeline run.
type Result struct {
	RunID        string
	StartedAt    time.Time
	Requirements string // As sent to the first stage, date included.
	Turns        []Turn
	Draft        string
	Article      string
	Approved     bool
	Complete     bool
	Rounds       int
}

// Pipeline sequences the stages. The zero values of Clock, Rounds and Logger
// mean time.Now, a single pass and no logging.
type Pipeline struct {
	Stages []Stage
	Clock  func() time.Time
	// Rounds caps the number of passes. A pass after the first only happens
	// while the completion verdict is negative.
	Rounds int
	// LoopFrom is the index of the first stage of every pass after the first.
	LoopFrom int
	Logger   *slog.Logger
}

// Validate checks the pipeline is runnable.
func (p *Pipeline) Validate() error {
	if len(p.Stages) == 0 {
		return errors.New("newsroom: no stages")
	}
	for i, s := range p.Stages {
		if s.Runner == nil {
			return fmt.Errorf("newsroom: stage %d (%s): no runner", i, s.Title)
		}
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("newsroom: stage %d: empty title", i)
		}
	}
	if p.LoopFrom < 0 || p.LoopFrom >= len(p.Stages) {
		return fmt.Errorf("newsroom: loop_from %d out of range [0, %d)", p.LoopFrom, len(p.Stages))
	}

	return nil
}

// Augment appends the current date to the trimmed requirements.
func Augment(requirements string, now time.Time) string {
	return requirements + " Today's date is " + now.Format(DateLayout)
}

// StageInput builds the message sent to a stage. The first stage gets the
// requirements alone; later stages also get the discussion so far and are
// addressed by title.
func StageInput(requirements string, history []string, title string) string {
	if len(history) == 0 {
		return requirements
	}

	var b strings.Builder
	b.WriteString(requirements)
	b.WriteString("\n\nPrevious discussion:\n")
	for _, entry := range history {
		b.WriteString(entry)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(title)
	b.WriteString(", please complete your task:")

	return b.String()
}

// Run executes the workflow for requirements. obs may be nil.
func (p *Pipeline) Run(ctx context.Context, requirements string, obs Observer) (Result, error) {
	requirements = strings.TrimSpace(requirements)
	if requirements == "" {
		return Result{}, ErrEmptyRequirements
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if obs == nil {
		obs = NopObserver{}
	}

	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	rounds := max(p.Rounds, 1)
	log := p.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	now := clock()
	res := Result{
		RunID:        uuid.NewString(),
		StartedAt:    now,
		Requirements: Augment(requirements, now),
	}

	var history []string

	for round := 1; round <= rounds; round++ {
		obs.RoundStarted(round)
		res.Rounds = round

		stages := p.Stages
		if round > 1 {
			stages = p.Stages[p.LoopFrom:]
		}

		for _, s := range stages {
			turn, err := p.runStage(ctx, s, round, StageInput(res.Requirements, history, s.Title), obs)
			if err != nil {
				return res, err
			}

			log.DebugContext(ctx, "stage finished",
				"run", res.RunID,
				"round", round,
				"stage", s.Title,
				"chars", len(turn.Text),
				"queries", len(turn.Queries),
				"sources", len(turn.Sources),
			)

			history = append(history, s.Title+": "+turn.Text)
			res.Turns = append(res.Turns, turn)
			res.apply(s, turn.Text)
		}

		if res.Complete || !p.hasCompletionStage() {
			break
		}
	}

	return res, nil
}

func (p *Pipeline) runStage(ctx context.Context, s Stage, round int, input string, obs Observer) (Turn, error) {
	obs.StageStarted(round, s)

	var (
		text    strings.Builder
		seen    searchquery.Seen
		queries []string
	)

	ctx = agentctx.WithRound(ctx, round)

	reply, err := s.Runner.Run(ctx, input, func(u modeladapter.Update) {
		if fresh := seen.Filter(searchquery.FromJSON(u.Payload)); len(fresh) > 0 {
			queries = append(queries, fresh...)
			obs.SearchQueries(fresh)
		}
		if u.Text != "" {
			text.WriteString(u.Text)
			obs.TextDelta(u.Text)
		}
	})
	if err != nil {
		return Turn{}, fmt.Errorf("newsroom: %s: %w", s.Title, err)
	}

	// Searches recorded on the reply but never streamed.
	if fresh := seen.Filter(reply.SearchQueries()); len(fresh) > 0 {
		queries = append(queries, fresh...)
		obs.SearchQueries(fresh)
	}

	turn := Turn{
		Title:   s.Title,
		Agent:   s.Agent,
		Text:    strings.TrimSpace(text.String()),
		Queries: queries,
		Sources: uniqueSources(reply.Citations()),
		Round:   round,
	}
	obs.StageFinished(turn)

	return turn, nil
}

func uniqueSources(cites []content.Citation) []content.Citation {
	var out []content.Citation
	seen := make(map[string]bool, len(cites))
	for _, c := range cites {
		if c.URL == "" || seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		out = append(out, c)
	}

	return out
}

func (r *Result) apply(s Stage, text string) {
	if s.Draft && r.Draft == "" {
		r.Draft = text
	}
	if s.Article {
		r.Article = text
	}

	switch s.Verdict {
	case VerdictApproval:
		r.Approved = Approved(text)
	case VerdictCompletion:
		r.Complete = Completed(text)
	}
}

func (p *Pipeline) hasCompletionStage() bool {
	for _, s := range p.Stages {
		if s.Verdict == VerdictCompletion {
			return true
		}
	}

	return false
}
