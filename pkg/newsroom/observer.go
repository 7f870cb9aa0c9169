package newsroom

// Observer receives pipeline progress synchronously, in order. Calls happen
// on the goroutine running Pipeline.Run.
type Observer interface {
	// RoundStarted is called before every round, starting at 1.
	RoundStarted(round int)
	// StageStarted is called before a stage's agent runs.
	StageStarted(round int, stage Stage)
	// TextDelta receives streamed reply text.
	TextDelta(text string)
	// SearchQueries receives queries not yet reported for the current stage.
	SearchQueries(queries []string)
	// StageFinished is called with the completed turn.
	StageFinished(turn Turn)
}

// NopObserver ignores every event. Embed it to implement only some methods.
type NopObserver struct{}

func (NopObserver) RoundStarted(int) {}
func (NopObserver) StageStarted(int, Stage) {}
func (NopObserver) TextDelta(string) {}
func (NopObserver) SearchQueries([]string) {}
func (NopObserver) StageFinished(Turn) {}

var _ Observer = NopObserver{}
