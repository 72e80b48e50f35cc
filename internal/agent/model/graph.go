package model

import (
	"context"
	"time"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - Cross-request memory is NOT kept here; it lives in memory.Store.
type AppState struct {
	RawText   string
	StageMode StageMode
	StartedAt time.Time

	Preprocess    *PreprocessOutcome // set by preprocess post-handler
	PreprocessErr error              // terminal preprocessing failure
	Decision      GateDecision       // set by gate post-handler
	Answer        *AnswerOutcome     // set by answer post-handler
	AnswerErr     error
	Skipped       bool

	Usage []CallUsage
	// Accumulated total LLM cost (USD) across model invocations for this run
	TotalCostUSD float64
}

// AddUsage appends calls and keeps TotalCostUSD in step.
func (s *AppState) AddUsage(calls []CallUsage) {
	s.Usage = append(s.Usage, calls...)
	s.TotalCostUSD += TotalCost(calls)
}

// Failure returns the error that ended the run, if any.
func (s *AppState) Failure() error {
	if s.PreprocessErr != nil {
		return s.PreprocessErr
	}
	return s.AnswerErr
}

// RunInput is the graph input: text handed over by the text extractor.
type RunInput struct {
	RawText string `json:"raw_text"`
}

// RunOutput is the graph output. Report is always filled for history;
// Classified is false when no PreprocessResult was produced. Err is the
// terminal failure of the run, if any.
type RunOutput struct {
	Report     *Report
	Classified bool
	Err        error
}

// HistoryEntry is one persisted pipeline run.
type HistoryEntry struct {
	Report
	RecordedAt time.Time `json:"recorded_at"`
}

// HistoryRepository persists completed runs, oldest first.
type HistoryRepository interface {
	Append(ctx context.Context, key string, entry HistoryEntry) error
	Recent(ctx context.Context, key string, n int) ([]HistoryEntry, error)
	Count(ctx context.Context, key string) (int, error)
	Clear(ctx context.Context, key string) error
}
