package nodes

import (
	"time"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/memory"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	errx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/core/error"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

// ===== Small helpers to keep handlers simple/readable =====

// answerKnowledge prefers the most recent remembered knowledge and falls
// back to what this run's classification produced.
func answerKnowledge(mem model.MemoryState, cfg model.MemoryConfig, current []string) []string {
	n := cfg.PromptKnowledge
	if n <= 0 {
		return nil
	}
	src := mem.BackgroundKnowledge
	if len(src) == 0 {
		src = current
	}
	if len(src) > n {
		src = src[:n]
	}
	return append([]string(nil), src...)
}

// buildReport assembles the presentation report from run state.
func buildReport(s *model.AppState, store *memory.Store) *model.RunOutput {
	r := &model.Report{
		RawText:      s.RawText,
		StageMode:    s.StageMode,
		Decision:     s.Decision,
		Skipped:      s.Skipped,
		ActiveTopics: store.ActiveTopics(),
		Knowledge:    store.KnowledgeContext(),
		Usage:        append([]model.CallUsage(nil), s.Usage...),
		TotalCostUSD: s.TotalCostUSD,
		StartedAt:    s.StartedAt,
		Elapsed:      time.Since(s.StartedAt),
	}
	if s.Preprocess != nil {
		r.Preprocess = s.Preprocess.Result
		r.ParseFailed = s.Preprocess.ParseFailed
	}
	if s.Answer != nil && s.Answer.Result != nil {
		res := *s.Answer.Result
		r.Answer = &res
	}
	err := s.Failure()
	if err != nil {
		r.Error = err.Error()
		r.ErrorKind = string(errx.KindOf(err))
	}
	return &model.RunOutput{
		Report:     r,
		Classified: s.Preprocess != nil,
		Err:        err,
	}
}

// logUsage logs the calls of one node and the running total.
func logUsage(node string, calls []model.CallUsage, runningTotal float64) {
	for _, u := range calls {
		logx.Debug().
			Str("node", node).
			Str("stage", u.Stage).
			Str("model", u.Model).
			Str("tier", u.Tier.String()).
			Int("prompt_tokens", u.PromptTokens).
			Int("completion_tokens", u.CompletionTokens).
			Int("total_tokens", u.TotalTokens).
			Float64("cost_usd", u.CostUSD).
			Float64("total_cost_usd", runningTotal).
			Msg("LLM usage")
	}
}
