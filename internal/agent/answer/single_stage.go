package answer

import (
	"context"
	"net/http"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/parsers"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/prompts"
	errx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/core/error"
)

// SingleStageOutcome is the result of one combined review and answer call.
// Review is nil when no response could be parsed.
type SingleStageOutcome struct {
	Review *model.PreprocessResult
	Answer *model.AnswerOutcome
}

// SolveSingleStage reviews and answers raw in one call against tier, with
// the same timeout fallback and retry rules as Answer.
func (a *Answerer) SolveSingleStage(ctx context.Context, raw string, tier model.Tier, mem prompts.MemoryView) (*SingleStageOutcome, error) {
	msgs, err := prompts.RenderSingleStage(ctx, raw, mem, a.config.Language)
	if err != nil {
		return &SingleStageOutcome{Answer: &model.AnswerOutcome{}}, errx.New(err, http.StatusInternalServerError, errx.SystemErrorMessage)
	}

	var parsed *parsers.SingleStage
	out, m, err := a.run(ctx, "single_stage", tier, msgs, func(content string) error {
		res, err := parsers.ParseSingleStage(content)
		if err != nil {
			return err
		}
		parsed = res
		return nil
	})
	if err != nil {
		return &SingleStageOutcome{Answer: out}, err
	}

	final := parsed.Final
	final.UsedModel = m.Tier
	final.FellBack = m.FellBack
	out.Result = &final
	review := parsed.Review
	review.RecommendedModel = tier
	return &SingleStageOutcome{Review: &review, Answer: out}, nil
}
