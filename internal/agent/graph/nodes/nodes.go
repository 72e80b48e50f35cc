package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/answer"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/gate"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/memory"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/preprocess"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/prompts"
	errx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/core/error"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

const (
	NodePreprocess  = "Preprocess"
	NodeMemory      = "MemoryUpdate"
	NodeGate        = "ModelGate"
	NodeAnswer      = "Answer"
	NodeSingleStage = "SingleStage"
	NodeEarlyReport = "EarlyReport"
	NodeReport      = "Report"
)

// NewInputPreHandler resets per-run state from the graph input.
func NewInputPreHandler(mode model.StageMode) func(context.Context, model.RunInput, *model.AppState) (model.RunInput, error) {
	return func(ctx context.Context, in model.RunInput, s *model.AppState) (model.RunInput, error) {
		s.RawText = in.RawText
		s.StageMode = mode
		s.StartedAt = time.Now()
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewPreprocessNode classifies the input against a snapshot of the store.
// Terminal failures are kept in state so the run still ends in a report.
func NewPreprocessNode(p *preprocess.Preprocessor, store *memory.Store) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.RunInput) (*model.PreprocessOutcome, error) {
		out, err := p.Classify(ctx, in.RawText, store.Snapshot())
		if err != nil && !errx.IsKind(err, errx.KindPreprocessParseFailure) {
			logx.Error().Err(err).Str("kind", string(errx.KindOf(err))).Msg("Preprocessing failed")
			perr := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
				s.PreprocessErr = err
				return nil
			})
			if perr != nil {
				return nil, fmt.Errorf("failed to access state: %w", perr)
			}
			return nil, nil
		}
		return out, nil
	})
}

// NewPreprocessPostHandler saves the outcome and its usage to state.
func NewPreprocessPostHandler() func(context.Context, *model.PreprocessOutcome, *model.AppState) (*model.PreprocessOutcome, error) {
	return func(ctx context.Context, out *model.PreprocessOutcome, state *model.AppState) (*model.PreprocessOutcome, error) {
		if out == nil {
			return out, nil
		}
		state.Preprocess = out
		state.AddUsage(out.Usage)
		logUsage(NodePreprocess, out.Usage, state.TotalCostUSD)
		return out, nil
	}
}

// NewMemoryNode folds the classification into the store. It runs before the
// gate so memory is updated even when answering later fails.
func NewMemoryNode(store *memory.Store) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.PreprocessOutcome) (*model.PreprocessOutcome, error) {
		if in == nil || in.ParseFailed {
			return in, nil
		}
		store.Update(in.Result.Topics, in.Result.BackgroundKnowledge)
		logx.Debug().
			Strs("active_topics", store.ActiveTopics()).
			Int("knowledge", len(store.KnowledgeContext())).
			Msg("Memory updated")
		return in, nil
	})
}

// NewRouteCondition sends failed and skipped runs straight to the early report.
func NewRouteCondition(skipNonQuestion bool) func(context.Context, *model.PreprocessOutcome) (string, error) {
	return func(ctx context.Context, in *model.PreprocessOutcome) (string, error) {
		if in == nil {
			logx.Debug().Msg("No preprocess result - routing to early report")
			return NodeEarlyReport, nil
		}
		if skipNonQuestion && !in.ParseFailed && !in.Result.IsQuestion {
			logx.Debug().Str("summary", in.Result.ContentSummary).Msg("Non-question content - skipping answer")
			if err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
				s.Skipped = true
				return nil
			}); err != nil {
				return "", fmt.Errorf("failed to access state: %w", err)
			}
			return NodeEarlyReport, nil
		}
		return NodeGate, nil
	}
}

// NewGateNode derives the GateDecision and assembles the answering request.
func NewGateNode(g gate.Gate, store *memory.Store, memCfg model.MemoryConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.PreprocessOutcome) (model.AnswerRequest, error) {
		var raw string
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			raw = s.RawText
			return nil
		}); err != nil {
			return model.AnswerRequest{}, fmt.Errorf("failed to access state: %w", err)
		}

		decision := g.Select(in.Result)
		if in.ParseFailed {
			decision = gate.Forced()
		}
		logx.Debug().
			Str("recommended_model", in.Result.RecommendedModel.String()).
			Int("suggested_thinking_length", in.Result.SuggestedThinkingLength).
			Str("chosen_model", decision.ChosenModel.String()).
			Bool("forced", decision.Forced).
			Msg("Model selected")

		return model.AnswerRequest{
			RawText:      raw,
			Preprocess:   in.Result,
			Decision:     decision,
			Knowledge:    answerKnowledge(store.Snapshot(), memCfg, in.Result.BackgroundKnowledge),
			ThinkingHint: in.Result.SuggestedThinkingLength,
		}, nil
	})
}

// NewGatePostHandler records the decision in state.
func NewGatePostHandler() func(context.Context, model.AnswerRequest, *model.AppState) (model.AnswerRequest, error) {
	return func(ctx context.Context, out model.AnswerRequest, state *model.AppState) (model.AnswerRequest, error) {
		state.Decision = out.Decision
		return out, nil
	}
}

// NewAnswerNode runs the answering state machine. Its failure is kept in
// state so memory updates and the report survive it.
func NewAnswerNode(a *answer.Answerer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, req model.AnswerRequest) (*model.AnswerOutcome, error) {
		out, err := a.Answer(ctx, req)
		if out == nil {
			out = &model.AnswerOutcome{}
		}
		if err != nil {
			logx.Error().Err(err).Str("kind", string(errx.KindOf(err))).Msg("Answering failed")
			if perr := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
				s.AnswerErr = err
				return nil
			}); perr != nil {
				return nil, fmt.Errorf("failed to access state: %w", perr)
			}
		}
		return out, nil
	})
}

// NewAnswerPostHandler saves the outcome and its usage to state.
func NewAnswerPostHandler() func(context.Context, *model.AnswerOutcome, *model.AppState) (*model.AnswerOutcome, error) {
	return func(ctx context.Context, out *model.AnswerOutcome, state *model.AppState) (*model.AnswerOutcome, error) {
		state.Answer = out
		state.AddUsage(out.Usage)
		logUsage(NodeAnswer, out.Usage, state.TotalCostUSD)
		return out, nil
	}
}

// NewSingleStageNode reviews and answers in one call, then updates memory
// from the review section.
func NewSingleStageNode(a *answer.Answerer, tier model.Tier, store *memory.Store, memCfg model.MemoryConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.RunInput) (*model.AnswerOutcome, error) {
		view := prompts.ViewOf(store.Snapshot(), memCfg)
		out, err := a.SolveSingleStage(ctx, in.RawText, tier, view)
		if out == nil {
			out = &answer.SingleStageOutcome{}
		}
		if out.Answer == nil {
			out.Answer = &model.AnswerOutcome{}
		}
		if out.Review != nil {
			store.Update(out.Review.Topics, out.Review.BackgroundKnowledge)
		}

		perr := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			s.Decision = model.GateDecision{ChosenModel: tier}
			if out.Review != nil {
				s.Preprocess = &model.PreprocessOutcome{Result: *out.Review}
			}
			if err != nil {
				s.AnswerErr = err
			}
			return nil
		})
		if perr != nil {
			return nil, fmt.Errorf("failed to access state: %w", perr)
		}
		if err != nil {
			logx.Error().Err(err).Str("kind", string(errx.KindOf(err))).Msg("Single-stage answering failed")
		}
		return out.Answer, nil
	})
}

// NewReportNode builds the run report from state after answering.
func NewReportNode(store *memory.Store) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ *model.AnswerOutcome) (*model.RunOutput, error) {
		return reportFromState(ctx, store)
	})
}

// NewEarlyReportNode builds the run report when answering was skipped or
// preprocessing failed.
func NewEarlyReportNode(store *memory.Store) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ *model.PreprocessOutcome) (*model.RunOutput, error) {
		return reportFromState(ctx, store)
	})
}

func reportFromState(ctx context.Context, store *memory.Store) (*model.RunOutput, error) {
	var out *model.RunOutput
	err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
		out = buildReport(s, store)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access state: %w", err)
	}
	return out, nil
}
