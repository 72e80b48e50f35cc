package preprocess

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/parsers"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/prompts"
	errx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/core/error"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

const stage = "preprocess"

// Config holds the knobs of the preprocessing stage.
type Config struct {
	ModelName string
	Attempts  int
	Timeout   time.Duration
	Memory    model.MemoryConfig
	Cache     *Cache
}

// Preprocessor classifies recognised text with the fast model.
type Preprocessor struct {
	chat   einomodel.BaseChatModel
	config Config
}

func New(chat einomodel.BaseChatModel, cfg Config) (*Preprocessor, error) {
	if chat == nil {
		return nil, fmt.Errorf("preprocess chat model is nil")
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = model.DefaultPipelineConfig().Timeout
	}
	return &Preprocessor{chat: chat, config: cfg}, nil
}

// Placeholder is the result used when no classification could be parsed.
// It routes to the heavy model and carries no topics or knowledge.
func Placeholder() model.PreprocessResult {
	return model.PreprocessResult{
		IsQuestion:              true,
		QuestionType:            model.QuestionUnknown,
		RecommendedModel:        model.TierHeavy,
		SuggestedThinkingLength: model.DefaultGateMinThinking,
		ChoiceType:              model.ChoiceNone,
	}
}

// Classify runs one classification of raw against the given memory snapshot.
//
// Malformed responses and provider errors are retried up to the configured
// attempts. When every attempt was malformed, Classify returns the
// Placeholder outcome together with a PreprocessParseFailure error; callers
// continue with the heavy model. A timeout or an exhausted provider failure
// returns a nil outcome.
func (p *Preprocessor) Classify(ctx context.Context, raw string, mem model.MemoryState) (*model.PreprocessOutcome, error) {
	if res, ok := p.config.Cache.Get(raw); ok {
		logx.Debug().Str("stage", stage).Msg("preprocess cache hit")
		return &model.PreprocessOutcome{Result: res, Cached: true}, nil
	}

	msgs, err := prompts.RenderPreprocess(ctx, raw, prompts.ViewOf(mem, p.config.Memory))
	if err != nil {
		return nil, errx.New(err, http.StatusInternalServerError, errx.SystemErrorMessage)
	}

	out := &model.PreprocessOutcome{}
	var lastErr error
	for attempt := 1; attempt <= p.config.Attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		start := time.Now()
		resp, err := p.chat.Generate(model.ComponentContext(callCtx, p.config.ModelName, components.ComponentOfChatModel), msgs)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("preprocess: %w", ctx.Err())
			}
			lastErr = errx.WrapProvider(err)
			logx.Warn().
				Str("stage", stage).
				Str("model", p.config.ModelName).
				Int("attempt", attempt).
				Dur("elapsed", time.Since(start)).
				Err(err).
				Msg("preprocess call failed")
			if errx.IsKind(lastErr, errx.KindRequestTimeout) {
				return nil, lastErr
			}
			continue
		}

		if u, ok := model.UsageFrom(stage, p.config.ModelName, model.TierFast, resp); ok {
			out.Usage = append(out.Usage, u)
		}
		content := ""
		if resp != nil {
			content = resp.Content
		}
		res, perr := parsers.ParsePreprocess(content)
		if perr != nil {
			lastErr = errx.PreprocessParse(perr)
			logx.Warn().
				Str("stage", stage).
				Int("attempt", attempt).
				Err(perr).
				Msg("preprocess response malformed")
			continue
		}

		logx.Info().
			Str("stage", stage).
			Str("model", p.config.ModelName).
			Int("attempt", attempt).
			Dur("elapsed", time.Since(start)).
			Bool("is_question", res.IsQuestion).
			Str("question_type", string(res.QuestionType)).
			Str("recommended_model", res.RecommendedModel.String()).
			Int("suggested_thinking_length", res.SuggestedThinkingLength).
			Msg("preprocess complete")
		out.Result = *res
		p.config.Cache.Add(raw, *res)
		return out, nil
	}

	if errx.IsKind(lastErr, errx.KindPreprocessParseFailure) {
		logx.Warn().Str("stage", stage).Int("attempts", p.config.Attempts).Msg("preprocess parse failure, forcing heavy model")
		out.Result = Placeholder()
		out.ParseFailed = true
		return out, lastErr
	}
	return nil, lastErr
}
