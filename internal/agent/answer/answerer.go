package answer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/parsers"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/prompts"
	errx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/core/error"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

// Endpoint is one answering model and the name used for pricing and logs.
type Endpoint struct {
	Chat einomodel.BaseChatModel
	Name string
}

type Config struct {
	Timeout  time.Duration
	Attempts int
	Language string
}

// Answerer produces validated answers, downgrading heavy to fast on timeout.
type Answerer struct {
	endpoints map[model.Tier]Endpoint
	config    Config
}

// New requires an endpoint for both tiers.
func New(fast, heavy Endpoint, cfg Config) (*Answerer, error) {
	if fast.Chat == nil || heavy.Chat == nil {
		return nil, fmt.Errorf("answer chat models are not properly initialized")
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = model.DefaultPipelineConfig().Timeout
	}
	return &Answerer{
		endpoints: map[model.Tier]Endpoint{model.TierFast: fast, model.TierHeavy: heavy},
		config:    cfg,
	}, nil
}

// Answer runs the answering state machine for one request. On failure the
// returned outcome still lists the calls that were made.
func (a *Answerer) Answer(ctx context.Context, req model.AnswerRequest) (*model.AnswerOutcome, error) {
	msgs, err := prompts.RenderAnswer(ctx, prompts.AnswerInput{
		RawText:      req.RawText,
		Preprocess:   req.Preprocess,
		Knowledge:    req.Knowledge,
		ThinkingHint: req.ThinkingHint,
		Language:     a.config.Language,
	})
	if err != nil {
		return &model.AnswerOutcome{}, errx.New(err, http.StatusInternalServerError, errx.SystemErrorMessage)
	}

	var result *model.AnswerResult
	out, m, err := a.run(ctx, "answer", req.Decision.ChosenModel, msgs, func(content string) error {
		res, err := parsers.ParseAnswer(content)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return out, err
	}
	result.UsedModel = m.Tier
	result.FellBack = m.FellBack
	out.Result = result
	return out, nil
}

// run drives the state machine starting on tier. parse is called with each
// response body and reports a schema mismatch by returning an error.
func (a *Answerer) run(
	ctx context.Context,
	stage string,
	tier model.Tier,
	msgs []*schema.Message,
	parse func(content string) error,
) (*model.AnswerOutcome, Machine, error) {
	out := &model.AnswerOutcome{}
	m := NewMachine(tier, a.config.Attempts)
	var lastErr error

	for !m.Done() {
		ep := a.endpoints[m.Tier]
		callCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		start := time.Now()
		resp, err := ep.Chat.Generate(model.ComponentContext(callCtx, ep.Name, components.ComponentOfChatModel), msgs)
		cancel()
		out.Attempts++

		if err != nil && ctx.Err() != nil {
			return out, m, fmt.Errorf("%s: %w", stage, ctx.Err())
		}

		var ev Event
		switch {
		case err != nil:
			lastErr = errx.WrapProvider(err)
			ev = EventUnavailable
			if errx.IsKind(lastErr, errx.KindRequestTimeout) {
				ev = EventTimedOut
			}
		default:
			if u, ok := model.UsageFrom(stage, ep.Name, m.Tier, resp); ok {
				out.Usage = append(out.Usage, u)
			}
			content := ""
			if resp != nil {
				content = resp.Content
			}
			if perr := parse(content); perr != nil {
				lastErr = perr
				ev = EventMalformed
			} else {
				ev = EventSucceeded
			}
		}

		logx.Debug().
			Str("stage", stage).
			Str("model", ep.Name).
			Str("tier", m.Tier.String()).
			Int("attempt", m.Attempt+1).
			Dur("elapsed", time.Since(start)).
			Str("event", ev.String()).
			AnErr("error", lastErrFor(ev, lastErr)).
			Msg("model call finished")

		next := m.Next(ev)
		if next.FellBack && !m.FellBack {
			logx.Warn().Str("stage", stage).Str("from", m.Tier.String()).Str("to", next.Tier.String()).Msg("model timed out, falling back")
		}
		m = next
	}

	switch m.State {
	case StateSucceeded:
		logx.Info().
			Str("stage", stage).
			Str("tier", m.Tier.String()).
			Bool("fell_back", m.FellBack).
			Int("attempts", out.Attempts).
			Float64("cost_usd", model.TotalCost(out.Usage)).
			Msg("answer ready")
		return out, m, nil
	case StateTimedOut:
		return out, m, lastErr
	default:
		if m.Last == EventMalformed {
			return out, m, errx.AnswerParse(lastErr)
		}
		return out, m, lastErr
	}
}

func lastErrFor(ev Event, err error) error {
	if ev == EventSucceeded {
		return nil
	}
	return err
}
