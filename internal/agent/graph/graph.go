package graph

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/cloudwego/eino/compose"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/answer"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/gate"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/graph/nodes"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/graph/observers"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/history"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/memory"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/preprocess"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

// Runner runs the pipeline for one piece of recognised text.
type Runner interface {
	Run(ctx context.Context, rawText string) (*model.Report, error)
}

// Config holds everything needed to compose the full pipeline end-to-end.
// This is a convenience layer over GraphConfig that also constructs ChatModels.
type Config struct {
	APIKey   string
	BaseURL  string
	Fast     model.FastModelConfig
	Heavy    model.HeavyModelConfig
	Pipeline model.PipelineConfig
	Memory   model.MemoryConfig
	History  *history.Recorder
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels *nodes.ChatModels
	Store      *memory.Store
	Pipeline   model.PipelineConfig
	Memory     model.MemoryConfig
	History    *history.Recorder
}

// GraphBuilder handles the construction of the pipeline graph
type GraphBuilder struct {
	config       *GraphConfig
	preprocessor *preprocess.Preprocessor
	answerer     *answer.Answerer
	graph        *compose.Graph[model.RunInput, *model.RunOutput]
}

// LaneStats counts how runs were answered.
type LaneStats struct {
	Runs     int64 `json:"runs"`
	Fast     int64 `json:"fast"`
	Heavy    int64 `json:"heavy"`
	FellBack int64 `json:"fell_back"`
	Skipped  int64 `json:"skipped"`
	Failed   int64 `json:"failed"`
}

// Pipeline is the compiled orchestrator. Invocations may run concurrently;
// they share only the memory store and the counters.
type Pipeline struct {
	runnable compose.Runnable[model.RunInput, *model.RunOutput]
	store    *memory.Store
	history  *history.Recorder

	runs, fast, heavy, fellBack, skipped, failed atomic.Int64
}

// BuildPipeline creates the Gemini chat models and compiles the pipeline.
func BuildPipeline(ctx context.Context, cfg Config) (*Pipeline, error) {
	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Fast:    &cfg.Fast,
		Heavy:   &cfg.Heavy,
	})
	if err != nil {
		return nil, err
	}

	p, err := NewPipeline(ctx, &GraphConfig{
		ChatModels: cms,
		Store:      memory.NewStore(cfg.Memory.PruneThreshold),
		Pipeline:   cfg.Pipeline,
		Memory:     cfg.Memory,
		History:    cfg.History,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Str("stage_mode", string(cfg.Pipeline.StageMode)).Msg("Pipeline built successfully")
	return p, nil
}

// NewPipeline compiles the graph over already constructed chat models.
func NewPipeline(ctx context.Context, config *GraphConfig) (*Pipeline, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		runnable: runnable,
		store:    config.Store,
		history:  config.History,
	}, nil
}

// Run executes one invocation. The report is nil only when preprocessing
// produced no result; otherwise it is returned even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, rawText string) (*model.Report, error) {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return nil, fmt.Errorf("raw text is empty")
	}

	p.runs.Add(1)
	out, err := p.runnable.Invoke(ctx, model.RunInput{RawText: rawText},
		compose.WithCallbacks(observers.NewAllCallbacks()...))
	if err != nil {
		p.failed.Add(1)
		return nil, err
	}
	if out == nil || out.Report == nil {
		p.failed.Add(1)
		return nil, fmt.Errorf("pipeline returned no report")
	}

	p.count(out)
	if herr := p.history.Record(ctx, out.Report); herr != nil {
		logx.Warn().Err(herr).Msg("run history not recorded")
	}

	if !out.Classified {
		return nil, out.Err
	}
	return out.Report, out.Err
}

func (p *Pipeline) count(out *model.RunOutput) {
	r := out.Report
	switch {
	case out.Err != nil:
		p.failed.Add(1)
	case r.Skipped:
		p.skipped.Add(1)
	case r.Answer != nil:
		if r.Answer.UsedModel == model.TierHeavy {
			p.heavy.Add(1)
		} else {
			p.fast.Add(1)
		}
		if r.Answer.FellBack {
			p.fellBack.Add(1)
		}
	}
}

// Stats returns the lane counters.
func (p *Pipeline) Stats() LaneStats {
	return LaneStats{
		Runs:     p.runs.Load(),
		Fast:     p.fast.Load(),
		Heavy:    p.heavy.Load(),
		FellBack: p.fellBack.Load(),
		Skipped:  p.skipped.Load(),
		Failed:   p.failed.Load(),
	}
}

// Memory returns a snapshot of the cross-request memory.
func (p *Pipeline) Memory() model.MemoryState {
	return p.store.Snapshot()
}

// History returns the recorder, which may be nil.
func (p *Pipeline) History() *history.Recorder {
	return p.history
}

// BuildGraph constructs and returns the compiled pipeline graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.RunInput, *model.RunOutput], error) {
	// Basic config validation
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Fast == nil || config.ChatModels.Heavy == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("memory store is nil")
	}

	cms := config.ChatModels
	pc := config.Pipeline

	cache, err := preprocess.NewCache(pc.PreprocessCacheSize)
	if err != nil {
		return nil, fmt.Errorf("preprocess cache: %w", err)
	}
	pre, err := preprocess.New(cms.Fast, preprocess.Config{
		ModelName: cms.FastModelName,
		Attempts:  pc.Attempts(),
		Timeout:   pc.Timeout,
		Memory:    config.Memory,
		Cache:     cache,
	})
	if err != nil {
		return nil, err
	}
	ans, err := answer.New(cms.Endpoint(model.TierFast), cms.Endpoint(model.TierHeavy), answer.Config{
		Timeout:  pc.Timeout,
		Attempts: pc.Attempts(),
		Language: pc.OutputLanguage,
	})
	if err != nil {
		return nil, err
	}

	builder := &GraphBuilder{
		config:       config,
		preprocessor: pre,
		answerer:     ans,
		graph: compose.NewGraph[model.RunInput, *model.RunOutput](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if pc.StageMode == model.StageSingle {
		if err := builder.addSingleStage(); err != nil {
			return nil, err
		}
	} else {
		if err := builder.addNodes(); err != nil {
			return nil, err
		}
		if err := builder.addEdges(); err != nil {
			return nil, err
		}
		if err := builder.addBranches(); err != nil {
			return nil, err
		}
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes of the two-stage pipeline
func (b *GraphBuilder) addNodes() error {
	cfg := b.config
	steps := []func() error{
		func() error {
			return b.graph.AddLambdaNode(nodes.NodePreprocess,
				nodes.NewPreprocessNode(b.preprocessor, cfg.Store),
				compose.WithStatePreHandler(nodes.NewInputPreHandler(model.StageMulti)),
				compose.WithStatePostHandler(nodes.NewPreprocessPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeMemory, nodes.NewMemoryNode(cfg.Store))
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeGate,
				nodes.NewGateNode(gate.New(cfg.Pipeline.GateMinThinking), cfg.Store, cfg.Memory),
				compose.WithStatePostHandler(nodes.NewGatePostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeAnswer,
				nodes.NewAnswerNode(b.answerer),
				compose.WithStatePostHandler(nodes.NewAnswerPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeEarlyReport, nodes.NewEarlyReportNode(cfg.Store))
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeReport, nodes.NewReportNode(cfg.Store))
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			logx.Error().Err(err).Msg("Error adding node")
			return fmt.Errorf("error adding node: %w", err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodePreprocess},
		{nodes.NodePreprocess, nodes.NodeMemory},
		{nodes.NodeGate, nodes.NodeAnswer},
		{nodes.NodeAnswer, nodes.NodeReport},
		{nodes.NodeReport, compose.END},
		{nodes.NodeEarlyReport, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	routeBranch := compose.NewGraphBranch(
		nodes.NewRouteCondition(b.config.Pipeline.SkipNonQuestion),
		map[string]bool{
			nodes.NodeGate:        true,
			nodes.NodeEarlyReport: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeMemory, routeBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding route branch")
		return fmt.Errorf("error adding route branch: %w", err)
	}
	return nil
}

// addSingleStage wires the combined review+answer graph.
func (b *GraphBuilder) addSingleStage() error {
	cfg := b.config
	if err := b.graph.AddLambdaNode(nodes.NodeSingleStage,
		nodes.NewSingleStageNode(b.answerer, cfg.Pipeline.SingleStageModel, cfg.Store, cfg.Memory),
		compose.WithStatePreHandler(nodes.NewInputPreHandler(model.StageSingle)),
		compose.WithStatePostHandler(nodes.NewAnswerPostHandler()),
	); err != nil {
		return fmt.Errorf("error adding node: %w", err)
	}
	if err := b.graph.AddLambdaNode(nodes.NodeReport, nodes.NewReportNode(cfg.Store)); err != nil {
		return fmt.Errorf("error adding node: %w", err)
	}
	for _, edge := range [][2]string{
		{compose.START, nodes.NodeSingleStage},
		{nodes.NodeSingleStage, nodes.NodeReport},
		{nodes.NodeReport, compose.END},
	} {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.RunInput, *model.RunOutput], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("answer_pipeline"),
		compose.WithMaxRunSteps(20),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Dur("call_timeout", b.config.Pipeline.Timeout).Msg("Graph compiled successfully")
	return runnable, nil
}
