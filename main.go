package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/graph"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/history"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/repo"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/core"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/presenter"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
	pkgredis "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/redis"
)

// AppConfig defines all configurable parameters of the answerer,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Pipeline configs
	Fast     model.FastModelConfig
	Heavy    model.HeavyModelConfig
	Pipeline model.PipelineConfig
	Memory   model.MemoryConfig
	History  model.HistoryConfig
}

// Pipeline is the part of *graph.Pipeline the commands use.
type Pipeline interface {
	graph.Runner
	Stats() graph.LaneStats
	Memory() model.MemoryState
	History() *history.Recorder
}

// PipelineFactory builds a pipeline and a cleanup func from config.
type PipelineFactory func(ctx context.Context, cfg *AppConfig) (Pipeline, func(), error)

// CLIOptions carries injectable dependencies for tests.
type CLIOptions struct {
	Factory PipelineFactory
	Config  func() (*AppConfig, error)
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(CLIOptions{}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts CLIOptions) *cobra.Command {
	if opts.Factory == nil {
		opts.Factory = DefaultPipelineFactory
	}
	if opts.Config == nil {
		opts.Config = LoadConfig
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	var jsonOut, verbose bool
	root := &cobra.Command{
		Use:           "answerer",
		Short:         "answerer - two-stage LLM test answering pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(opts.Stdin)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "print reports as JSON")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print usage and memory details")

	newPresenter := func() *presenter.Presenter {
		var po []presenter.Option
		if jsonOut {
			po = append(po, presenter.WithJSON())
		}
		if verbose {
			po = append(po, presenter.WithVerbose())
		}
		return presenter.New(opts.Stdout, po...)
	}

	var historyN int
	answerCmd := &cobra.Command{
		Use:   "answer [text...]",
		Short: "Answer one piece of recognised text (arguments, or stdin when none)",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := setup(cmd.Context(), opts)
			if err != nil {
				return report(opts.Stderr, err)
			}
			defer cleanup()
			return report(opts.Stderr, runAnswer(cmd.Context(), p, newPresenter(), opts.Stdin, args, historyN))
		},
	}
	answerCmd.Flags().IntVar(&historyN, "history", 0, "print the N most recent runs after answering")

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Answer texts interactively; a blank line submits the text",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := setup(cmd.Context(), opts)
			if err != nil {
				return report(opts.Stderr, err)
			}
			defer cleanup()
			return report(opts.Stderr, runREPL(cmd.Context(), p, newPresenter(), opts.Stdin, opts.Stdout))
		},
	}

	root.AddCommand(answerCmd, replCmd)
	return root
}

// LoadConfig processes the environment into an AppConfig.
func LoadConfig() (*AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}

func setup(ctx context.Context, opts CLIOptions) (Pipeline, func(), error) {
	cfg, err := opts.Config()
	if err != nil {
		return nil, nil, err
	}
	logx.Init(logx.LoggerOpts{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Output:      opts.Stderr,
	})
	return opts.Factory(ctx, cfg)
}

// DefaultPipelineFactory wires Gemini models, the memory store and the history
// repository (Redis when REDIS_URL is set, otherwise in-process).
func DefaultPipelineFactory(ctx context.Context, cfg *AppConfig) (Pipeline, func(), error) {
	cleanup := func() {}

	var historyRepo model.HistoryRepository
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialise Redis client: %w", err)
		}
		logx.Info().Msg("Connected to Redis successfully")
		historyRepo = repo.NewRedisHistoryRepository(rdb, cfg.History.TTL, cfg.History.Limit)
		cleanup = func() { _ = rdb.Close() }
	} else {
		historyRepo = repo.NewMemoryHistoryRepository(cfg.History.Limit)
	}

	p, err := graph.BuildPipeline(ctx, graph.Config{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Fast:     cfg.Fast,
		Heavy:    cfg.Heavy,
		Pipeline: cfg.Pipeline,
		Memory:   cfg.Memory,
		History:  history.NewRecorder(historyRepo, cfg.History.Key),
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	return p, cleanup, nil
}

func runAnswer(ctx context.Context, p Pipeline, out *presenter.Presenter, stdin io.Reader, args []string, historyN int) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" && (len(args) > 0 || historyN <= 0) {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimSpace(string(b))
	}

	var runErr error
	if text != "" {
		r, err := p.Run(ctx, text)
		if perr := out.Report(r, err); perr != nil {
			return perr
		}
		runErr = err
	} else if historyN <= 0 {
		return fmt.Errorf("no input text")
	}

	if historyN > 0 {
		entries, err := p.History().Recent(ctx, historyN)
		if err != nil {
			return err
		}
		if err := out.History(entries); err != nil {
			return err
		}
	}
	return runErr
}

func runREPL(ctx context.Context, p Pipeline, out *presenter.Presenter, stdin io.Reader, stdout io.Writer) error {
	fmt.Fprintln(stdout, "answerer (blank line submits; :stats :memory :history [n] :quit)")
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var block []string
	submit := func() {
		text := strings.TrimSpace(strings.Join(block, "\n"))
		block = block[:0]
		if text == "" {
			return
		}
		r, err := p.Run(ctx, text)
		if perr := out.Report(r, err); perr != nil {
			logx.Warn().Err(perr).Msg("failed to render report")
		}
	}

	for {
		if len(block) == 0 {
			fmt.Fprint(stdout, "\n> ")
		}
		if !scanner.Scan() {
			submit()
			break
		}
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if len(block) == 0 && strings.HasPrefix(trimmed, ":") {
			if quit := replCommand(ctx, p, out, stdout, trimmed); quit {
				return nil
			}
			continue
		}
		if trimmed == "" {
			submit()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		block = append(block, line)
	}
	return scanner.Err()
}

// replCommand handles a ':' command and reports whether the REPL should exit.
func replCommand(ctx context.Context, p Pipeline, out *presenter.Presenter, stdout io.Writer, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":exit", ":q":
		return true
	case ":stats":
		_ = out.Stats(p.Stats())
	case ":memory":
		_ = out.Memory(p.Memory())
	case ":history":
		n := 10
		if len(fields) > 1 {
			if _, err := fmt.Sscanf(fields[1], "%d", &n); err != nil || n <= 0 {
				fmt.Fprintf(stdout, "invalid count %q\n", fields[1])
				return false
			}
		}
		entries, err := p.History().Recent(ctx, n)
		if err != nil {
			fmt.Fprintf(stdout, "error: %v\n", err)
			return false
		}
		_ = out.History(entries)
	default:
		fmt.Fprintf(stdout, "unknown command %s\n", fields[0])
	}
	return false
}

func report(stderr io.Writer, err error) error {
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return err
}
