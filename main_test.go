package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/chattest"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/graph"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/graph/nodes"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/history"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/memory"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/repo"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/core"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

const (
	classification = `{"content_type": "question", "question": "2+2?", "question_kind": "free",
	  "recommended_model": "chat", "related_topics": ["arithmetic"], "suggest_thinking_length": 16}`
	answerBody = `{"final_answer_text": "4", "explanation": "sum", "confidence": 0.9}`
)

func testConfig() (*AppConfig, error) {
	return &AppConfig{Environment: core.Testing, LogLevel: "disabled"}, nil
}

func fakeFactory(fast *chattest.Model) PipelineFactory {
	return func(ctx context.Context, cfg *AppConfig) (Pipeline, func(), error) {
		pc := model.DefaultPipelineConfig()
		pc.Timeout = time.Second
		p, err := graph.NewPipeline(ctx, &graph.GraphConfig{
			ChatModels: &nodes.ChatModels{
				Fast:           fast,
				Heavy:          chattest.New(),
				FastModelName:  "gemini-2.5-flash",
				HeavyModelName: "gemini-2.5-pro",
			},
			Store:    memory.NewStore(0),
			Pipeline: pc,
			Memory:   model.DefaultMemoryConfig(),
			History:  history.NewRecorder(repo.NewMemoryHistoryRepository(0), ""),
		})
		return p, func() {}, err
	}
}

func execute(t *testing.T, opts CLIOptions, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(logx.Disable)
	var stdout, stderr bytes.Buffer
	opts.Config = testConfig
	opts.Stdout = &stdout
	opts.Stderr = &stderr
	if opts.Stdin == nil {
		opts.Stdin = strings.NewReader("")
	}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestAnswerFromArgs(t *testing.T) {
	fast := chattest.New(chattest.Reply(classification), chattest.Reply(answerBody))
	out, _, err := execute(t, CLIOptions{Factory: fakeFactory(fast)}, "answer", "2+2?")
	require.NoError(t, err)
	assert.Contains(t, out, "answer: 4")
	assert.Contains(t, out, "answered by: fast")
	assert.Contains(t, fast.Inputs(0)[1].Content, "2+2?")
}

func TestAnswerFromStdin(t *testing.T) {
	fast := chattest.New(chattest.Reply(classification), chattest.Reply(answerBody))
	out, _, err := execute(t, CLIOptions{
		Factory: fakeFactory(fast),
		Stdin:   strings.NewReader("What is\n2+2?\n"),
	}, "answer", "--json")
	require.NoError(t, err)

	var doc struct {
		Report model.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "What is\n2+2?", doc.Report.RawText)
	assert.Equal(t, "4", doc.Report.Answer.Answer)
}

func TestAnswerWithHistory(t *testing.T) {
	fast := chattest.New(chattest.Reply(classification), chattest.Reply(answerBody))
	out, _, err := execute(t, CLIOptions{Factory: fakeFactory(fast)}, "answer", "--history", "5", "2+2?")
	require.NoError(t, err)
	assert.Contains(t, out, "=>  4")
}

func TestAnswerFailureExitsWithError(t *testing.T) {
	fast := chattest.New(chattest.Timeout())
	out, errOut, err := execute(t, CLIOptions{Factory: fakeFactory(fast)}, "answer", "2+2?")
	require.Error(t, err)
	assert.Contains(t, out, "error:")
	assert.Contains(t, errOut, "Error:")
}

func TestAnswerWithoutInput(t *testing.T) {
	_, _, err := execute(t, CLIOptions{Factory: fakeFactory(chattest.New())}, "answer")
	assert.EqualError(t, err, "no input text")
}

func TestFactoryError(t *testing.T) {
	failing := func(context.Context, *AppConfig) (Pipeline, func(), error) {
		return nil, nil, errors.New("no api key")
	}
	_, errOut, err := execute(t, CLIOptions{Factory: failing}, "answer", "x")
	require.Error(t, err)
	assert.Contains(t, errOut, "no api key")
}

func TestREPL(t *testing.T) {
	fast := chattest.New(
		chattest.Reply(classification), chattest.Reply(answerBody),
		chattest.Reply(classification), chattest.Reply(answerBody),
	)
	input := strings.Join([]string{
		"What is",
		"2+2?",
		"",
		":stats",
		":memory",
		"2+2 again?",
		"",
		":history 1",
		":bogus",
		":quit",
		"never answered",
	}, "\n")

	out, _, err := execute(t, CLIOptions{Factory: fakeFactory(fast), Stdin: strings.NewReader(input)}, "repl")
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, "answer: 4"))
	assert.Contains(t, out, "runs: 1  fast: 1")
	assert.Contains(t, out, "arithmetic")
	assert.Contains(t, out, "2+2 again?  =>  4")
	assert.Contains(t, out, "unknown command :bogus")
	assert.Equal(t, 4, fast.Calls())
	assert.Contains(t, lastUser(fast.Inputs(0)), "What is\n2+2?")
}

func TestREPLSubmitsPendingTextAtEOF(t *testing.T) {
	fast := chattest.New(chattest.Reply(classification), chattest.Reply(answerBody))
	out, _, err := execute(t, CLIOptions{Factory: fakeFactory(fast), Stdin: strings.NewReader("2+2?")}, "repl")
	require.NoError(t, err)
	assert.Contains(t, out, "answer: 4")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("PIPELINE_STAGE_MODE", "single")
	t.Setenv("PIPELINE_TIMEOUT", "5s")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ENVIRONMENT", "prod")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, core.Production, cfg.Environment)
	assert.Equal(t, model.StageSingle, cfg.Pipeline.StageMode)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.Timeout)
	assert.Equal(t, 3, cfg.Pipeline.RetryAttempts)
	assert.Equal(t, model.DefaultGateMinThinking, cfg.Pipeline.GateMinThinking)
	assert.InDelta(t, 0.10, cfg.Memory.PruneThreshold, 1e-9)
	assert.Equal(t, "gemini-2.5-flash", cfg.Fast.Model)
	assert.Equal(t, "gemini-2.5-pro", cfg.Heavy.Model)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 3*time.Second, cfg.Redis.ReadTimeout)
	assert.Equal(t, 24*time.Hour, cfg.History.TTL)
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	require.NoError(t, os.Unsetenv("GEMINI_API_KEY"))
	_, err := LoadConfig()
	assert.Error(t, err)
}

func lastUser(msgs []*schema.Message) string {
	return msgs[len(msgs)-1].Content
}
