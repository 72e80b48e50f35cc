package preprocess

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/chattest"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	errx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/core/error"
)

const validBody = `{"content_type": "question", "question": "2+2?", "question_kind": "free",
 "recommended_model": "chat", "confidence": 0.9, "related_topics": ["arithmetic"],
 "background_knowledge": ["addition"], "suggest_thinking_length": 16}`

func newPreprocessor(t *testing.T, chat *chattest.Model, cacheSize int) *Preprocessor {
	t.Helper()
	cache, err := NewCache(cacheSize)
	require.NoError(t, err)
	p, err := New(chat, Config{
		ModelName: "gemini-2.5-flash",
		Attempts:  3,
		Timeout:   time.Second,
		Memory:    model.DefaultMemoryConfig(),
		Cache:     cache,
	})
	require.NoError(t, err)
	return p
}

func TestNewRejectsNilModel(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)
}

func TestClassifySuccess(t *testing.T) {
	chat := chattest.New(chattest.Step{
		Content: validBody,
		Usage:   &schema.TokenUsage{PromptTokens: 1000, CompletionTokens: 100, TotalTokens: 1100},
	})
	p := newPreprocessor(t, chat, 0)

	out, err := p.Classify(context.Background(), "2+2?", model.MemoryState{})
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.False(t, out.ParseFailed)
	assert.Equal(t, model.TierFast, out.Result.RecommendedModel)
	assert.Equal(t, 16, out.Result.SuggestedThinkingLength)
	assert.Equal(t, []string{"arithmetic"}, out.Result.Topics)
	require.Len(t, out.Usage, 1)
	assert.Equal(t, "preprocess", out.Usage[0].Stage)
	assert.Greater(t, out.Usage[0].CostUSD, 0.0)
	assert.Equal(t, 1, chat.Calls())
}

func TestClassifyIncludesMemoryInPrompt(t *testing.T) {
	chat := chattest.New(chattest.Reply(validBody))
	p := newPreprocessor(t, chat, 0)

	mem := model.MemoryState{
		TopicCounts:         map[string]int{"calculus": 3},
		TopicTotalCount:     3,
		BackgroundKnowledge: []string{"d/dx x^2 = 2x"},
	}
	_, err := p.Classify(context.Background(), "text", mem)
	require.NoError(t, err)

	system := chat.Inputs(0)[0].Content
	assert.Contains(t, system, "topics: calculus")
	assert.Contains(t, system, "background: d/dx x^2 = 2x")
}

func TestClassifyRetriesMalformedThenSucceeds(t *testing.T) {
	chat := chattest.New(chattest.Reply("not json"), chattest.Reply(validBody))
	p := newPreprocessor(t, chat, 0)

	out, err := p.Classify(context.Background(), "2+2?", model.MemoryState{})
	require.NoError(t, err)
	assert.False(t, out.ParseFailed)
	assert.Equal(t, 2, chat.Calls())
}

func TestClassifyParseFailureForcesPlaceholder(t *testing.T) {
	chat := chattest.New(chattest.Reply("a"), chattest.Reply("b"), chattest.Reply(`{"confidence": 7}`))
	p := newPreprocessor(t, chat, 0)

	out, err := p.Classify(context.Background(), "garbled", model.MemoryState{})
	require.Error(t, err)
	assert.True(t, errx.IsKind(err, errx.KindPreprocessParseFailure))
	require.NotNil(t, out)
	assert.True(t, out.ParseFailed)
	assert.Equal(t, Placeholder(), out.Result)
	assert.Equal(t, 3, chat.Calls())
}

func TestClassifyTimeoutIsTerminal(t *testing.T) {
	chat := chattest.New(chattest.Timeout(), chattest.Reply(validBody))
	p := newPreprocessor(t, chat, 0)

	out, err := p.Classify(context.Background(), "2+2?", model.MemoryState{})
	assert.Nil(t, out)
	assert.True(t, errx.IsKind(err, errx.KindRequestTimeout))
	assert.Equal(t, 1, chat.Calls())
}

func TestClassifyProviderFailureExhausts(t *testing.T) {
	boom := errors.New("401 unauthorized")
	chat := chattest.New(chattest.Fail(boom), chattest.Fail(boom), chattest.Fail(boom))
	p := newPreprocessor(t, chat, 0)

	out, err := p.Classify(context.Background(), "2+2?", model.MemoryState{})
	assert.Nil(t, out)
	assert.True(t, errx.IsKind(err, errx.KindProviderUnavailable))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, chat.Calls())
}

func TestClassifyCancelledContext(t *testing.T) {
	chat := chattest.New(chattest.Reply(validBody))
	p := newPreprocessor(t, chat, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := p.Classify(ctx, "2+2?", model.MemoryState{})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyCache(t *testing.T) {
	chat := chattest.New(chattest.Reply(validBody))
	p := newPreprocessor(t, chat, 4)

	first, err := p.Classify(context.Background(), "2+2?", model.MemoryState{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := p.Classify(context.Background(), "  2+2? ", model.MemoryState{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result, second.Result)
	assert.Empty(t, second.Usage)
	assert.Equal(t, 1, chat.Calls())
}

func TestCacheDisabledWhenSizeZero(t *testing.T) {
	c, err := NewCache(0)
	require.NoError(t, err)
	assert.Nil(t, c)

	c.Add("x", model.PreprocessResult{})
	_, ok := c.Get("x")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCacheReturnsCopies(t *testing.T) {
	c, err := NewCache(2)
	require.NoError(t, err)
	c.Add("q", model.PreprocessResult{Topics: []string{"a"}})

	got, ok := c.Get("q")
	require.True(t, ok)
	got.Topics[0] = "mutated"

	again, _ := c.Get("q")
	assert.Equal(t, []string{"a"}, again.Topics)
}
