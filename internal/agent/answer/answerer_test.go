package answer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/chattest"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/prompts"
	errx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/core/error"
)

const goodAnswer = `{"final_answer_letters": "B", "final_answer_text": "", "explanation": "because", "confidence": 0.7}`

func newAnswerer(t *testing.T, fast, heavy *chattest.Model, attempts int) *Answerer {
	t.Helper()
	a, err := New(
		Endpoint{Chat: fast, Name: "gemini-2.5-flash"},
		Endpoint{Chat: heavy, Name: "gemini-2.5-pro"},
		Config{Timeout: time.Second, Attempts: attempts, Language: "en"},
	)
	require.NoError(t, err)
	return a
}

func request(tier model.Tier) model.AnswerRequest {
	return model.AnswerRequest{
		RawText:      "Which is prime? A. 4 B. 5",
		Preprocess:   model.PreprocessResult{Question: "Which is prime?", ChoiceType: model.ChoiceSingle},
		Decision:     model.GateDecision{ChosenModel: tier},
		Knowledge:    []string{"a prime has two divisors"},
		ThinkingHint: 256,
	}
}

func TestNewRequiresBothModels(t *testing.T) {
	_, err := New(Endpoint{Chat: chattest.New()}, Endpoint{}, Config{})
	assert.Error(t, err)
}

func TestAnswerFastSuccess(t *testing.T) {
	fast, heavy := chattest.New(chattest.Reply(goodAnswer)), chattest.New()
	a := newAnswerer(t, fast, heavy, 3)

	out, err := a.Answer(context.Background(), request(model.TierFast))
	require.NoError(t, err)
	require.NotNil(t, out.Result)

	assert.Equal(t, "B", out.Result.Answer)
	assert.Equal(t, []string{"B"}, out.Result.Letters)
	assert.Equal(t, model.TierFast, out.Result.UsedModel)
	assert.False(t, out.Result.FellBack)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 0, heavy.Calls())

	user := fast.Inputs(0)[1].Content
	assert.Contains(t, user, "Which is prime?")
	assert.Contains(t, fast.Inputs(0)[0].Content, "a prime has two divisors")
}

func TestAnswerHeavyTimeoutFallsBackToFast(t *testing.T) {
	fast := chattest.New(chattest.Reply(goodAnswer))
	heavy := chattest.New(chattest.Timeout())
	a := newAnswerer(t, fast, heavy, 3)

	out, err := a.Answer(context.Background(), request(model.TierHeavy))
	require.NoError(t, err)

	assert.Equal(t, model.TierFast, out.Result.UsedModel)
	assert.True(t, out.Result.FellBack)
	assert.Equal(t, 1, heavy.Calls())
	assert.Equal(t, 1, fast.Calls())
	assert.Equal(t, 2, out.Attempts)
}

func TestAnswerHeavyThenFastTimeoutFails(t *testing.T) {
	fast := chattest.New(chattest.Timeout(), chattest.Reply(goodAnswer))
	heavy := chattest.New(chattest.Timeout(), chattest.Reply(goodAnswer))
	a := newAnswerer(t, fast, heavy, 3)

	out, err := a.Answer(context.Background(), request(model.TierHeavy))
	require.Error(t, err)
	assert.True(t, errx.IsKind(err, errx.KindRequestTimeout))
	assert.Nil(t, out.Result)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 1, heavy.Calls())
	assert.Equal(t, 1, fast.Calls())
}

func TestAnswerFastTimeoutIsTerminal(t *testing.T) {
	fast := chattest.New(chattest.Timeout(), chattest.Reply(goodAnswer))
	heavy := chattest.New(chattest.Reply(goodAnswer))
	a := newAnswerer(t, fast, heavy, 3)

	out, err := a.Answer(context.Background(), request(model.TierFast))
	assert.True(t, errx.IsKind(err, errx.KindRequestTimeout))
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 0, heavy.Calls())
}

func TestAnswerMalformedRetriesSameModel(t *testing.T) {
	heavy := chattest.New(chattest.Reply("The answer is B"), chattest.Reply(`{"final_answer_text": "B"}`), chattest.Reply(goodAnswer))
	fast := chattest.New()
	a := newAnswerer(t, fast, heavy, 3)

	out, err := a.Answer(context.Background(), request(model.TierHeavy))
	require.NoError(t, err)
	assert.Equal(t, model.TierHeavy, out.Result.UsedModel)
	assert.False(t, out.Result.FellBack)
	assert.Equal(t, 3, heavy.Calls())
	assert.Equal(t, 0, fast.Calls())
}

func TestAnswerMalformedExhaustsAttempts(t *testing.T) {
	fast := chattest.New(chattest.Reply("x"), chattest.Reply("y"), chattest.Reply(goodAnswer))
	a := newAnswerer(t, fast, chattest.New(), 2)

	out, err := a.Answer(context.Background(), request(model.TierFast))
	require.Error(t, err)
	assert.True(t, errx.IsKind(err, errx.KindAnswerParseFailure))
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 1, fast.Remaining())
}

func TestAnswerProviderUnavailable(t *testing.T) {
	boom := errors.New("503 service unavailable")
	fast := chattest.New(chattest.Fail(boom), chattest.Fail(boom))
	a := newAnswerer(t, fast, chattest.New(), 2)

	_, err := a.Answer(context.Background(), request(model.TierFast))
	require.Error(t, err)
	assert.True(t, errx.IsKind(err, errx.KindProviderUnavailable))
	assert.ErrorIs(t, err, boom)
}

func TestAnswerFallbackGetsFreshBudget(t *testing.T) {
	heavy := chattest.New(chattest.Reply("bad"), chattest.Timeout())
	fast := chattest.New(chattest.Reply("bad"), chattest.Reply(goodAnswer))
	a := newAnswerer(t, fast, heavy, 2)

	out, err := a.Answer(context.Background(), request(model.TierHeavy))
	require.NoError(t, err)
	assert.True(t, out.Result.FellBack)
	assert.Equal(t, 4, out.Attempts)
}

func TestAnswerStopsOnCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newAnswerer(t, chattest.New(chattest.Reply(goodAnswer)), chattest.New(), 3)

	_, err := a.Answer(ctx, request(model.TierFast))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolveSingleStage(t *testing.T) {
	body := `{"review": {"content_type": "question", "question": "1+1?", "related_topics": ["arithmetic"]},
	  "final": {"final_answer_text": "2", "explanation": "sum", "confidence": 0.9}}`
	heavy := chattest.New(chattest.Timeout())
	fast := chattest.New(chattest.Reply(body))
	a := newAnswerer(t, fast, heavy, 3)

	out, err := a.SolveSingleStage(context.Background(), "1+1?", model.TierHeavy, prompts.MemoryView{Topics: []string{"algebra"}})
	require.NoError(t, err)
	require.NotNil(t, out.Review)

	assert.Equal(t, []string{"arithmetic"}, out.Review.Topics)
	assert.Equal(t, "2", out.Answer.Result.Answer)
	assert.True(t, out.Answer.Result.FellBack)
	assert.Equal(t, model.TierFast, out.Answer.Result.UsedModel)
	assert.Contains(t, heavy.Inputs(0)[0].Content, "topics: algebra")
}

func TestSolveSingleStageMalformed(t *testing.T) {
	fast := chattest.New(chattest.Reply(`{"review": {}}`))
	a := newAnswerer(t, fast, chattest.New(), 1)

	out, err := a.SolveSingleStage(context.Background(), "1+1?", model.TierFast, prompts.MemoryView{})
	assert.True(t, errx.IsKind(err, errx.KindAnswerParseFailure))
	assert.Nil(t, out.Review)
	assert.Equal(t, 1, out.Answer.Attempts)
}
