package parsers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	errx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/core/error"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

// DefaultThinkingLength is used when the classifier omits suggest_thinking_length.
const DefaultThinkingLength = 64

const maxThinkingLength = 1 << 20

// ParsePreprocess validates a preprocessing response and builds the result.
// Missing optional fields take their zero value; a present field with the
// wrong type or an out-of-range value fails the whole response.
func ParsePreprocess(content string) (res *model.PreprocessResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "preprocess_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("preprocess parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			res = nil
		}
	}()

	raw, err := ExtractJSON(content)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	return preprocessFromObject(obj, true)
}

// preprocessFromObject maps the classifier vocabulary onto a PreprocessResult.
// withRouting is false for the single-stage review section, which carries no
// model recommendation.
func preprocessFromObject(obj map[string]json.RawMessage, withRouting bool) (*model.PreprocessResult, error) {
	res := &model.PreprocessResult{
		IsQuestion:   true,
		QuestionType: model.QuestionUnknown,
		ChoiceType:   model.ChoiceNone,
	}

	var err error
	if res.FixedText, err = stringField(obj, "fixed_text"); err != nil {
		return nil, err
	}
	if res.Question, err = stringField(obj, "question"); err != nil {
		return nil, err
	}
	if res.ContentSummary, err = stringField(obj, "content_summary"); err != nil {
		return nil, err
	}

	contentType, err := stringField(obj, "content_type")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(contentType) {
	case "", "question":
	case "non_question", "non-question", "nonquestion":
		res.IsQuestion = false
	default:
		return nil, schemaErr("content_type: unknown value %q", contentType)
	}

	if res.Options, err = optionList(obj, "options"); err != nil {
		return nil, err
	}

	kind, err := stringField(obj, "question_kind")
	if err != nil {
		return nil, err
	}
	choice, err := stringField(obj, "choice_type")
	if err != nil {
		return nil, err
	}
	if res.IsQuestion {
		res.QuestionType = model.ParseQuestionType(kind)
		if res.QuestionType == model.QuestionUnknown && choice != "" {
			res.QuestionType = model.ParseQuestionType(choice)
		}
		if res.QuestionType == model.QuestionUnknown && kind == "" && choice == "" {
			res.QuestionType = model.QuestionShortAnswer
		}
		res.ChoiceType = model.ParseChoiceType(choice)
		if choice == "" {
			res.ChoiceType = model.ChoiceFor(res.QuestionType)
		}
	}

	if present(obj, "confidence") {
		if res.Confidence, err = unitField(obj, "confidence"); err != nil {
			return nil, err
		}
	}
	if res.BackgroundKnowledge, err = stringList(obj, "background_knowledge"); err != nil {
		return nil, err
	}
	if res.Topics, err = stringList(obj, "related_topics"); err != nil {
		return nil, err
	}
	if !withRouting {
		return res, nil
	}

	if res.WhyModel, err = stringField(obj, "why_model"); err != nil {
		return nil, err
	}
	recommended, err := stringField(obj, "recommended_model")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(recommended) {
	case "", "reasoner", "reasoning", "heavy":
		res.RecommendedModel = model.TierHeavy
	case "chat", "fast", "chat/fast", "general":
		res.RecommendedModel = model.TierFast
	default:
		return nil, schemaErr("recommended_model: unknown value %q", recommended)
	}

	res.SuggestedThinkingLength = DefaultThinkingLength
	if present(obj, "suggest_thinking_length") {
		n, err := numberField(obj, "suggest_thinking_length")
		if err != nil {
			return nil, err
		}
		if n < 0 || n > maxThinkingLength {
			return nil, schemaErr("suggest_thinking_length: %v out of range", n)
		}
		res.SuggestedThinkingLength = int(math.Round(n))
	}
	return res, nil
}

func optionList(obj map[string]json.RawMessage, key string) ([]model.Option, error) {
	v, ok := obj[key]
	if !ok || isNull(v) {
		return nil, nil
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, schemaErr("%s: expected list of {label, text}", key)
	}
	out := make([]model.Option, 0, len(items))
	for i, item := range items {
		if i >= maxListItems {
			break
		}
		label, err := stringField(item, "label")
		if err != nil {
			return nil, err
		}
		text, err := stringField(item, "text")
		if err != nil {
			return nil, err
		}
		if label == "" && text == "" {
			continue
		}
		out = append(out, model.Option{Label: label, Text: text})
	}
	return out, nil
}
