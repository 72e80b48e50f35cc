package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	errx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/core/error"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

// ParseAnswer validates an answering response. The caller stamps UsedModel
// and FellBack; the parser only fills the body fields.
func ParseAnswer(content string) (res *model.AnswerResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "answer_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("answer parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
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
	return answerFromObject(obj)
}

// SingleStage is the combined review and answer of one single-stage call.
type SingleStage struct {
	Review model.PreprocessResult
	Final  model.AnswerResult
}

// ParseSingleStage validates a {"review": {...}, "final": {...}} response.
func ParseSingleStage(content string) (res *SingleStage, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "single_stage_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("single stage parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
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
	if !present(obj, "review") || !present(obj, "final") {
		return nil, schemaErr("review and final sections are required")
	}
	reviewObj, err := decodeObject(obj["review"])
	if err != nil {
		return nil, schemaErr("review: %v", err)
	}
	finalObj, err := decodeObject(obj["final"])
	if err != nil {
		return nil, schemaErr("final: %v", err)
	}
	review, err := preprocessFromObject(reviewObj, false)
	if err != nil {
		return nil, err
	}
	final, err := answerFromObject(finalObj)
	if err != nil {
		return nil, err
	}
	return &SingleStage{Review: *review, Final: *final}, nil
}

func answerFromObject(obj map[string]json.RawMessage) (*model.AnswerResult, error) {
	letters, err := stringList(obj, "final_answer_letters")
	if err != nil {
		return nil, err
	}
	letters = normalizeLetters(letters)

	text, err := stringField(obj, "final_answer_text")
	if err != nil {
		return nil, err
	}
	if text == "" {
		if text, err = stringField(obj, "answer"); err != nil {
			return nil, err
		}
	}
	if text == "" {
		text = strings.Join(letters, ", ")
	}
	if text == "" {
		return nil, schemaErr("final_answer_text or final_answer_letters is required")
	}

	explanation, err := stringField(obj, "explanation")
	if err != nil {
		return nil, err
	}
	if !present(obj, "confidence") {
		return nil, schemaErr("confidence is required")
	}
	confidence, err := unitField(obj, "confidence")
	if err != nil {
		return nil, err
	}

	return &model.AnswerResult{
		Answer:      text,
		Letters:     letters,
		Explanation: explanation,
		Confidence:  confidence,
	}, nil
}

// normalizeLetters upper-cases option labels and expands "A,C" or "AC" forms.
// Only runs of capital letters A-J are split into single labels.
func normalizeLetters(in []string) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(s string) {
		s = strings.ToUpper(strings.Trim(strings.TrimSpace(s), ".)"))
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, item := range in {
		fields := strings.FieldsFunc(item, func(r rune) bool {
			return r == ',' || r == ' ' || r == ';' || r == '、' || r == '，'
		})
		for _, f := range fields {
			if isLetterRun(f) {
				for _, r := range f {
					add(string(r))
				}
				continue
			}
			add(f)
		}
	}
	return out
}

func isLetterRun(s string) bool {
	if len(s) < 2 || len(s) > 8 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'J' {
			return false
		}
	}
	return true
}
