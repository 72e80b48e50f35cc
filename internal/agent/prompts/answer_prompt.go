package prompts

import (
	"context"
	_ "embed"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/parsers"
)

//go:embed template/answer_prompt.txt
var answerSystemPrompt string

const answerUserPrompt = "question:\n{{ .Question }}\n\noptions:\n{{ .Options }}\n\nchoice_type: {{ .ChoiceType }}"

// AnswerInput is what the answering prompt needs from one invocation.
type AnswerInput struct {
	RawText      string
	Preprocess   model.PreprocessResult
	Knowledge    []string
	ThinkingHint int
	Language     string
}

// RenderAnswer renders the answering prompt. Knowledge is reference-only context.
func RenderAnswer(ctx context.Context, in AnswerInput) ([]*schema.Message, error) {
	hint := in.ThinkingHint
	if hint <= 0 {
		hint = parsers.DefaultThinkingLength
	}
	choice := in.Preprocess.ChoiceType
	if choice == "" {
		choice = model.ChoiceNone
	}
	vars := map[string]any{
		"Language":     LanguageName(in.Language),
		"Knowledge":    in.Knowledge,
		"ThinkingHint": hint,
		"Question":     in.Preprocess.Prompt(in.RawText),
		"Options":      formatOptions(in.Preprocess.Options),
		"ChoiceType":   string(choice),
	}
	return render(ctx, "answer", answerSystemPrompt, answerUserPrompt, vars)
}

func formatOptions(opts []model.Option) string {
	if len(opts) == 0 {
		return "(No options)"
	}
	lines := make([]string, 0, len(opts))
	for _, o := range opts {
		lines = append(lines, o.Label+". "+o.Text)
	}
	return strings.Join(lines, "\n")
}
