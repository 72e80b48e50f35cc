package model

import "strings"

// Tier is the closed set of answering models the pipeline can route to.
type Tier int

const (
	TierFast Tier = iota
	TierHeavy
)

func (t Tier) String() string {
	switch t {
	case TierHeavy:
		return "heavy"
	default:
		return "fast"
	}
}

// ParseTier maps provider and prompt vocabulary onto a Tier.
// Anything that is not recognisably the reasoning model is fast.
func ParseTier(v string) Tier {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "heavy", "reasoner", "reasoning", "deepseek-reasoner", "pro":
		return TierHeavy
	default:
		return TierFast
	}
}

// Decode lets envconfig bind a Tier from its name.
func (t *Tier) Decode(value string) error {
	*t = ParseTier(value)
	return nil
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	*t = ParseTier(string(b))
	return nil
}

// QuestionType classifies recognised content.
type QuestionType string

const (
	QuestionUnknown        QuestionType = "unknown"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionMultipleSelect QuestionType = "multiple_select"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionProof          QuestionType = "proof"
)

// ParseQuestionType accepts both the canonical names and the prompt's question_kind vocabulary.
func ParseQuestionType(v string) QuestionType {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "single", "multiple_choice", "choice":
		return QuestionMultipleChoice
	case "multiple", "multiple_select", "multi":
		return QuestionMultipleSelect
	case "free", "short_answer", "open":
		return QuestionShortAnswer
	case "proof", "derivation":
		return QuestionProof
	default:
		return QuestionUnknown
	}
}

// ChoiceType is the answer-shape hint handed to the answering stage.
type ChoiceType string

const (
	ChoiceSingle   ChoiceType = "single"
	ChoiceMultiple ChoiceType = "multiple"
	ChoiceNone     ChoiceType = "none"
)

func ParseChoiceType(v string) ChoiceType {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "single":
		return ChoiceSingle
	case "multiple":
		return ChoiceMultiple
	default:
		return ChoiceNone
	}
}

// ChoiceFor derives the answer shape from a question type.
func ChoiceFor(q QuestionType) ChoiceType {
	switch q {
	case QuestionMultipleChoice:
		return ChoiceSingle
	case QuestionMultipleSelect:
		return ChoiceMultiple
	default:
		return ChoiceNone
	}
}

// StageMode selects between the combined single call and the preprocess+answer pipeline.
type StageMode string

const (
	StageSingle StageMode = "single"
	StageMulti  StageMode = "multi"
)

// ParseStageMode falls back to StageMulti for anything it does not recognise.
func ParseStageMode(v string) StageMode {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "single", "single-stage", "one":
		return StageSingle
	default:
		return StageMulti
	}
}

func (m *StageMode) Decode(value string) error {
	*m = ParseStageMode(value)
	return nil
}
