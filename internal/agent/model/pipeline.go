package model

import "time"

// Option is one labelled choice extracted from a multiple-choice question.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// PreprocessResult is the classification of one piece of recognised text.
// It is built once per invocation and never mutated afterwards.
type PreprocessResult struct {
	IsQuestion              bool         `json:"is_question"`
	QuestionType            QuestionType `json:"question_type"`
	RecommendedModel        Tier         `json:"recommended_model"`
	SuggestedThinkingLength int          `json:"suggested_thinking_length"`
	Topics                  []string     `json:"topics"`
	BackgroundKnowledge     []string     `json:"background_knowledge"`
	Confidence              float64      `json:"confidence"`

	FixedText      string     `json:"fixed_text,omitempty"`
	Question       string     `json:"question,omitempty"`
	Options        []Option   `json:"options,omitempty"`
	ChoiceType     ChoiceType `json:"choice_type,omitempty"`
	ContentSummary string     `json:"content_summary,omitempty"`
	WhyModel       string     `json:"why_model,omitempty"`
}

// Prompt returns the best available question text, falling back to raw.
func (r PreprocessResult) Prompt(raw string) string {
	switch {
	case r.Question != "":
		return r.Question
	case r.FixedText != "":
		return r.FixedText
	default:
		return raw
	}
}

// PreprocessOutcome is what the preprocessing stage hands to the orchestrator.
// ParseFailed means Result is a synthetic placeholder and the heavy path is forced.
type PreprocessOutcome struct {
	Result      PreprocessResult
	ParseFailed bool
	Cached      bool
	Usage       []CallUsage
}

// GateDecision is derived from a PreprocessResult and never stored.
type GateDecision struct {
	ChosenModel Tier `json:"chosen_model"`
	// Forced is set when the gate was bypassed after a preprocess parse failure.
	Forced bool `json:"forced,omitempty"`
}

// AnswerRequest carries everything the answering stage needs for one call.
type AnswerRequest struct {
	RawText      string
	Preprocess   PreprocessResult
	Decision     GateDecision
	Knowledge    []string
	ThinkingHint int
}

// AnswerResult is the validated, immutable outcome of the answering stage.
type AnswerResult struct {
	Answer      string   `json:"answer"`
	Letters     []string `json:"letters,omitempty"`
	Explanation string   `json:"explanation"`
	Confidence  float64  `json:"confidence"`
	UsedModel   Tier     `json:"used_model"`
	FellBack    bool     `json:"fell_back"`
}

// AnswerOutcome wraps an AnswerResult with the calls spent producing it.
// Result is nil when the answering stage failed.
type AnswerOutcome struct {
	Result   *AnswerResult
	Attempts int
	Usage    []CallUsage
}

// MemoryState is a point-in-time copy of the cross-request memory.
type MemoryState struct {
	BackgroundKnowledge []string       `json:"background_knowledge"`
	TopicCounts         map[string]int `json:"topic_counts"`
	TopicTotalCount     int            `json:"topic_total_count"`
}

// ActiveTopics returns the topic names of the snapshot.
func (m MemoryState) ActiveTopics() []string {
	out := make([]string, 0, len(m.TopicCounts))
	for t := range m.TopicCounts {
		out = append(out, t)
	}
	return out
}

// Report is the read-only summary handed to the presentation layer.
type Report struct {
	RawText      string           `json:"raw_text"`
	StageMode    StageMode        `json:"stage_mode"`
	Preprocess   PreprocessResult `json:"preprocess"`
	ParseFailed  bool             `json:"parse_failed"`
	Decision     GateDecision     `json:"decision"`
	Answer       *AnswerResult    `json:"answer,omitempty"`
	Skipped      bool             `json:"skipped,omitempty"`
	ActiveTopics []string         `json:"active_topics"`
	Knowledge    []string         `json:"knowledge"`
	Usage        []CallUsage      `json:"usage,omitempty"`
	TotalCostUSD float64          `json:"total_cost_usd"`
	Error        string           `json:"error,omitempty"`
	ErrorKind    string           `json:"error_kind,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	Elapsed      time.Duration    `json:"elapsed"`
}
