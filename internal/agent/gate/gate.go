package gate

import (
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
)

// Gate is the only place allowed to route a request to the heavy model.
// The heavy tier requires an explicit recommendation AND a suggested thinking
// length of at least MinThinkingLength; either condition alone yields fast.
type Gate struct {
	MinThinkingLength int
}

// New returns a Gate; a non-positive minimum selects model.DefaultGateMinThinking.
func New(minThinkingLength int) Gate {
	if minThinkingLength <= 0 {
		minThinkingLength = model.DefaultGateMinThinking
	}
	return Gate{MinThinkingLength: minThinkingLength}
}

// Select maps a preprocessing result to the answering tier. Pure and total.
func (g Gate) Select(r model.PreprocessResult) model.GateDecision {
	floor := g.MinThinkingLength
	if floor <= 0 {
		floor = model.DefaultGateMinThinking
	}
	if r.RecommendedModel == model.TierHeavy && r.SuggestedThinkingLength >= floor {
		return model.GateDecision{ChosenModel: model.TierHeavy}
	}
	return model.GateDecision{ChosenModel: model.TierFast}
}

// Forced is the decision used when preprocessing could not be parsed.
func Forced() model.GateDecision {
	return model.GateDecision{ChosenModel: model.TierHeavy, Forced: true}
}

// Select applies the default gate.
func Select(r model.PreprocessResult) model.GateDecision {
	return New(model.DefaultGateMinThinking).Select(r)
}
