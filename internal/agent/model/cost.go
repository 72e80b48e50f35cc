package model

import (
	"github.com/cloudwego/eino/schema"
)

// Pricing defines USD cost per 1M tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing provides hardcoded USD pricing per 1M tokens (text tokens).
var defaultPricing = map[string]Pricing{
	// Gemini standard text pricing; thinking tokens bill as output.
	"gemini-2.5-pro":        {InputPerM: 1.25, OutputPerM: 10.00},
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
}

// ResolvePricing returns hardcoded pricing for a model, zero when unknown.
func ResolvePricing(model string) Pricing {
	return defaultPricing[model]
}

// ComputeCost converts token usage to USD cost using per-1M Pricing.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}

// CallUsage records the tokens and cost of a single model call.
type CallUsage struct {
	Stage            string  `json:"stage"`
	Model            string  `json:"model"`
	Tier             Tier    `json:"tier"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// UsageFrom builds a CallUsage from a model response. It returns false when
// the response carries no usage metadata.
func UsageFrom(stage, modelName string, tier Tier, msg *schema.Message) (CallUsage, bool) {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return CallUsage{}, false
	}
	u := msg.ResponseMeta.Usage
	_, _, total := ComputeCost(u, ResolvePricing(modelName))
	return CallUsage{
		Stage:            stage,
		Model:            modelName,
		Tier:             tier,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		CostUSD:          total,
	}, true
}

// TotalCost sums the cost of the given calls.
func TotalCost(calls []CallUsage) float64 {
	var sum float64
	for _, c := range calls {
		sum += c.CostUSD
	}
	return sum
}
