package model

import "time"

// ================ Config ================
type FastModelConfig struct {
	Model          string  `envconfig:"FAST_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"FAST_MAX_TOKENS" default:"4096"`
	Temperature    float32 `envconfig:"FAST_TEMPERATURE" default:"0.1"`
	ThinkingBudget int32   `envconfig:"FAST_THINKING_BUDGET" default:"0"`
}

type HeavyModelConfig struct {
	Model          string  `envconfig:"HEAVY_MODEL" default:"gemini-2.5-pro"`
	MaxTokens      int     `envconfig:"HEAVY_MAX_TOKENS" default:"8192"`
	Temperature    float32 `envconfig:"HEAVY_TEMPERATURE" default:"0.2"`
	ThinkingBudget int32   `envconfig:"HEAVY_THINKING_BUDGET" default:"8192"`
}

// DefaultGateMinThinking is the suggested thinking length the heavy model requires.
const DefaultGateMinThinking = 128

// DefaultPruneThreshold is the relative frequency below which a topic is dropped.
const DefaultPruneThreshold = 0.10

type PipelineConfig struct {
	StageMode           StageMode     `envconfig:"PIPELINE_STAGE_MODE" default:"multi"`
	SingleStageModel    Tier          `envconfig:"PIPELINE_SINGLE_STAGE_MODEL" default:"fast"`
	Timeout             time.Duration `envconfig:"PIPELINE_TIMEOUT" default:"60s"`
	RetryAttempts       int           `envconfig:"PIPELINE_RETRY_ATTEMPTS" default:"3"`
	GateMinThinking     int           `envconfig:"PIPELINE_GATE_MIN_THINKING" default:"128"`
	OutputLanguage      string        `envconfig:"PIPELINE_OUTPUT_LANGUAGE" default:"en"`
	SkipNonQuestion     bool          `envconfig:"PIPELINE_SKIP_NON_QUESTION" default:"false"`
	PreprocessCacheSize int           `envconfig:"PIPELINE_PREPROCESS_CACHE_SIZE" default:"0"`
}

// Attempts returns RetryAttempts clamped to at least one call.
func (c PipelineConfig) Attempts() int {
	if c.RetryAttempts < 1 {
		return 1
	}
	return c.RetryAttempts
}

type MemoryConfig struct {
	PruneThreshold  float64 `envconfig:"MEMORY_PRUNE_THRESHOLD" default:"0.10"`
	PromptTopics    int     `envconfig:"MEMORY_PROMPT_TOPICS" default:"8"`
	PromptKnowledge int     `envconfig:"MEMORY_PROMPT_KNOWLEDGE" default:"3"`
}

type HistoryConfig struct {
	TTL   time.Duration `envconfig:"HISTORY_TTL" default:"24h"`
	Key   string        `envconfig:"HISTORY_KEY" default:"answerer"`
	Limit int           `envconfig:"HISTORY_LIMIT" default:"200"`
}

// DefaultPipelineConfig mirrors the envconfig defaults for callers that build configs in code.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		StageMode:        StageMulti,
		SingleStageModel: TierFast,
		Timeout:          60 * time.Second,
		RetryAttempts:    3,
		GateMinThinking:  DefaultGateMinThinking,
		OutputLanguage:   "en",
	}
}

func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		PruneThreshold:  DefaultPruneThreshold,
		PromptTopics:    8,
		PromptKnowledge: 3,
	}
}
