package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/answer"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey  string
	BaseURL string
	Fast    *model.FastModelConfig
	Heavy   *model.HeavyModelConfig
}

// ChatModels holds the fast and heavy chat models.
// The fast model also serves preprocessing.
type ChatModels struct {
	Fast           einomodel.BaseChatModel
	Heavy          einomodel.BaseChatModel
	FastModelName  string
	HeavyModelName string
}

// Endpoint returns the answering endpoint for a tier.
func (cm *ChatModels) Endpoint(t model.Tier) answer.Endpoint {
	if t == model.TierHeavy {
		return answer.Endpoint{Chat: cm.Heavy, Name: cm.HeavyModelName}
	}
	return answer.Endpoint{Chat: cm.Fast, Name: cm.FastModelName}
}

// NewChatModels creates both Gemini chat models sharing one client.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.Fast == nil || config.Heavy == nil {
		return nil, fmt.Errorf("chat model configs are nil")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	fast, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:         client,
		Model:          config.Fast.Model,
		Temperature:    &config.Fast.Temperature,
		MaxTokens:      &config.Fast.MaxTokens,
		ThinkingConfig: thinkingConfig(config.Fast.ThinkingBudget),
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating fast model")
		return nil, fmt.Errorf("error creating fast model: %w", err)
	}

	heavy, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:         client,
		Model:          config.Heavy.Model,
		Temperature:    &config.Heavy.Temperature,
		MaxTokens:      &config.Heavy.MaxTokens,
		ThinkingConfig: thinkingConfig(config.Heavy.ThinkingBudget),
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating heavy model")
		return nil, fmt.Errorf("error creating heavy model: %w", err)
	}

	return &ChatModels{
		Fast:           fast,
		Heavy:          heavy,
		FastModelName:  config.Fast.Model,
		HeavyModelName: config.Heavy.Model,
	}, nil
}

// thinkingConfig leaves thinking to the provider default when budget is negative.
func thinkingConfig(budget int32) *genai.ThinkingConfig {
	if budget < 0 {
		return nil
	}
	return &genai.ThinkingConfig{
		IncludeThoughts: false,
		ThinkingBudget:  genai.Ptr(budget),
	}
}
