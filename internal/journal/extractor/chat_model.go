package extractor

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/voice-journal/core/internal/journal/model"
	logx "github.com/voice-journal/core/pkg/logger"
)

// ChatModelConfig holds the configuration for the classifier chat model.
type ChatModelConfig struct {
	APIKey    string
	BaseURL   string
	Extractor model.ExtractorConfig
}

// NewChatModel creates the Gemini chat model used for theme classification.
func NewChatModel(ctx context.Context, config ChatModelConfig) (*gemini.ChatModel, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
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

	temperature := config.Extractor.Temperature
	maxTokens := config.Extractor.MaxTokens
	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Extractor.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	return chatModel, nil
}
