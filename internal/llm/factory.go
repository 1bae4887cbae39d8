// Package llm builds the eino ChatModel used by the curator. Ark comes from
// eino-ext; Gemini and OpenAI-compatible endpoints are adapted onto the same
// interface so prompt chains stay provider agnostic.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/artvision/curator/backend/internal/config"
)

// ErrToolsUnsupported is returned by adapters that do not implement tool calling.
var ErrToolsUnsupported = errors.New("tool calling is not supported by this provider")

// NewChatModel creates the chat model for the configured provider.
func NewChatModel(ctx context.Context, cfg config.AIConfig) (model.ChatModel, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%s provider credentials or model missing", cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderArk:
		return newArkChatModel(ctx, cfg)
	case config.ProviderGemini:
		return NewGeminiChatModel(ctx, GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			BaseURL:     cfg.GeminiBaseURL,
			Model:       cfg.GeminiModel,
			Temperature: toFloat32(cfg.Temperature),
			TopP:        toFloat32(cfg.TopP),
			MaxTokens:   cfg.MaxTokens,
		})
	case config.ProviderOpenAI:
		return NewOpenAIChatModel(OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: toFloat32(cfg.Temperature),
			TopP:        toFloat32(cfg.TopP),
			MaxTokens:   cfg.MaxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
	}
}

func newArkChatModel(ctx context.Context, cfg config.AIConfig) (model.ChatModel, error) {
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		Region:      cfg.Region,
		APIKey:      cfg.APIKey,
		AccessKey:   cfg.AccessKey,
		SecretKey:   cfg.SecretKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: toFloat32(cfg.Temperature),
		TopP:        toFloat32(cfg.TopP),
	})
	if err != nil {
		return nil, fmt.Errorf("creating ark chat model: %w", err)
	}
	return chatModel, nil
}

func toFloat32(v *float64) *float32 {
	if v == nil {
		return nil
	}
	val := float32(*v)
	return &val
}
