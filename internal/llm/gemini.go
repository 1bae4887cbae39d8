package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/artvision/curator/backend/pkg/utils"
)

// GeminiConfig configures the Gemini API adapter.
type GeminiConfig struct {
	APIKey string
	// BaseURL overrides the public endpoint, mainly for tests.
	BaseURL     string
	Model       string
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
}

// GeminiChatModel adapts the Gemini API to eino's model.ChatModel.
type GeminiChatModel struct {
	client      *genai.Client
	model       string
	temperature *float32
	topP        *float32
	maxTokens   *int
}

// NewGeminiChatModel creates a Gemini API client.
func NewGeminiChatModel(ctx context.Context, cfg GeminiConfig) (*GeminiChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	return &GeminiChatModel{
		client:      client,
		model:       modelName,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate sends the conversation and returns the model text as an assistant message.
func (g *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	modelName, contents, cfg, err := g.buildRequest(input, opts...)
	if err != nil {
		return nil, err
	}

	res, err := g.client.Models.GenerateContent(ctx, modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	return schema.AssistantMessage(res.Text(), nil), nil
}

// Stream forwards each streamed Gemini chunk as one assistant delta.
func (g *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	modelName, contents, cfg, err := g.buildRequest(input, opts...)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer sw.Close()

		for res, err := range g.client.Models.GenerateContentStream(ctx, modelName, contents, cfg) {
			if err != nil {
				sw.Send(nil, fmt.Errorf("gemini stream: %w", err))
				return
			}
			text := res.Text()
			if text == "" {
				continue
			}
			if closed := sw.Send(schema.AssistantMessage(text, nil), nil); closed {
				return
			}
		}
	}()

	return sr, nil
}

func (g *GeminiChatModel) buildRequest(input []*schema.Message, opts ...model.Option) (string, []*genai.Content, *genai.GenerateContentConfig, error) {
	options := model.GetCommonOptions(&model.Options{
		Temperature: g.temperature,
		TopP:        g.topP,
		MaxTokens:   g.maxTokens,
		Model:       &g.model,
	}, opts...)

	system, contents, err := toGeminiContents(input)
	if err != nil {
		return "", nil, nil, err
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: options.Temperature,
		TopP:        options.TopP,
	}
	if options.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*options.MaxTokens)
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return *options.Model, contents, cfg, nil
}

// BindTools is not supported.
func (g *GeminiChatModel) BindTools(_ []*schema.ToolInfo) error {
	return ErrToolsUnsupported
}

// toGeminiContents splits system messages into one instruction and maps the
// remaining turns to Gemini roles. Image parts must be base64 data URLs.
func toGeminiContents(input []*schema.Message) (string, []*genai.Content, error) {
	var system []string
	contents := make([]*genai.Content, 0, len(input))

	for _, msg := range input {
		if msg == nil {
			continue
		}

		var role genai.Role = genai.RoleUser
		switch msg.Role {
		case schema.System:
			if text := strings.TrimSpace(msg.Content); text != "" {
				system = append(system, text)
			}
			continue
		case schema.Assistant:
			role = genai.RoleModel
		}

		if len(msg.MultiContent) == 0 {
			contents = append(contents, genai.NewContentFromText(msg.Content, role))
			continue
		}

		parts := make([]*genai.Part, 0, len(msg.MultiContent))
		for _, part := range msg.MultiContent {
			switch part.Type {
			case schema.ChatMessagePartTypeText:
				parts = append(parts, genai.NewPartFromText(part.Text))
			case schema.ChatMessagePartTypeImageURL:
				if part.ImageURL == nil {
					continue
				}
				mimeType, data, err := utils.DecodeDataURL(part.ImageURL.URL)
				if err != nil {
					return "", nil, fmt.Errorf("decoding image part: %w", err)
				}
				parts = append(parts, genai.NewPartFromBytes(data, mimeType))
			}
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}

	return strings.Join(system, "\n\n"), contents, nil
}
