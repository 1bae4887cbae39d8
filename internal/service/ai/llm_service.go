package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/artvision/curator/backend/internal/config"
	"github.com/artvision/curator/backend/internal/llm"
	"github.com/artvision/curator/backend/internal/model/chat"
	"github.com/artvision/curator/backend/internal/model/persona"
	"github.com/artvision/curator/backend/pkg/utils"
)

var (
	// ErrStreamingDisabled is returned by StreamReply when AI_STREAM is off.
	ErrStreamingDisabled = errors.New("streaming disabled in configuration")
	// ErrEmptyImage is returned when AnalyzeArtwork receives no bytes.
	ErrEmptyImage = errors.New("image is empty")
)

// ArtworkAnalysis is the structured answer of the vision model. Empty fields
// are filled with defaults by the caller.
type ArtworkAnalysis struct {
	Style         string           `json:"style,omitempty"`
	Artist        string           `json:"artist,omitempty"`
	Period        string           `json:"period,omitempty"`
	OCRText       string           `json:"ocrText,omitempty"`
	AIDescription string           `json:"aiDescription,omitempty"`
	Confidence    *chat.Confidence `json:"confidence,omitempty"`
}

// Service encapsulates curator chat and artwork analysis on top of an eino ChatModel.
type Service struct {
	chatModel model.ChatModel
	prompts   *CuratorPromptManager
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
	logger    *slog.Logger
}

// NewService creates the provider selected by cfg and wraps it in a Service.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := llm.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg)
}

// NewServiceWithModel builds the chat chain around an existing model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, cfg config.AIConfig) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		prompts:   NewCuratorPromptManager(),
		cfg:       cfg,
		chain:     runnable,
		logger:    slog.Default().With("component", "ai"),
	}, nil
}

// StreamingEnabled reports whether SSE streaming is switched on.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Reply answers userMessage in the persona's voice given the prior turns.
func (s *Service) Reply(ctx context.Context, p *persona.Persona, history []chat.Message, userMessage string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	response, err := s.chain.Invoke(ctx, s.buildChainInput(p, history, userMessage))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	text := strings.TrimSpace(response.Content)
	if text == "" && p != nil {
		text = p.EmptyReply
	}

	s.logger.Debug("generated reply", "persona", personaID(p), "history", len(history), "length", len(text))
	return text, nil
}

// StreamReply streams the answer chunk by chunk. The caller must close the reader.
func (s *Service) StreamReply(ctx context.Context, p *persona.Persona, history []chat.Message, userMessage string) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, ErrStreamingDisabled
	}

	ctx, cancel := s.withTimeout(ctx)
	stream, err := s.chain.Stream(ctx, s.buildChainInput(p, history, userMessage))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}

	// Relay so the timeout is released once the stream ends or the reader closes.
	out, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer cancel()
		defer sw.Close()
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if closed := sw.Send(chunk, err); closed || err != nil {
				return
			}
		}
	}()
	return out, nil
}

// AnalyzeArtwork asks the vision model to classify an artwork image.
func (s *Service) AnalyzeArtwork(ctx context.Context, p *persona.Persona, image []byte, mimeType string) (*ArtworkAnalysis, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := []*schema.Message{{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:      utils.EncodeDataURL(mimeType, image),
					MIMEType: mimeType,
				},
			},
			{
				Type: schema.ChatMessagePartTypeText,
				Text: s.prompts.AnalysisPrompt(p),
			},
		},
	}}

	response, err := s.chatModel.Generate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze artwork: %w", err)
	}

	result, err := ParseArtworkAnalysis(response.Content)
	if err != nil {
		return nil, err
	}

	s.logger.Info("artwork analyzed", "persona", personaID(p), "style", result.Style, "artist", result.Artist)
	return result, nil
}

// ParseArtworkAnalysis decodes the JSON object embedded in a model answer,
// taken from the first '{' to the last '}'. An answer without an object yields
// an empty analysis. Confidence values are clamped to [0, 1].
func ParseArtworkAnalysis(content string) (*ArtworkAnalysis, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return &ArtworkAnalysis{}, nil
	}

	var result ArtworkAnalysis
	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis output: %w", err)
	}

	if result.Confidence != nil {
		result.Confidence.Style = clampUnit(result.Confidence.Style)
		result.Confidence.Artist = clampUnit(result.Confidence.Artist)
	}
	return &result, nil
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func (s *Service) buildChainInput(p *persona.Persona, history []chat.Message, userMessage string) map[string]any {
	return map[string]any{
		"system":  s.prompts.BuildSystemPrompt(p),
		"history": s.buildHistoryMessages(history),
		"query":   userMessage,
	}
}

// buildHistoryMessages converts history as given; callers choose the window
// with chat service ChatHistory.
func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}

func personaID(p *persona.Persona) string {
	if p == nil {
		return ""
	}
	return p.ID
}
