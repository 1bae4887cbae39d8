package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/artvision/curator/backend/internal/model/chat"
	"github.com/artvision/curator/backend/internal/model/persona"
	"github.com/artvision/curator/backend/internal/service/ai"
	"github.com/artvision/curator/backend/internal/storage/images"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message content is required")
	ErrAIUnavailable   = errors.New("ai provider is not configured")
	ErrAnalysisFailed  = errors.New("artwork analysis failed")
)

// Defaults applied to fields the vision model left empty.
const (
	DefaultStyle       = "Unknown"
	DefaultArtist      = "Unknown Artist"
	DefaultPeriod      = "Unknown Period"
	DefaultOCRText     = "No text detected"
	DefaultDescription = "Analysis unavailable"
)

// DefaultHistoryLimit is the number of text turns sent to the model.
const DefaultHistoryLimit = 10

// Assistant is the AI collaborator behind the conversation.
type Assistant interface {
	Reply(ctx context.Context, p *persona.Persona, history []chat.Message, userMessage string) (string, error)
	StreamReply(ctx context.Context, p *persona.Persona, history []chat.Message, userMessage string) (*schema.StreamReader[*schema.Message], error)
	AnalyzeArtwork(ctx context.Context, p *persona.Persona, image []byte, mimeType string) (*ai.ArtworkAnalysis, error)
}

// Upload is an image submitted for analysis.
type Upload struct {
	Data     []byte
	MIMEType string
}

// Exchange is one text turn: the user message and the reply appended after it.
type Exchange struct {
	UserMessage      chat.Message `json:"userMessage"`
	AssistantMessage chat.Message `json:"assistantMessage"`
}

// AnalysisExchange is everything appended by a successful image analysis.
type AnalysisExchange struct {
	UserMessage      chat.Message        `json:"userMessage"`
	Analysis         chat.AnalysisResult `json:"analysis"`
	AssistantMessage chat.Message        `json:"assistantMessage"`
}

type conversation struct {
	session chat.Session
	persona persona.Persona
	store   *chat.Store
}

// Service owns every live conversation of the process.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*conversation

	personas     persona.Store
	images       *images.Store
	assistant    Assistant
	historyLimit int
	logger       *slog.Logger
}

// NewService wires the conversation registry. assistant may be nil when no AI
// provider is configured; AI operations then fail with ErrAIUnavailable.
func NewService(personas persona.Store, imageStore *images.Store, assistant Assistant, historyLimit int) *Service {
	return &Service{
		sessions:     make(map[string]*conversation),
		personas:     personas,
		images:       imageStore,
		assistant:    assistant,
		historyLimit: historyLimit,
		logger:       slog.Default().With("component", "chat"),
	}
}

// AIEnabled reports whether an assistant is wired in.
func (s *Service) AIEnabled() bool {
	return s.assistant != nil
}

// CreateSession starts a conversation seeded with the persona's welcome message.
func (s *Service) CreateSession(_ context.Context, personaID, userID string) (chat.Session, error) {
	if personaID == "" {
		return chat.Session{}, ErrPersonaRequired
	}

	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return chat.Session{}, fmt.Errorf("%w: %s", ErrPersonaNotFound, personaID)
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: p.ID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = &conversation{
		session: session,
		persona: p,
		store:   chat.NewStore(chat.WelcomeMessage(p.OpeningLine)),
	}
	s.mu.Unlock()

	s.logger.Info("session created", "session", session.ID, "persona", p.ID)
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	conv, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return conv.session, nil
}

// Conversation returns the store backing a session.
func (s *Service) Conversation(_ context.Context, sessionID string) (*chat.Store, error) {
	conv, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return conv.store, nil
}

// ListSessions returns the sessions owned by userID, oldest first.
func (s *Service) ListSessions(_ context.Context, userID string) []chat.Session {
	s.mu.RLock()
	result := make([]chat.Session, 0, len(s.sessions))
	for _, conv := range s.sessions {
		if conv.session.UserID == userID {
			result = append(result, conv.session)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// DeleteSession drops a conversation and the images uploaded to it.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	conv, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	if s.images != nil {
		for _, msg := range conv.store.Messages() {
			if id, found := strings.CutPrefix(msg.ImageURL, images.URLPrefix); found {
				s.images.Delete(id)
			}
		}
	}

	s.logger.Info("session deleted", "session", sessionID)
	return nil
}

// SendMessage appends a user turn and the assistant's reply. A failed model
// call is logged and answered with the persona's apology.
func (s *Service) SendMessage(ctx context.Context, sessionID, text string) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, ErrEmptyMessage
	}

	conv, err := s.lookup(sessionID)
	if err != nil {
		return Exchange{}, err
	}
	if s.assistant == nil {
		return Exchange{}, ErrAIUnavailable
	}

	history := ChatHistory(conv.store.Messages(), s.historyLimit)
	userMsg := newMessage(chat.RoleUser, text)
	conv.store.AppendMessage(userMsg)

	// The user turn is already stored, so the reply outlives the caller.
	reply, err := s.assistant.Reply(context.WithoutCancel(ctx), &conv.persona, history, text)
	if err != nil {
		s.logger.Error("chat reply failed", "session", sessionID, "error", err)
		reply = conv.persona.ChatApology
	}

	assistantMsg := newMessage(chat.RoleAssistant, reply)
	conv.store.AppendMessage(assistantMsg)

	return Exchange{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

// StreamMessage behaves like SendMessage but hands every chunk of the reply to
// onDelta as it arrives. The complete reply is appended once the stream ends.
func (s *Service) StreamMessage(ctx context.Context, sessionID, text string, onDelta func(delta string) error) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, ErrEmptyMessage
	}

	conv, err := s.lookup(sessionID)
	if err != nil {
		return Exchange{}, err
	}
	if s.assistant == nil {
		return Exchange{}, ErrAIUnavailable
	}

	history := ChatHistory(conv.store.Messages(), s.historyLimit)
	userMsg := newMessage(chat.RoleUser, text)
	conv.store.AppendMessage(userMsg)

	reply, err := s.streamReply(context.WithoutCancel(ctx), &conv.persona, history, text, onDelta)
	if err != nil {
		s.logger.Error("chat stream failed", "session", sessionID, "error", err)
		reply = conv.persona.ChatApology
	} else if reply == "" {
		reply = conv.persona.EmptyReply
	}

	assistantMsg := newMessage(chat.RoleAssistant, reply)
	conv.store.AppendMessage(assistantMsg)

	return Exchange{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

// streamReply collects the whole reply. Once onDelta fails, deltas stop but
// the stream is still drained so the stored turn is complete.
func (s *Service) streamReply(ctx context.Context, p *persona.Persona, history []chat.Message, text string, onDelta func(string) error) (string, error) {
	deliver := func(delta string) {
		if onDelta == nil {
			return
		}
		if err := onDelta(delta); err != nil {
			s.logger.Debug("delta delivery stopped", "error", err)
			onDelta = nil
		}
	}

	stream, err := s.assistant.StreamReply(ctx, p, history, text)
	if errors.Is(err, ai.ErrStreamingDisabled) {
		reply, err := s.assistant.Reply(ctx, p, history, text)
		if err != nil {
			return "", err
		}
		deliver(reply)
		return reply, nil
	}
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stream recv: %w", err)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		builder.WriteString(chunk.Content)
		deliver(chunk.Content)
	}
	return strings.TrimSpace(builder.String()), nil
}

// AnalyzeImage stores the upload, appends the user's image turn, and runs the
// analysis. On failure nothing beyond the image turn is appended.
func (s *Service) AnalyzeImage(ctx context.Context, sessionID string, upload Upload) (AnalysisExchange, error) {
	conv, err := s.lookup(sessionID)
	if err != nil {
		return AnalysisExchange{}, err
	}
	if s.assistant == nil {
		return AnalysisExchange{}, ErrAIUnavailable
	}

	img, err := s.images.Save(upload.Data, upload.MIMEType)
	if err != nil {
		return AnalysisExchange{}, fmt.Errorf("store image: %w", err)
	}

	userMsg := newMessage(chat.RoleUser, conv.persona.UploadPrompt)
	userMsg.ImageURL = img.URL()
	conv.store.AppendMessage(userMsg)

	raw, err := s.assistant.AnalyzeArtwork(ctx, &conv.persona, img.Data, img.MIMEType)
	if err != nil {
		s.logger.Error("artwork analysis failed", "session", sessionID, "image", img.ID, "error", err)
		return AnalysisExchange{}, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	result := BuildAnalysisResult(uuid.NewString(), img.URL(), raw)
	conv.store.AppendAnalysis(result)

	assistantMsg := newMessage(chat.RoleAssistant, conv.persona.SummarizeAnalysis(result.Style, result.Artist))
	assistantMsg.AnalysisID = result.ID
	conv.store.AppendMessage(assistantMsg)

	s.logger.Info("analysis recorded", "session", sessionID, "analysis", result.ID, "style", result.Style)
	return AnalysisExchange{UserMessage: userMsg, Analysis: result, AssistantMessage: assistantMsg}, nil
}

// BuildAnalysisResult turns a model answer into a stored result, filling in
// the defaults for anything missing.
func BuildAnalysisResult(id, imageURL string, raw *ai.ArtworkAnalysis) chat.AnalysisResult {
	if raw == nil {
		raw = &ai.ArtworkAnalysis{}
	}

	result := chat.AnalysisResult{
		ID:            id,
		ImageURL:      imageURL,
		Style:         orDefault(raw.Style, DefaultStyle),
		Artist:        orDefault(raw.Artist, DefaultArtist),
		Period:        orDefault(raw.Period, DefaultPeriod),
		OCRText:       orDefault(raw.OCRText, DefaultOCRText),
		AIDescription: orDefault(raw.AIDescription, DefaultDescription),
		CreatedAt:     time.Now().UTC(),
	}
	if raw.Confidence != nil {
		result.Confidence = *raw.Confidence
	}
	return result
}

// ChatHistory keeps the last limit text-only messages, in order.
func ChatHistory(messages []chat.Message, limit int) []chat.Message {
	if limit <= 0 {
		return nil
	}

	history := make([]chat.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.TextOnly() {
			history = append(history, msg)
		}
	}

	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func (s *Service) lookup(sessionID string) (*conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return conv, nil
}

func newMessage(role chat.Role, content string) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
