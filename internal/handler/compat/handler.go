// Package compat serves the stateless chat and analysis endpoints used by
// clients that keep the conversation on their side.
package compat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/artvision/curator/backend/internal/model/chat"
	"github.com/artvision/curator/backend/internal/model/persona"
	"github.com/artvision/curator/backend/internal/service/ai"
	chatService "github.com/artvision/curator/backend/internal/service/chat"
	"github.com/artvision/curator/backend/pkg/utils"
)

const (
	chatErrorMessage    = "Erro ao processar mensagem"
	analyzeErrorMessage = "Erro ao analisar imagem"
)

// Assistant is the subset of the AI service these endpoints call.
type Assistant interface {
	Reply(ctx context.Context, p *persona.Persona, history []chat.Message, userMessage string) (string, error)
	AnalyzeArtwork(ctx context.Context, p *persona.Persona, image []byte, mimeType string) (*ai.ArtworkAnalysis, error)
}

// Handler serves POST /chat and POST /analyze.
type Handler struct {
	assistant      Assistant
	personas       persona.Store
	maxUploadBytes int64
	historyLimit   int
	logger         *slog.Logger
}

// New creates the handler. assistant may be nil when no provider is configured.
// historyLimit caps the client-supplied turns forwarded to the model.
func New(assistant Assistant, personas persona.Store, maxUploadBytes int64, historyLimit int) *Handler {
	return &Handler{
		assistant:      assistant,
		personas:       personas,
		maxUploadBytes: maxUploadBytes,
		historyLimit:   historyLimit,
		logger:         slog.Default().With("component", "compat"),
	}
}

// RegisterRoutes registers the stateless routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/analyze", h.handleAnalyze)
}

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		utils.RespondErrorDetails(w, http.StatusServiceUnavailable, chatErrorMessage, "ai provider is not configured")
		return
	}

	var payload struct {
		Message             *string        `json:"message"`
		ConversationHistory []historyEntry `json:"conversationHistory"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondErrorDetails(w, http.StatusBadRequest, chatErrorMessage, "invalid request body")
		return
	}
	if payload.Message == nil {
		utils.RespondErrorDetails(w, http.StatusBadRequest, chatErrorMessage, "message is required")
		return
	}

	history, err := toHistory(payload.ConversationHistory)
	if err != nil {
		utils.RespondErrorDetails(w, http.StatusBadRequest, chatErrorMessage, err.Error())
		return
	}

	p := h.personas.Default()
	response, err := h.assistant.Reply(r.Context(), &p, chatService.ChatHistory(history, h.historyLimit), *payload.Message)
	if err != nil {
		h.logger.Error("chat error", "error", err)
		utils.RespondErrorDetails(w, http.StatusInternalServerError, chatErrorMessage, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"response": response})
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		utils.RespondErrorDetails(w, http.StatusServiceUnavailable, analyzeErrorMessage, "ai provider is not configured")
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes*4/3+(1<<20))
	}

	var payload struct {
		ImageBase64 string `json:"imageBase64"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondErrorDetails(w, http.StatusRequestEntityTooLarge, analyzeErrorMessage, "image exceeds upload limit")
			return
		}
		utils.RespondErrorDetails(w, http.StatusBadRequest, analyzeErrorMessage, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.ImageBase64) == "" {
		utils.RespondErrorDetails(w, http.StatusBadRequest, analyzeErrorMessage, "imageBase64 is required")
		return
	}

	mimeType, data, err := utils.DecodeDataURL(payload.ImageBase64)
	if err != nil {
		utils.RespondErrorDetails(w, http.StatusBadRequest, analyzeErrorMessage, err.Error())
		return
	}
	if h.maxUploadBytes > 0 && int64(len(data)) > h.maxUploadBytes {
		utils.RespondErrorDetails(w, http.StatusRequestEntityTooLarge, analyzeErrorMessage, "image exceeds upload limit")
		return
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}

	p := h.personas.Default()
	result, err := h.assistant.AnalyzeArtwork(r.Context(), &p, data, mimeType)
	if err != nil {
		h.logger.Error("analyze error", "error", err)
		utils.RespondErrorDetails(w, http.StatusInternalServerError, analyzeErrorMessage, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

func toHistory(entries []historyEntry) ([]chat.Message, error) {
	history := make([]chat.Message, 0, len(entries))
	for _, entry := range entries {
		role := chat.Role(entry.Role)
		if role != chat.RoleUser && role != chat.RoleAssistant {
			return nil, errors.New("conversationHistory role must be user or assistant")
		}
		history = append(history, chat.Message{Role: role, Content: entry.Content})
	}
	return history, nil
}
