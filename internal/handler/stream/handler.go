package stream

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chatHandler "github.com/artvision/curator/backend/internal/handler/chat"
	"github.com/artvision/curator/backend/internal/model/chat"
	"github.com/artvision/curator/backend/internal/model/persona"
	chatService "github.com/artvision/curator/backend/internal/service/chat"
	"github.com/artvision/curator/backend/pkg/utils"
)

// Handler streams curator replies via Server-Sent Events.
type Handler struct {
	chatSvc  *chatService.Service
	personas persona.Store
	logger   *slog.Logger
}

// New creates a new stream handler.
func New(chatSvc *chatService.Service, personas persona.Store) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		personas: personas,
		logger:   slog.Default().With("component", "stream"),
	}
}

// StreamResponse is one SSE frame.
type StreamResponse struct {
	Event     string        `json:"event"`
	Content   string        `json:"content,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
	Message   *chat.Message `json:"message,omitempty"`
	Finished  bool          `json:"finished,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// RegisterRoutes registers the streaming route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := strings.TrimSpace(r.URL.Query().Get("message"))

	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	if !h.chatSvc.AIEnabled() {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
		return
	}

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil || !chatHandler.CanAccess(r, session) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	p, _ := h.personas.FindByID(session.PersonaID)
	h.send(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
		Content:   p.Name,
	})

	exchange, err := h.chatSvc.StreamMessage(r.Context(), sessionID, userMessage, func(delta string) error {
		return utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "delta",
			SessionID: sessionID,
			Content:   delta,
		})
	})
	if err != nil {
		h.logger.Error("stream failed", "session", sessionID, "error", err)
		h.send(w, flusher, StreamResponse{
			Event:     "error",
			SessionID: sessionID,
			Error:     streamErrorMessage(err),
		})
		return
	}

	h.send(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   exchange.AssistantMessage.Content,
		Message:   &exchange.AssistantMessage,
	})
	h.send(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	h.logger.Info("stream completed", "session", sessionID, "persona", session.PersonaID)
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	if err := utils.SendSSEChunk(w, flusher, response); err != nil {
		h.logger.Debug("sse write failed", "event", response.Event, "error", err)
	}
}

func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, chatService.ErrEmptyMessage):
		return "message is required"
	default:
		return "streaming failed"
	}
}
