package chat

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/artvision/curator/backend/internal/middleware"
	"github.com/artvision/curator/backend/internal/model/chat"
	"github.com/artvision/curator/backend/internal/model/persona"
	chatService "github.com/artvision/curator/backend/internal/service/chat"
	"github.com/artvision/curator/backend/internal/storage/images"
	"github.com/artvision/curator/backend/pkg/utils"
)

// multipartOverhead leaves room for form boundaries and base64 expansion.
const multipartOverhead = 1 << 20

var errInvalidUpload = errors.New("invalid upload")

// Handler serves the conversation routes.
type Handler struct {
	chatSvc        *chatService.Service
	personaStore   persona.Store
	maxUploadBytes int64
}

// New creates the conversation handler.
func New(chatSvc *chatService.Service, personaStore persona.Store, maxUploadBytes int64) *Handler {
	return &Handler{
		chatSvc:        chatSvc,
		personaStore:   personaStore,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers the conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/sessions", h.handleListSessions)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleDeleteSession)
		r.Get("/messages", h.handleListMessages)
		r.Post("/messages", h.handleSendMessage)
		r.Get("/analyses", h.handleListAnalyses)
		r.Get("/analyses/{analysisID}", h.handleGetAnalysis)
		r.Get("/analyses/{analysisID}/report", h.handleAnalysisReport)
		r.Post("/analyze", h.handleAnalyze)
	})
}

type snapshotResponse struct {
	Session  chat.Session          `json:"session"`
	Messages []chat.Message        `json:"messages"`
	Analyses []chat.AnalysisResult `json:"analyses"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}

	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if payload.PersonaID == "" {
		payload.PersonaID = h.personaStore.Default().ID
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.PersonaID, middleware.UserID(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.ListSessions(r.Context(), middleware.UserID(r.Context())))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, store, ok := h.loadConversation(w, r)
	if !ok {
		return
	}

	utils.RespondJSON(w, http.StatusOK, snapshotResponse{
		Session:  session,
		Messages: store.Messages(),
		Analyses: store.Analyses(),
	})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	session, _, ok := h.loadConversation(w, r)
	if !ok {
		return
	}

	if err := h.chatSvc.DeleteSession(r.Context(), session.ID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	_, store, ok := h.loadConversation(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, store.Messages())
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	session, _, ok := h.loadConversation(w, r)
	if !ok {
		return
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	exchange, err := h.chatSvc.SendMessage(r.Context(), session.ID, payload.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, exchange)
}

func (h *Handler) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	_, store, ok := h.loadConversation(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, store.Analyses())
}

func (h *Handler) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	_, store, ok := h.loadConversation(w, r)
	if !ok {
		return
	}

	result, found := store.GetAnalysis(chi.URLParam(r, "analysisID"))
	if !found {
		utils.RespondError(w, http.StatusNotFound, "analysis not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAnalysisReport(w http.ResponseWriter, r *http.Request) {
	session, store, ok := h.loadConversation(w, r)
	if !ok {
		return
	}

	result, found := store.GetAnalysis(chi.URLParam(r, "analysisID"))
	if !found {
		utils.RespondError(w, http.StatusNotFound, "analysis not found")
		return
	}

	p, _ := h.personaStore.FindByID(session.PersonaID)
	page, err := RenderReport(p.Locale, result)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	session, _, ok := h.loadConversation(w, r)
	if !ok {
		return
	}

	upload, err := h.readUpload(w, r)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	exchange, err := h.chatSvc.AnalyzeImage(r.Context(), session.ID, upload)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, exchange)
}

// readUpload accepts a multipart "image" field or a JSON {imageBase64} body.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (chatService.Upload, error) {
	limit := h.maxUploadBytes
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
		if err := r.ParseMultipartForm(limit); err != nil {
			return chatService.Upload{}, uploadError(err)
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			return chatService.Upload{}, fmt.Errorf("%w: missing image field", images.ErrEmpty)
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			return chatService.Upload{}, uploadError(err)
		}

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = http.DetectContentType(data)
		}
		return chatService.Upload{Data: data, MIMEType: mimeType}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit*4/3+multipartOverhead)
	var payload struct {
		ImageBase64 string `json:"imageBase64"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		return chatService.Upload{}, uploadError(err)
	}
	if strings.TrimSpace(payload.ImageBase64) == "" {
		return chatService.Upload{}, images.ErrEmpty
	}

	mimeType, data, err := utils.DecodeDataURL(payload.ImageBase64)
	if err != nil {
		return chatService.Upload{}, err
	}
	return chatService.Upload{Data: data, MIMEType: mimeType}, nil
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: %v", images.ErrTooLarge, err)
	}
	return fmt.Errorf("%w: %v", errInvalidUpload, err)
}

// loadConversation resolves the session in the URL and hides sessions owned
// by another user.
func (h *Handler) loadConversation(w http.ResponseWriter, r *http.Request) (chat.Session, *chat.Store, bool) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err == nil && !CanAccess(r, session) {
		err = chatService.ErrSessionNotFound
	}
	if err != nil {
		respondServiceError(w, err)
		return chat.Session{}, nil, false
	}

	store, err := h.chatSvc.Conversation(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return chat.Session{}, nil, false
	}
	return session, store, true
}

// CanAccess reports whether the request may use session.
func CanAccess(r *http.Request, session chat.Session) bool {
	return session.UserID == "" || session.UserID == middleware.UserID(r.Context())
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, chatService.ErrPersonaNotFound):
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
	case errors.Is(err, chatService.ErrPersonaRequired),
		errors.Is(err, chatService.ErrEmptyMessage),
		errors.Is(err, images.ErrEmpty),
		errors.Is(err, images.ErrNotImage),
		errors.Is(err, utils.ErrInvalidDataURL),
		errors.Is(err, errInvalidUpload):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, images.ErrTooLarge):
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "image exceeds upload limit")
	case errors.Is(err, chatService.ErrAIUnavailable):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, chatService.ErrAnalysisFailed):
		utils.RespondError(w, http.StatusBadGateway, "failed to analyze image")
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
