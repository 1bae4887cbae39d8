package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artvision/curator/backend/internal/middleware"
	"github.com/artvision/curator/backend/internal/model/chat"
	"github.com/artvision/curator/backend/internal/model/persona"
	"github.com/artvision/curator/backend/internal/service/ai"
	chatservice "github.com/artvision/curator/backend/internal/service/chat"
	"github.com/artvision/curator/backend/internal/storage/images"
	"github.com/artvision/curator/backend/internal/storage/sqlite"
	"github.com/artvision/curator/backend/pkg/utils"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

type stubAssistant struct {
	reply    string
	analysis *ai.ArtworkAnalysis
}

func (s *stubAssistant) Reply(context.Context, *persona.Persona, []chat.Message, string) (string, error) {
	return s.reply, nil
}

func (s *stubAssistant) StreamReply(context.Context, *persona.Persona, []chat.Message, string) (*schema.StreamReader[*schema.Message], error) {
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(s.reply, nil)}), nil
}

func (s *stubAssistant) AnalyzeArtwork(context.Context, *persona.Persona, []byte, string) (*ai.ArtworkAnalysis, error) {
	return s.analysis, nil
}

func setupRouter(assistant chatservice.Assistant) (*chi.Mux, *chatservice.Service) {
	personas := persona.NewMemoryStore(persona.Seed())
	chatSvc := chatservice.NewService(personas, images.NewStore(1<<10), assistant, chatservice.DefaultHistoryLimit)

	r := chi.NewRouter()
	New(chatSvc, personas, 1<<10).RegisterRoutes(r)
	return r, chatSvc
}

func defaultAssistant() *stubAssistant {
	return &stubAssistant{
		reply: "A Noite Estrelada é de 1889.",
		analysis: &ai.ArtworkAnalysis{
			Style:         "Pós-Impressionismo",
			Artist:        "Vincent van Gogh",
			AIDescription: "Céu em <script>alert(1)</script> espirais.",
			Confidence:    &chat.Confidence{Style: 0.95, Artist: 0.9},
		},
	}
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, r http.Handler) chat.Session {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var session chat.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session
}

func TestCreateSessionDefaultsPersona(t *testing.T) {
	r, _ := setupRouter(defaultAssistant())

	session := createSession(t, r)
	assert.Equal(t, persona.DefaultID, session.PersonaID)
}

func TestCreateSessionValidPersona(t *testing.T) {
	r, _ := setupRouter(defaultAssistant())

	rec := doJSON(t, r, http.MethodPost, "/session", map[string]string{"personaId": "artvision-en"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateSessionInvalidPersona(t *testing.T) {
	r, _ := setupRouter(defaultAssistant())

	rec := doJSON(t, r, http.MethodPost, "/session", map[string]string{"personaId": "non-existent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSessionSnapshot(t *testing.T) {
	r, _ := setupRouter(defaultAssistant())
	session := createSession(t, r)

	rec := doJSON(t, r, http.MethodGet, "/session/"+session.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, session.ID, snapshot.Session.ID)
	require.Len(t, snapshot.Messages, 1)
	assert.Equal(t, chat.WelcomeMessageID, snapshot.Messages[0].ID)
	assert.Empty(t, snapshot.Analyses)

	rec = doJSON(t, r, http.MethodGet, "/session/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessage(t *testing.T) {
	r, _ := setupRouter(defaultAssistant())
	session := createSession(t, r)

	rec := doJSON(t, r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"content": "Fale da Noite Estrelada"})
	require.Equal(t, http.StatusOK, rec.Code)

	var exchange chatservice.Exchange
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exchange))
	assert.Equal(t, "Fale da Noite Estrelada", exchange.UserMessage.Content)
	assert.Equal(t, "A Noite Estrelada é de 1889.", exchange.AssistantMessage.Content)

	rec = doJSON(t, r, http.MethodGet, "/session/"+session.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var messages []chat.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
	assert.Len(t, messages, 3)

	rec = doJSON(t, r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageWithoutAI(t *testing.T) {
	r, _ := setupRouter(nil)
	session := createSession(t, r)

	rec := doJSON(t, r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"content": "Olá"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalyzeJSONAndReadBack(t *testing.T) {
	r, _ := setupRouter(defaultAssistant())
	session := createSession(t, r)
	base := "/session/" + session.ID

	rec := doJSON(t, r, http.MethodPost, base+"/analyze", map[string]string{
		"imageBase64": utils.EncodeDataURL("image/png", pngBytes),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var exchange chatservice.AnalysisExchange
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exchange))
	assert.Equal(t, "Vincent van Gogh", exchange.Analysis.Artist)
	assert.Equal(t, chatservice.DefaultPeriod, exchange.Analysis.Period)
	assert.Equal(t, exchange.Analysis.ID, exchange.AssistantMessage.AnalysisID)

	rec = doJSON(t, r, http.MethodGet, base+"/analyses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var analyses []chat.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analyses))
	require.Len(t, analyses, 1)

	rec = doJSON(t, r, http.MethodGet, base+"/analyses/"+exchange.Analysis.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ocrText":"No text detected"`)

	rec = doJSON(t, r, http.MethodGet, base+"/analyses/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodGet, base+"/analyses/"+exchange.Analysis.ID+"/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Relatório de análise")
	assert.Contains(t, body, "Vincent van Gogh")
	assert.Contains(t, body, "95%")
	assert.NotContains(t, body, "<script>")
}

func TestAnalyzeMultipart(t *testing.T) {
	r, _ := setupRouter(defaultAssistant())
	session := createSession(t, r)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "starry-night.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/session/"+session.ID+"/analyze", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var exchange chatservice.AnalysisExchange
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exchange))
	assert.True(t, strings.HasPrefix(exchange.UserMessage.ImageURL, images.URLPrefix))
}

func TestAnalyzeRejectsBadUploads(t *testing.T) {
	r, _ := setupRouter(defaultAssistant())
	session := createSession(t, r)
	path := "/session/" + session.ID + "/analyze"

	rec := doJSON(t, r, http.MethodPost, path, map[string]string{"imageBase64": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, path, map[string]string{"imageBase64": "data:image/png;base64,@@"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, path, map[string]string{"imageBase64": utils.EncodeDataURL("text/plain", []byte("hello"))})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := append(append([]byte(nil), pngBytes...), make([]byte, 2<<10)...)
	rec = doJSON(t, r, http.MethodPost, path, map[string]string{"imageBase64": utils.EncodeDataURL("image/png", big)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	r, _ := setupRouter(defaultAssistant())
	session := createSession(t, r)

	rec := doJSON(t, r, http.MethodDelete, "/session/"+session.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/session/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionsAreScopedToOwner(t *testing.T) {
	r, chatSvc := setupRouter(defaultAssistant())
	session, err := chatSvc.CreateSession(context.Background(), persona.DefaultID, "owner")
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodGet, "/session/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/session/"+session.ID, nil)
	req = req.WithContext(middleware.WithUser(req.Context(), &sqlite.User{ID: "owner"}))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), &sqlite.User{ID: "owner"}))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []chat.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, session.ID, sessions[0].ID)
}

func TestRenderReportFallsBackToEnglish(t *testing.T) {
	page, err := RenderReport("fr-FR", chat.AnalysisResult{Artist: "Monet", OCRText: "line one\nline two"})
	require.NoError(t, err)
	assert.Contains(t, string(page), "Analysis report")
	assert.Contains(t, string(page), `lang="en-US"`)
	assert.Contains(t, string(page), "line two")
}
