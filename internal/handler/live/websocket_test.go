package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artvision/curator/backend/internal/middleware"
	"github.com/artvision/curator/backend/internal/model/chat"
	"github.com/artvision/curator/backend/internal/model/persona"
	"github.com/artvision/curator/backend/internal/service/ai"
	chatservice "github.com/artvision/curator/backend/internal/service/chat"
	"github.com/artvision/curator/backend/internal/storage/images"
)

type echoAssistant struct{}

func (echoAssistant) Reply(_ context.Context, _ *persona.Persona, _ []chat.Message, msg string) (string, error) {
	return "eco: " + msg, nil
}

func (echoAssistant) StreamReply(context.Context, *persona.Persona, []chat.Message, string) (*schema.StreamReader[*schema.Message], error) {
	return schema.StreamReaderFromArray([]*schema.Message{}), nil
}

func (echoAssistant) AnalyzeArtwork(context.Context, *persona.Persona, []byte, string) (*ai.ArtworkAnalysis, error) {
	return &ai.ArtworkAnalysis{}, nil
}

type snapshotFrame struct {
	Type      string   `json:"type"`
	SessionID string   `json:"sessionId"`
	Data      Snapshot `json:"data"`
}

type slowAssistant struct {
	echoAssistant
	delay time.Duration
}

func (a slowAssistant) Reply(ctx context.Context, _ *persona.Persona, _ []chat.Message, msg string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(a.delay):
		return "eco: " + msg, nil
	}
}

func startServer(t *testing.T) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	return startServerWith(t, echoAssistant{})
}

func startServerWith(t *testing.T, assistant chatservice.Assistant) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	personas := persona.NewMemoryStore(persona.Seed())
	chatSvc := chatservice.NewService(personas, images.NewStore(0), assistant, chatservice.DefaultHistoryLimit)

	r := chi.NewRouter()
	policy := middleware.NewOriginPolicy([]string{"http://localhost:5173"})
	NewWebSocketHandler(chatSvc, policy.CheckOrigin).RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, chatSvc
}

func dial(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/session/" + sessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn, minMessages int) snapshotFrame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var frame snapshotFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type == "snapshot" && len(frame.Data.Messages) >= minMessages {
			return frame
		}
	}
}

func TestWebSocketSendsInitialSnapshot(t *testing.T) {
	server, chatSvc := startServer(t)
	session, err := chatSvc.CreateSession(context.Background(), persona.DefaultID, "")
	require.NoError(t, err)

	conn := dial(t, server, session.ID)
	frame := readSnapshot(t, conn, 1)

	assert.Equal(t, session.ID, frame.SessionID)
	require.Len(t, frame.Data.Messages, 1)
	assert.Equal(t, chat.WelcomeMessageID, frame.Data.Messages[0].ID)
}

func TestWebSocketPushesStoreChanges(t *testing.T) {
	server, chatSvc := startServer(t)
	ctx := context.Background()
	session, err := chatSvc.CreateSession(ctx, persona.DefaultID, "")
	require.NoError(t, err)

	conn := dial(t, server, session.ID)
	readSnapshot(t, conn, 1)

	_, err = chatSvc.SendMessage(ctx, session.ID, "Olá")
	require.NoError(t, err)

	frame := readSnapshot(t, conn, 3)
	assert.Equal(t, "Olá", frame.Data.Messages[1].Content)
	assert.Equal(t, "eco: Olá", frame.Data.Messages[2].Content)
}

func TestWebSocketAcceptsTextTurns(t *testing.T) {
	server, chatSvc := startServer(t)
	session, err := chatSvc.CreateSession(context.Background(), persona.DefaultID, "")
	require.NoError(t, err)

	conn := dial(t, server, session.ID)
	readSnapshot(t, conn, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "text",
		"data": map[string]string{"content": "Quem pintou Guernica?"},
	}))

	frame := readSnapshot(t, conn, 3)
	assert.Equal(t, "eco: Quem pintou Guernica?", frame.Data.Messages[2].Content)
}

func TestWebSocketUnknownSession(t *testing.T) {
	server, _ := startServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/session/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	server, chatSvc := startServer(t)
	session, err := chatSvc.CreateSession(context.Background(), persona.DefaultID, "")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/session/" + session.ID + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://localhost:5173"}})
	require.NoError(t, err)
	conn.Close()
}

func TestWebSocketReplyCompletesAfterDisconnect(t *testing.T) {
	server, chatSvc := startServerWith(t, slowAssistant{delay: 200 * time.Millisecond})
	session, err := chatSvc.CreateSession(context.Background(), persona.DefaultID, "")
	require.NoError(t, err)

	store, err := chatSvc.Conversation(context.Background(), session.ID)
	require.NoError(t, err)

	conn := dial(t, server, session.ID)
	readSnapshot(t, conn, 1)
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "text",
		"data": map[string]string{"content": "Quem pintou Guernica?"},
	}))

	readSnapshot(t, conn, 2)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return len(store.Messages()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	messages := store.Messages()
	assert.Equal(t, "Quem pintou Guernica?", messages[1].Content)
	assert.Equal(t, "eco: Quem pintou Guernica?", messages[2].Content)
}
