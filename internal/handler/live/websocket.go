package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatHandler "github.com/artvision/curator/backend/internal/handler/chat"
	"github.com/artvision/curator/backend/internal/model/chat"
	chatservice "github.com/artvision/curator/backend/internal/service/chat"
	"github.com/artvision/curator/backend/pkg/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler pushes conversation snapshots to connected clients and
// accepts text turns over the same socket.
type WebSocketHandler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates the live conversation handler. checkOrigin
// decides which browser origins may open a socket.
func NewWebSocketHandler(chatSvc *chatservice.Service, checkOrigin func(r *http.Request) bool) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: slog.Default().With("component", "live"),
	}
}

// RegisterRoutes registers the websocket route.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Snapshot is the conversation state pushed after each change.
type Snapshot struct {
	Messages []chat.Message        `json:"messages"`
	Analyses []chat.AnalysisResult `json:"analyses"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil || !chatHandler.CanAccess(r, session) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	store, err := h.chatSvc.Conversation(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.logger.Info("client connected", "session", sessionID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One pending signal is enough: every push reads the latest state.
	changed := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	outbox := make(chan outgoingMessage, 8)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// Closing unblocks the read loop when a write fails.
		defer conn.Close()
		h.writeLoop(ctx, conn, sessionID, store, changed, outbox)
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("read error", "session", sessionID, "error", err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		h.handleMessage(ctx, sessionID, &msg, outbox)
	}

	cancel()
	<-writerDone
	h.logger.Info("client disconnected", "session", sessionID)
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, sessionID string, msg *inboundMessage, outbox chan<- outgoingMessage) {
	switch msg.Type {
	case "text":
		var payload struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.queue(outbox, errorMessage(sessionID, "invalid text payload"))
			return
		}
		// The reply reaches the client through the store subscription.
		go func() {
			if _, err := h.chatSvc.SendMessage(ctx, sessionID, payload.Content); err != nil {
				h.queue(outbox, errorMessage(sessionID, sendErrorText(err)))
			}
		}()
	case "ping":
		h.queue(outbox, outgoingMessage{Type: "pong", SessionID: sessionID, Timestamp: time.Now().Unix()})
	default:
		h.queue(outbox, errorMessage(sessionID, "unsupported message type: "+msg.Type))
	}
}

func (h *WebSocketHandler) queue(outbox chan<- outgoingMessage, msg outgoingMessage) {
	select {
	case outbox <- msg:
	default:
		h.logger.Warn("outbox full, dropping message", "type", msg.Type)
	}
}

// writeLoop owns all writes to conn.
func (h *WebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sessionID string, store *chat.Store, changed <-chan struct{}, outbox <-chan outgoingMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := h.write(conn, snapshotMessage(sessionID, store)); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			if err := h.write(conn, snapshotMessage(sessionID, store)); err != nil {
				return
			}
		case msg := <-outbox:
			if err := h.write(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, msg outgoingMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("write failed", "type", msg.Type, "error", err)
		return err
	}
	return nil
}

func snapshotMessage(sessionID string, store *chat.Store) outgoingMessage {
	return outgoingMessage{
		Type:      "snapshot",
		SessionID: sessionID,
		Data: Snapshot{
			Messages: store.Messages(),
			Analyses: store.Analyses(),
		},
		Timestamp: time.Now().Unix(),
	}
}

func errorMessage(sessionID, message string) outgoingMessage {
	return outgoingMessage{
		Type:      "error",
		SessionID: sessionID,
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
}

func sendErrorText(err error) string {
	switch {
	case errors.Is(err, chatservice.ErrEmptyMessage):
		return "message content is required"
	case errors.Is(err, chatservice.ErrAIUnavailable):
		return "ai provider is not configured"
	default:
		return "failed to send message"
	}
}
