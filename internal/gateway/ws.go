package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chatdesk/chatdesk/internal/logging"
	"github.com/chatdesk/chatdesk/internal/notify"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 64
)

// wsClient is one connected console.
type wsClient struct {
	id string
	// conversation filters events to one conversation; empty means all.
	conversation string
	send         chan []byte
	conn         *websocket.Conn
}

// Hub fans conversation events out to connected websocket clients. It
// implements notify.Publisher so the pipeline can stay unaware of it.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*wsClient
	upgrader websocket.Upgrader
	log      *logging.Logger
}

// NewHub creates a websocket hub.
func NewHub(allowedOrigins []string, log *logging.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*wsClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWSOrigin(allowedOrigins),
		},
		log: log.Sub("ws"),
	}
}

// checkWSOrigin allows same-origin and configured origins only.
func checkWSOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // same-origin or non-browser clients
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// HandleWS upgrades the connection and streams events. An optional
// ?conversation=<id> query narrows the feed to one conversation.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		id:           uuid.New().String(),
		conversation: r.URL.Query().Get("conversation"),
		send:         make(chan []byte, wsSendBuffer),
		conn:         conn,
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	h.log.Debug().
		Str("client", client.id).
		Str("conversation", client.conversation).
		Msg("websocket client connected")

	go h.writePump(client)
	h.readPump(client)
}

// writePump drains the client's send queue onto the wire.
func (h *Hub) writePump(client *wsClient) {
	for payload := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Debug().Err(err).Str("client", client.id).Msg("websocket write failed")
			client.conn.Close()
			return
		}
	}
	client.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	client.conn.Close()
}

// readPump consumes (and discards) client frames until disconnect,
// which is how close and ping frames get processed.
func (h *Hub) readPump(client *wsClient) {
	defer h.drop(client.id)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(id string) {
	h.mu.Lock()
	client, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(client.send)
	}
	h.mu.Unlock()
	if ok {
		h.log.Debug().Str("client", id).Msg("websocket client disconnected")
	}
}

// Publish broadcasts an event to clients watching its conversation.
// Slow clients are skipped rather than blocking the pipeline.
func (h *Hub) Publish(_ context.Context, event notify.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("type", event.Type).Msg("encoding event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.conversation != "" && client.conversation != event.ConversationID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			h.log.Warn().Str("client", client.id).Msg("websocket send buffer full, dropping event")
		}
	}
}

// Close implements notify.Publisher.
func (h *Hub) Close() error {
	h.CloseAll()
	return nil
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
