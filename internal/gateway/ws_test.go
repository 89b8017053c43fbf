package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatdesk/chatdesk/internal/domain"
	"github.com/chatdesk/chatdesk/internal/logging"
	"github.com/chatdesk/chatdesk/internal/notify"
)

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func dialHub(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, path), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) notify.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var event notify.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(nil, logging.New(nil, "silent", "json"))
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()
	defer hub.CloseAll()

	conn := dialHub(t, server, "/ws")

	// Connection registration races the dial return.
	require.Eventually(t, func() bool { return hub.Count() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Publish(context.Background(), notify.Event{
		Type:           notify.EventMessageCreated,
		ConversationID: "c1",
		Message:        &domain.Message{ID: "m1", Content: "hello"},
	})

	event := readEvent(t, conn)
	assert.Equal(t, notify.EventMessageCreated, event.Type)
	assert.Equal(t, "c1", event.ConversationID)
	require.NotNil(t, event.Message)
	assert.Equal(t, "hello", event.Message.Content)
}

func TestHub_ConversationFilter(t *testing.T) {
	hub := NewHub(nil, logging.New(nil, "silent", "json"))
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()
	defer hub.CloseAll()

	watching := dialHub(t, server, "/ws?conversation=c1")
	other := dialHub(t, server, "/ws?conversation=c2")

	require.Eventually(t, func() bool { return hub.Count() == 2 },
		time.Second, 10*time.Millisecond)

	hub.Publish(context.Background(), notify.Event{
		Type:           notify.EventMessageCreated,
		ConversationID: "c1",
	})

	event := readEvent(t, watching)
	assert.Equal(t, "c1", event.ConversationID)

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "client watching another conversation must not receive the event")
}

func TestHub_DropsDisconnectedClients(t *testing.T) {
	hub := NewHub(nil, logging.New(nil, "silent", "json"))
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()

	conn := dialHub(t, server, "/ws")
	require.Eventually(t, func() bool { return hub.Count() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 },
		time.Second, 10*time.Millisecond)

	// Publishing with no clients is a no-op.
	hub.Publish(context.Background(), notify.Event{Type: notify.EventConversationUpdated})
}
