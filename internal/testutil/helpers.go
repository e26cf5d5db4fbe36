// Package testutil provides helpers shared by the relay's end-to-end tests:
// starting a relay on an httptest server, dialing it with an allowed origin,
// and exchanging event envelopes.
package testutil

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/server"
)

// TestOrigin is allowed by the default relay configuration.
const TestOrigin = "http://localhost:8080"

// Logger returns a debug-level logger for tests.
func Logger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

// StartRelay runs a hub for cfg behind an httptest server and returns the
// hub and the WebSocket URL. Both are shut down when the test ends.
func StartRelay(t *testing.T, cfg *server.Config) (*server.Hub, string) {
	t.Helper()

	hub := server.NewHub(cfg, Logger())
	go hub.Run()

	testServer := httptest.NewServer(server.SetupRoutes(hub))
	t.Cleanup(func() {
		_ = hub.Shutdown(2 * time.Second)
		testServer.Close()
	})

	return hub, "ws" + strings.TrimPrefix(testServer.URL, "http") + "/ws"
}

// ConnectWebSocket dials url with TestOrigin and waits until hub counts the
// new connection.
func ConnectWebSocket(t *testing.T, hub *server.Hub, url string) *websocket.Conn {
	t.Helper()

	before := hub.Count()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", TestOrigin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	WaitForClients(t, hub, before+1)
	return conn
}

// WaitForClients waits until hub has exactly n live connections.
func WaitForClients(t *testing.T, hub *server.Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n },
		2*time.Second, 10*time.Millisecond, "expected %d live connections", n)
}

// SendEvent writes one envelope to conn.
func SendEvent(t *testing.T, conn *websocket.Conn, event protocol.EventName, payload any) {
	t.Helper()
	frame, err := protocol.Encode(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// SendRaw writes an arbitrary text frame to conn.
func SendRaw(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// ReceiveEvent reads the next envelope from conn, failing after one second.
func ReceiveEvent(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	return env
}

// ExpectUpdate reads the next envelope and checks it is an update carrying announcement.
func ExpectUpdate(t *testing.T, conn *websocket.Conn, announcement string) {
	t.Helper()

	env := ReceiveEvent(t, conn)
	require.Equal(t, protocol.EventUpdate, env.Event)
	text, err := protocol.DecodeString(env)
	require.NoError(t, err)
	require.Equal(t, announcement, text)
}

// ExpectChat reads the next envelope and checks it is a chat carrying msg.
func ExpectChat(t *testing.T, conn *websocket.Conn, msg protocol.ChatMessage) {
	t.Helper()

	env := ReceiveEvent(t, conn)
	require.Equal(t, protocol.EventChat, env.Event)
	got, err := protocol.DecodeChat(env)
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

// ExpectNoEvent fails if conn receives anything within wait. The read
// deadline poisons the connection, so call it last on a given conn.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, frame, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame %s", frame)
}

// StartRawServer serves a bare WebSocket endpoint that hands each upgraded
// connection to upgraded, for tests that script the server side by hand.
func StartRawServer(t *testing.T, upgraded chan<- *websocket.Conn) string {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		t.Cleanup(func() { _ = conn.Close() })
		upgraded <- conn
	}))
	t.Cleanup(testServer.Close)

	return "ws" + strings.TrimPrefix(testServer.URL, "http")
}
