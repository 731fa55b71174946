package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/config"
)

const (
	testOrigin  = "http://localhost:8080"
	readTimeout = 2 * time.Second
)

// received is an outbound frame as a client sees it.
type received struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload"`
}

func testConfig(mutate ...func(*config.Config)) config.Config {
	cfg := config.Default()
	cfg.AllowedOrigins = []string{testOrigin}
	for _, m := range mutate {
		m(&cfg)
	}
	return cfg
}

// newTestHub starts a hub that is shut down when the test ends.
func newTestHub(t *testing.T, mutate ...func(*config.Config)) *Hub {
	t.Helper()
	h := NewHub(testConfig(mutate...), zerolog.Nop())
	go h.Run()
	t.Cleanup(func() { _ = h.Shutdown(time.Second) })
	return h
}

// newTestServer serves the hub's routes over httptest.
func newTestServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(SetupRoutes(h))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

// dialWithOrigin opens a WebSocket connection with the given Origin header.
func dialWithOrigin(srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	conn, resp, err := dialer.Dial(wsURL(srv), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := dialWithOrigin(srv, testOrigin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, typ, requestID string, payload any) {
	t.Helper()
	frame := map[string]any{"type": typ, "request_id": requestID}
	if payload != nil {
		frame["payload"] = payload
	}
	require.NoError(t, conn.WriteJSON(frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var f received
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// readUntil reads frames until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) received {
	t.Helper()
	for {
		if f := readFrame(t, conn); f.Type == typ {
			return f
		}
	}
}

// joinRoom joins and waits for the ack, returning the roster seen on the way.
func joinRoom(t *testing.T, conn *websocket.Conn, roomName, name, userID string) received {
	t.Helper()
	sendFrame(t, conn, "join", "join-"+userID, map[string]string{
		"room":        roomName,
		"displayName": name,
		"userId":      userID,
	})
	roster := readUntil(t, conn, "roster")
	ack := readUntil(t, conn, "ack")
	require.Equal(t, "join-"+userID, ack.RequestID)
	return roster
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// receive pops the next queued frame of a connectionless client.
func receive(t *testing.T, c *Client) received {
	t.Helper()
	select {
	case data, ok := <-c.GetSendChan():
		require.True(t, ok, "send channel closed")
		var f received
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	case <-time.After(readTimeout):
		t.Fatal("timed out waiting for frame")
		return received{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.GetSendChan():
		t.Fatalf("unexpected frame %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}
